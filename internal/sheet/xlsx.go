package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// ReadXLSX reads the active worksheet of a workbook.
//
// CELL TYPES:
//   - Text cells (shared, inline, formula results) become trimmed strings
//   - Numeric cells become float64. Dates stored as serial numbers stay
//     numbers; consumers convert them with excelize.ExcelDateToTime
//   - ISO 8601 date cells become time.Time
//   - Boolean cells become "TRUE" or "FALSE"
func ReadXLSX(r io.Reader) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &types.ConversionError{Op: "open workbook", Err: err}
	}
	defer f.Close()

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		return nil, &types.ConversionError{Op: "open workbook", Err: fmt.Errorf("workbook has no worksheet")}
	}

	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &types.ConversionError{Op: "read worksheet " + name, Err: err}
	}

	rows := make([]types.Row, len(raw))
	for i, values := range raw {
		row := make(types.Row, len(values))
		for j, value := range values {
			cell, err := typedCell(f, name, j+1, i+1, value)
			if err != nil {
				return nil, &types.ConversionError{Op: "read worksheet " + name, Err: err}
			}
			row[j] = cell
		}
		rows[i] = row
	}

	return &Sheet{Name: name, Format: FormatXLSX, Rows: rows}, nil
}

func typedCell(f *excelize.File, sheet string, col, row int, raw string) (types.Cell, error) {
	if raw == "" {
		return nil, nil
	}

	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	cellType, err := f.GetCellType(sheet, ref)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return text(raw), nil
	case excelize.CellTypeBool:
		if raw == "1" || strings.EqualFold(raw, "TRUE") {
			return "TRUE", nil
		}
		return "FALSE", nil
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return text(raw), nil
	}

	// Numbers are written without a type attribute.
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v, nil
	}
	return text(raw), nil
}

func text(s string) types.Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
