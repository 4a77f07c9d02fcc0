// =============================================================================
// sepacetamol - Spreadsheet Reader
// =============================================================================
//
// This module turns uploaded spreadsheets into typed rows. Two formats are
// supported and told apart by their first bytes, not by the file name:
//   - XLSX workbooks (a ZIP archive, "PK\x03\x04"), read with excelize
//   - CSV text, read with encoding/csv after decoding the configured charset
//
// Rows are positional: Sheet.Rows[0] is row 1 of the sheet and empty rows are
// kept so that fixed layouts (the SEPA payment list) can address rows by
// number. Table() gives the header plus non-empty data rows for exports that
// are addressed by column name.
//
// =============================================================================

package sheet

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// Format identifies the container of an upload.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var zipMagic = []byte("PK\x03\x04")

// Detect inspects the first bytes of an upload.
func Detect(head []byte) Format {
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// Sheet is the content of one worksheet.
type Sheet struct {
	// Name is the worksheet name, or "csv" for CSV input.
	Name   string
	Format Format
	Rows   []types.Row
}

// Read detects the format of r and reads it. settings only apply to CSV.
func Read(r io.Reader, settings config.CSVSettings) (*Sheet, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zipMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, &types.ConversionError{Op: "read spreadsheet", Err: err}
	}

	if Detect(head) == FormatXLSX {
		return ReadXLSX(br)
	}
	return ReadCSV(br, settings)
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, settings config.CSVSettings) (*Sheet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Read(file, settings)
}

// Table returns the first non-empty row as header and every later non-empty
// row as data.
func (s *Sheet) Table() (types.Row, []types.Row, error) {
	headerIndex := -1
	for i, row := range s.Rows {
		if !row.IsEmpty() {
			headerIndex = i
			break
		}
	}
	if headerIndex < 0 {
		return nil, nil, &types.ConversionError{Op: "read table", Err: fmt.Errorf("sheet %q is empty", s.Name)}
	}

	var data []types.Row
	for _, row := range s.Rows[headerIndex+1:] {
		if !row.IsEmpty() {
			data = append(data, row)
		}
	}
	return s.Rows[headerIndex], data, nil
}
