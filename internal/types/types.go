// =============================================================================
// sepacetamol - Shared Types
// =============================================================================
//
// This package contains the types shared by the spreadsheet readers, the
// record builders and the host adapters. Keeping them here avoids import
// cycles between:
//   - sheet      (produces rows)
//   - sepa       (consumes rows of the payment workbook)
//   - personio   (consumes rows of the payroll export)
//   - converter  (moves rows between the above)
//
// =============================================================================

package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROW TYPES
// =============================================================================

// Cell is a single spreadsheet value. Readers only ever produce one of:
//   - nil        : the cell is empty
//   - string     : text, already trimmed
//   - float64    : a numeric cell
//   - time.Time  : a date cell
type Cell = any

// Row is one spreadsheet row in column order.
type Row []Cell

// At returns the cell at index i, or nil when the row is shorter.
func (r Row) At(i int) Cell {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// IsEmpty reports whether every cell of the row is empty.
func (r Row) IsEmpty() bool {
	for _, c := range r {
		if !IsBlank(c) {
			return false
		}
	}
	return true
}

// IsBlank reports whether a cell carries no value.
func IsBlank(c Cell) bool {
	switch v := c.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}

// Text renders a cell as a string. Whole floats lose their fraction so that
// an account number typed as a number reads "4120" and not "4120.0".
func Text(c Cell) string {
	switch v := c.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return v.Format("02.01.2006")
	default:
		return fmt.Sprint(v)
	}
}

// Record pairs a header row with a data row for name based lookups.
type Record struct {
	// Number is the 1-based row number in the source sheet.
	Number int

	// Values maps a header cell text to the data cell below it.
	Values map[string]Cell
}

// NewRecord zips the header with a row. Header cells are trimmed; duplicate
// headers keep the first column.
func NewRecord(number int, header, row Row) Record {
	values := make(map[string]Cell, len(header))
	for i, h := range header {
		name := strings.TrimSpace(Text(h))
		if name == "" {
			continue
		}
		if _, ok := values[name]; ok {
			continue
		}
		values[name] = row.At(i)
	}
	return Record{Number: number, Values: values}
}

// Has reports whether the record has a column with this name.
func (r Record) Has(name string) bool {
	_, ok := r.Values[name]
	return ok
}

// Get returns the cell of the named column, nil when absent.
func (r Record) Get(name string) Cell {
	return r.Values[name]
}

// =============================================================================
// AMOUNTS
// =============================================================================

// Decimal reads an amount cell. Text may use a decimal point ("1234.56") or
// German notation with a decimal comma and optional thousands dots
// ("1.234,56"). Text with more than two fraction digits is rejected, so a
// thousands dot without a decimal comma ("1.234") never passes as 1.234.
// Failures are *InvalidAmountError.
func Decimal(c Cell) (decimal.Decimal, error) {
	invalid := func(reason string) (decimal.Decimal, error) {
		return decimal.Decimal{}, &InvalidAmountError{Input: Text(c), Reason: reason}
	}

	switch v := c.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case decimal.Decimal:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return invalid("empty")
		}
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return invalid("not a number")
		}
		if d.Exponent() < -2 {
			return invalid("more than two decimal places")
		}
		return d, nil
	case nil:
		return invalid("empty")
	}
	return invalid("not a number")
}
