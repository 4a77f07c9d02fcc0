// =============================================================================
// sepacetamol - DATEV Formatting
// =============================================================================
//
// Low level helpers shared by the DATEV records:
//   - German number and date formatting
//   - The semicolon separated row writer
//   - The empty string unquoting pass applied to every record line
//
// ROW WRITER RULES:
//   The DATEV importer expects text quoted and numbers bare. Every record is
//   first rendered naively (text in double quotes with "" escaping, integers
//   bare, absent values empty) and then passed through UnquoteEmpty, which
//   turns empty quoted text back into empty fields.
//
// =============================================================================

package datev

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FloatToGerman renders an amount with exactly two fraction digits and a
// decimal comma, without thousands separators: 1234567.89 -> "1234567,89".
func FloatToGerman(amount decimal.Decimal) string {
	return strings.Replace(amount.StringFixed(2), ".", ",", 1)
}

// DateToDatev renders a calendar date as YYYYMMDD.
func DateToDatev(t time.Time) string {
	return t.Format("20060102")
}

// UnquoteEmpty collapses empty quoted fields of a rendered record line.
//
// RULES:
//   1. Replace ;""; by ;; until none is left (overlapping runs need
//      several passes).
//   2. If the line ends in ;"" drop it and append a single ;.
//
// The leading field is never touched. Applying the function twice yields the
// same result as applying it once.
func UnquoteEmpty(line string) string {
	for strings.Contains(line, `;"";`) {
		line = strings.ReplaceAll(line, `;"";`, ";;")
	}
	if trimmed, ok := strings.CutSuffix(line, `;""`); ok {
		return trimmed + ";"
	}
	return line
}

// =============================================================================
// ROW WRITER
// =============================================================================

type cellKind int

const (
	cellEmpty cellKind = iota
	cellText
	cellNumber
)

// cell is one rendered field of a record line.
type cell struct {
	kind  cellKind
	value string
}

func text(s string) cell { return cell{kind: cellText, value: s} }

func number(n int) cell { return cell{kind: cellNumber, value: strconv.Itoa(n)} }

func optText(s *string) cell {
	if s == nil {
		return cell{}
	}
	return text(*s)
}

func optNumber(n *int) cell {
	if n == nil {
		return cell{}
	}
	return number(*n)
}

// writeRow joins the cells with semicolons. Text is always quoted.
func writeRow(cells []cell) string {
	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(';')
		}
		switch c.kind {
		case cellText:
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(c.value, `"`, `""`))
			b.WriteByte('"')
		case cellNumber:
			b.WriteString(c.value)
		}
	}
	return b.String()
}

// recordLine renders a record and applies the unquoting pass.
func recordLine(cells []cell) string {
	return UnquoteEmpty(writeRow(cells))
}
