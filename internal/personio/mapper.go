// =============================================================================
// sepacetamol - Personio to DATEV Mapper
// =============================================================================
//
// This module maps the rows of a Personio payroll accounting export to DATEV
// booking records and assembles the EXTF booking batch for one month.
//
// EXPORT LAYOUT:
//   The first non-empty row names the columns. Required columns:
//     Datum, Umsatz, S/H, Gegenkonto, Konto, Buchungstext
//   Optional columns:
//     Belegfeld 1 (older exports spell it "Beleg Feld 1")
//
// ROW RULES:
//   - Datum is a date cell, an Excel serial number or DD.MM.YYYY text
//   - A numeric Belegfeld 1 is written as an integer
//   - Buchungstext over 60 characters keeps 57 and gets "..."
//   - S/H defaults to S; a negative Umsatz flips the side and is made positive
//
// =============================================================================

package personio

import (
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/sepacetamol/internal/datev"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// =============================================================================
// COLUMN NAMES
// =============================================================================

const (
	ColumnDate        = "Datum"
	ColumnAmount      = "Umsatz"
	ColumnSide        = "S/H"
	ColumnContra      = "Gegenkonto"
	ColumnAccount     = "Konto"
	ColumnText        = "Buchungstext"
	ColumnDocument    = "Belegfeld 1"
	ColumnDocumentAlt = "Beleg Feld 1"
)

// RequiredColumns lists the columns every export must carry.
var RequiredColumns = []string{ColumnDate, ColumnAmount, ColumnSide, ColumnContra, ColumnAccount, ColumnText}

const (
	maxTextLength  = 60
	truncatedTo    = 57
	truncateSuffix = "..."
)

// berlin is the zone Personio dates are entered in.
var berlin = loadBerlin()

func loadBerlin() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.FixedZone("CET", 60*60)
	}
	return loc
}

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one mapped export row: the booking and the calendar date it was
// derived from. The date drives the header window of the batch.
type Entry struct {
	Row     int
	Date    time.Time
	Booking *datev.Booking
}

// =============================================================================
// MAPPING
// =============================================================================

// MapRows maps the data rows of an export.
//
// PARAMETERS:
//   - header: the column header row.
//   - rows:   the data rows, empty rows already removed.
//
// RETURNS:
//   - One entry per row, in input order.
//   - *types.MissingColumnError when a required column is absent.
//   - A *types.RowError wrapping *types.InvalidDateError,
//     *types.SchemaViolationError or *types.InvalidAmountError for the first
//     bad row. Row numbers count the header as row 1.
func MapRows(header types.Row, rows []types.Row) ([]Entry, error) {
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		number := i + 2
		entry, err := MapRecord(types.NewRecord(number, header, row))
		if err != nil {
			return nil, &types.RowError{Row: number, Err: err}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func checkColumns(header types.Row) error {
	present := make(map[string]bool, len(header))
	for _, c := range header {
		present[strings.TrimSpace(types.Text(c))] = true
	}
	for _, name := range RequiredColumns {
		if !present[name] {
			return &types.MissingColumnError{Column: name}
		}
	}
	return nil
}

// MapRecord maps a single named record.
func MapRecord(rec types.Record) (Entry, error) {
	for _, name := range RequiredColumns {
		if !rec.Has(name) {
			return Entry{}, &types.MissingColumnError{Column: name}
		}
	}

	date, err := parseDate(rec.Get(ColumnDate))
	if err != nil {
		return Entry{}, &types.InvalidDateError{Row: rec.Number, Column: ColumnDate, Value: types.Text(rec.Get(ColumnDate))}
	}

	amount, err := types.Decimal(rec.Get(ColumnAmount))
	if err != nil {
		return Entry{}, err
	}

	side := datev.DebitCredit(strings.TrimSpace(types.Text(rec.Get(ColumnSide))))
	switch side {
	case "":
		side = datev.Debit
	case datev.Debit, datev.Credit:
	default:
		return Entry{}, &types.SchemaViolationError{Field: "soll_haben_kz", Constraint: "one of [S H]", Value: string(side)}
	}
	if amount.IsNegative() {
		side = side.Opposite()
	}

	konto, err := parseAccount(ColumnAccount, rec.Get(ColumnAccount))
	if err != nil {
		return Entry{}, err
	}
	gegenkonto, err := parseAccount(ColumnContra, rec.Get(ColumnContra))
	if err != nil {
		return Entry{}, err
	}

	booking, err := datev.NewBooking(datev.BookingFields{
		Umsatz:       datev.FloatToGerman(amount.Abs()),
		SollHabenKZ:  side,
		Konto:        konto,
		Gegenkonto:   gegenkonto,
		Belegdatum:   date.Format("0201"),
		Belegfeld1:   documentField(rec),
		Buchungstext: truncateText(types.Text(rec.Get(ColumnText))),
	})
	if err != nil {
		return Entry{}, err
	}

	return Entry{Row: rec.Number, Date: date, Booking: booking}, nil
}

// =============================================================================
// FIELD CONVERSIONS
// =============================================================================

// parseDate accepts a date cell, an Excel serial number or DD.MM.YYYY text.
// The result is a calendar date in Europe/Berlin.
func parseDate(c types.Cell) (time.Time, error) {
	switch v := c.(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, berlin), nil
	case float64:
		t, err := excelize.ExcelDateToTime(v, false)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, berlin), nil
	case string:
		return time.ParseInLocation("02.01.2006", strings.TrimSpace(v), berlin)
	}
	return time.Time{}, &time.ParseError{Value: types.Text(c), Layout: "02.01.2006"}
}

// parseAccount accepts integer cells and integer text.
func parseAccount(column string, c types.Cell) (int, error) {
	switch v := c.(type) {
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, nil
		}
	}
	return 0, &types.SchemaViolationError{
		Field:      strings.ToLower(column),
		Constraint: "integer",
		Value:      types.Text(c),
	}
}

// documentField reads Belegfeld 1 under either spelling. Numbers lose their
// fraction, empty cells stay absent.
func documentField(rec types.Record) *string {
	c := rec.Get(ColumnDocument)
	if types.IsBlank(c) {
		c = rec.Get(ColumnDocumentAlt)
	}
	if types.IsBlank(c) {
		return nil
	}

	var s string
	if f, ok := c.(float64); ok {
		s = strconv.FormatInt(int64(f), 10)
	} else {
		s = types.Text(c)
	}
	return &s
}

func truncateText(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTextLength {
		return s
	}
	return string(runes[:truncatedTo]) + truncateSuffix
}
