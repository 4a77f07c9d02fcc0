package personio

import (
	"errors"
	"fmt"
	"time"

	"github.com/ginjaninja78/sepacetamol/internal/datev"
	"github.com/ginjaninja78/sepacetamol/internal/types"
	"github.com/ginjaninja78/sepacetamol/internal/validation"
)

// Settings are the DATEV numbers the operator enters per conversion.
type Settings struct {
	ConsultantNumber int `field:"consultant_number" validate:"gt=0"`
	ClientNumber     int `field:"client_number" validate:"gt=0"`
}

var settingsEngine = validation.New(nil)

// Validate checks that both numbers are positive. The DATEV header applies
// the tighter ranges later.
func (s Settings) Validate() error {
	return settingsEngine.Struct(s)
}

// Export is a finished DATEV booking batch ready to be handed to a caller.
type Export struct {
	Filename string
	Month    time.Time
	File     datev.File
	Content  []byte
}

// ContentType is the media type of an encoded export.
const ContentType = "text/csv"

// Convert maps a whole export sheet to an EXTF booking batch.
//
// PARAMETERS:
//   - header:   the column header row.
//   - rows:     the data rows, empty rows removed.
//   - settings: consultant and client number.
//
// RETURNS:
//   - The export with Windows-1252 content and the file name
//     EXTF_Personio-YYYY-MM.csv, where the month is that of the first row.
//   - The first mapping, validation or encoding error. Nothing is returned
//     on error.
func Convert(header types.Row, rows []types.Row, settings Settings) (*Export, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	entries, err := MapRows(header, rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &types.ConversionError{Op: "convert Personio export", Err: errors.New("no bookings found")}
	}

	first := entries[0].Date
	h, err := datev.NewHeader(HeaderFieldsFor(first, settings))
	if err != nil {
		return nil, fmt.Errorf("build DATEV header: %w", err)
	}

	bookings := make([]*datev.Booking, len(entries))
	for i, e := range entries {
		bookings[i] = e.Booking
	}

	file := datev.File{Header: h, Bookings: bookings}
	content, err := file.Encode()
	if err != nil {
		return nil, err
	}

	return &Export{
		Filename: Filename(first),
		Month:    time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, first.Location()),
		File:     file,
		Content:  content,
	}, nil
}

// Window returns the business year start and the first and last day of the
// month of d.
func Window(d time.Time) (yearStart, from, till time.Time) {
	loc := d.Location()
	yearStart = time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, loc)
	from = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, loc)
	till = from.AddDate(0, 1, -1)
	return yearStart, from, till
}

// HeaderFieldsFor builds the booking batch header for the month of d.
func HeaderFieldsFor(d time.Time, settings Settings) datev.HeaderFields {
	yearStart, from, till := Window(d)
	locking := 0

	return datev.HeaderFields{
		Flag:              datev.FlagEXTF,
		FormatCategory:    datev.CategoryBookingBatch,
		FormatName:        datev.NameBookingBatch,
		FormatVersion:     9,
		ConsultantNumber:  settings.ConsultantNumber,
		ClientNumber:      settings.ClientNumber,
		BusinessYearStart: datev.DateOf(yearStart),
		GLAccountLength:   4,
		DateFrom:          datev.DateOf(from),
		DateTill:          datev.DateOf(till),
		Designation:       "Lohnbuchungen " + d.Format("2006-01"),
		CurrencyCode:      "EUR",
		Locking:           &locking,
		GLChartOfAccounts: "03",
	}
}

// Filename is the download name of the batch for the month of d.
func Filename(d time.Time) string {
	return "EXTF_Personio-" + d.Format("2006-01") + ".csv"
}
