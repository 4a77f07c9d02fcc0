package personio

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/sepacetamol/internal/datev"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

var exportHeader = types.Row{
	"Datum", "Kostenstelle", "Mitarbeiter", "Umsatz", "S/H", "Steuer", "Währung",
	"Gegenkonto", "Konto", "Belegfeld 1", "Buchungstext", "Periode", "Notiz",
}

func exportRow(date types.Cell, amount types.Cell, side types.Cell, text string) types.Row {
	return types.Row{date, nil, nil, amount, side, nil, nil, "4120", "1755", "202306", text, nil, nil}
}

func ptr[T any](v T) *T { return &v }

func TestMapRowsGolden(t *testing.T) {
	entries, err := MapRows(exportHeader, []types.Row{
		exportRow("01.06.2023", 123456.78, "H", "Festbezug Gehaelter"),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, 2023, entry.Date.Year())
	assert.Equal(t, time.June, entry.Date.Month())
	assert.Equal(t, 1, entry.Date.Day())

	want, err := datev.NewBooking(datev.BookingFields{
		Umsatz:       "123456,78",
		SollHabenKZ:  datev.Credit,
		Konto:        1755,
		Gegenkonto:   4120,
		Belegdatum:   "0106",
		Belegfeld1:   ptr("202306"),
		Buchungstext: "Festbezug Gehaelter",
	})
	require.NoError(t, err)
	assert.Equal(t, want.Fields(), entry.Booking.Fields())
}

func TestMapRowsSignFlip(t *testing.T) {
	tests := []struct {
		name   string
		amount types.Cell
		side   types.Cell
		want   datev.DebitCredit
		umsatz string
	}{
		{"negative debit becomes credit", -50.0, "S", datev.Credit, "50,00"},
		{"negative credit becomes debit", -50.0, "H", datev.Debit, "50,00"},
		{"missing side defaults to debit", 12.5, nil, datev.Debit, "12,50"},
		{"negative without side", -7.0, "", datev.Credit, "7,00"},
		{"german text amount", "-1.234,56", "S", datev.Credit, "1234,56"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := MapRows(exportHeader, []types.Row{exportRow("15.03.2024", tt.amount, tt.side, "Lohn")})
			require.NoError(t, err)

			f := entries[0].Booking.Fields()
			assert.Equal(t, tt.want, f.SollHabenKZ)
			assert.Equal(t, tt.umsatz, f.Umsatz)
			assert.Equal(t, "1503", f.Belegdatum)
		})
	}
}

func TestMapRowsDateCells(t *testing.T) {
	native := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)

	entries, err := MapRows(exportHeader, []types.Row{
		exportRow(native, 1.0, "S", "native"),
		exportRow(45107.0, 1.0, "S", "serial"),
	})
	require.NoError(t, err)

	assert.Equal(t, "3006", entries[0].Booking.Fields().Belegdatum)
	assert.Equal(t, "3006", entries[1].Booking.Fields().Belegdatum)
	assert.Equal(t, "Europe/Berlin", entries[0].Date.Location().String())
}

func TestMapRowsTruncatesText(t *testing.T) {
	long := strings.Repeat("a", 61)

	entries, err := MapRows(exportHeader, []types.Row{exportRow("01.06.2023", 1.0, "S", long)})
	require.NoError(t, err)

	text := entries[0].Booking.Fields().Buchungstext
	assert.Len(t, []rune(text), 60)
	assert.Equal(t, strings.Repeat("a", 57)+"...", text)

	exact := strings.Repeat("ü", 60)
	entries, err = MapRows(exportHeader, []types.Row{exportRow("01.06.2023", 1.0, "S", exact)})
	require.NoError(t, err)
	assert.Equal(t, exact, entries[0].Booking.Fields().Buchungstext)
}

func TestMapRowsDocumentField(t *testing.T) {
	header := types.Row{"Datum", "Umsatz", "S/H", "Gegenkonto", "Konto", "Beleg Feld 1", "Buchungstext"}

	entries, err := MapRows(header, []types.Row{
		{"01.06.2023", 10.0, "S", 4120.0, 1755.0, 202306.0, "alias numeric"},
		{"01.06.2023", 10.0, "S", "4120", "1755", nil, "absent"},
	})
	require.NoError(t, err)

	first := entries[0].Booking.Fields()
	require.NotNil(t, first.Belegfeld1)
	assert.Equal(t, "202306", *first.Belegfeld1)
	assert.Equal(t, 1755, first.Konto)
	assert.Equal(t, 4120, first.Gegenkonto)

	assert.Nil(t, entries[1].Booking.Fields().Belegfeld1)
}

func TestMapRowsErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		header := types.Row{"Datum", "Umsatz", "S/H", "Gegenkonto", "Konto"}
		_, err := MapRows(header, nil)

		var missing *types.MissingColumnError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "Buchungstext", missing.Column)
	})

	t.Run("invalid date", func(t *testing.T) {
		_, err := MapRows(exportHeader, []types.Row{
			exportRow("01.06.2023", 1.0, "S", "ok"),
			exportRow("2023-06-01", 1.0, "S", "iso date"),
		})

		var dateErr *types.InvalidDateError
		require.True(t, errors.As(err, &dateErr))
		assert.Equal(t, 3, dateErr.Row)
		assert.Equal(t, "2023-06-01", dateErr.Value)

		var rowErr *types.RowError
		require.True(t, errors.As(err, &rowErr))
		assert.Equal(t, 3, rowErr.Row)
	})

	t.Run("schema violation", func(t *testing.T) {
		_, err := MapRows(exportHeader, []types.Row{exportRow("01.06.2023", 1.0, "X", "bad side")})

		var violation *types.SchemaViolationError
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, "soll_haben_kz", violation.Field)
	})

	t.Run("amount too large", func(t *testing.T) {
		_, err := MapRows(exportHeader, []types.Row{exportRow("01.06.2023", 12345678901.0, "S", "huge")})

		var violation *types.SchemaViolationError
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, "umsatz", violation.Field)
	})

	t.Run("amount not a number", func(t *testing.T) {
		_, err := MapRows(exportHeader, []types.Row{exportRow("01.06.2023", "zwölf", "S", "text")})

		var amountErr *types.InvalidAmountError
		require.True(t, errors.As(err, &amountErr))
	})
}

func TestWindow(t *testing.T) {
	yearStart, from, till := Window(time.Date(2023, 6, 17, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "20230101", datev.DateToDatev(yearStart))
	assert.Equal(t, "20230601", datev.DateToDatev(from))
	assert.Equal(t, "20230630", datev.DateToDatev(till))

	_, _, till = Window(time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "20240229", datev.DateToDatev(till))

	_, _, till = Window(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "20231231", datev.DateToDatev(till))
}

func TestConvert(t *testing.T) {
	export, err := Convert(exportHeader, []types.Row{
		exportRow("01.06.2023", 123456.78, "H", "Festbezug Gehaelter"),
		exportRow("30.06.2023", -50.0, "S", "Rückzahlung Vorschuss"),
	}, Settings{ConsultantNumber: 1001, ClientNumber: 99999})
	require.NoError(t, err)

	assert.Equal(t, "EXTF_Personio-2023-06.csv", export.Filename)

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(export.Content)
	require.NoError(t, err)
	lines := strings.Split(string(decoded), "\r\n")
	require.Len(t, lines, 4)

	assert.Equal(t, `"EXTF";700;21;"Buchungsstapel";9;;;;;;1001;99999;20230101;4;20230601;20230630;"Lohnbuchungen 2023-06";;;;0;"EUR";;;;;"03";;;;`, lines[0])
	assert.Equal(t, datev.BookingColumnsCSV(), lines[1])
	assert.Equal(t, `"123456,78";"H";;;;;1755;4120;;"0106";"202306";;;"Festbezug Gehaelter";`, lines[2])
	assert.Equal(t, `"50,00";"H";;;;;1755;4120;;"3006";"202306";;;"Rückzahlung Vorschuss";`, lines[3])
}

func TestConvertRejects(t *testing.T) {
	t.Run("settings", func(t *testing.T) {
		_, err := Convert(exportHeader, nil, Settings{ConsultantNumber: 0, ClientNumber: 1})

		var violation *types.SchemaViolationError
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, "consultant_number", violation.Field)
	})

	t.Run("consultant number below DATEV range", func(t *testing.T) {
		_, err := Convert(exportHeader, []types.Row{exportRow("01.06.2023", 1.0, "S", "x")}, Settings{ConsultantNumber: 5, ClientNumber: 1})

		var violation *types.SchemaViolationError
		require.True(t, errors.As(err, &violation))
		assert.Equal(t, "consultant_number", violation.Field)
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := Convert(exportHeader, nil, Settings{ConsultantNumber: 1001, ClientNumber: 1})

		var convErr *types.ConversionError
		require.True(t, errors.As(err, &convErr))
	})
}
