package sheet

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

func workbook(t *testing.T, cells map[string]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for ref, value := range cells {
		require.NoError(t, f.SetCellValue("Sheet1", ref, value))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	assert.Equal(t, FormatXLSX, Detect([]byte("PK\x03\x04rest")))
	assert.Equal(t, FormatCSV, Detect([]byte("Datum;Umsatz")))
	assert.Equal(t, FormatCSV, Detect(nil))
}

func TestReadXLSX(t *testing.T) {
	content := workbook(t, map[string]any{
		"A1": "Datum", "B1": "Umsatz", "C1": "Konto", "D1": "Aktiv",
		"A3": "  01.06.2023 ", "B3": 123456.78, "C3": "1755", "D3": true,
		"B4": 42,
	})

	s, err := Read(bytes.NewReader(content), config.CSVSettings{})
	require.NoError(t, err)

	assert.Equal(t, FormatXLSX, s.Format)
	assert.Equal(t, "Sheet1", s.Name)
	require.Len(t, s.Rows, 4)

	assert.Equal(t, types.Row{"Datum", "Umsatz", "Konto", "Aktiv"}, s.Rows[0])
	assert.True(t, s.Rows[1].IsEmpty())
	assert.Equal(t, "01.06.2023", s.Rows[2].At(0))
	assert.Equal(t, 123456.78, s.Rows[2].At(1))
	assert.Equal(t, "1755", s.Rows[2].At(2))
	assert.Equal(t, "TRUE", s.Rows[2].At(3))
	assert.Nil(t, s.Rows[3].At(0))
	assert.Equal(t, 42.0, s.Rows[3].At(1))

	header, data, err := s.Table()
	require.NoError(t, err)
	assert.Equal(t, "Datum", header.At(0))
	assert.Len(t, data, 2)
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffDatum;Umsatz;Buchungstext\n01.06.2023; 1.234,56 ;\"Lohn; Juni\"\n\n30.06.2023;-50,00\n"

	s, err := Read(strings.NewReader(input), config.CSVSettings{Delimiter: ";"})
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, s.Format)

	header, data, err := s.Table()
	require.NoError(t, err)
	assert.Equal(t, types.Row{"Datum", "Umsatz", "Buchungstext"}, header)
	require.Len(t, data, 2)
	assert.Equal(t, types.Row{"01.06.2023", "1.234,56", "Lohn; Juni"}, data[0])
	assert.Equal(t, types.Row{"30.06.2023", "-50,00"}, data[1])
}

func TestReadCSVSettings(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("Export vom 01.07.2023\n# Kommentar\nName|Betrag\nMüller|10\n")
	require.NoError(t, err)

	s, err := ReadCSV(strings.NewReader(encoded), config.CSVSettings{
		Delimiter: "pipe",
		Encoding:  "Windows-1252",
		SkipRows:  1,
		Comment:   "#",
	})
	require.NoError(t, err)
	require.Len(t, s.Rows, 2)
	assert.Equal(t, types.Row{"Name", "Betrag"}, s.Rows[0])
	assert.Equal(t, types.Row{"Müller", "10"}, s.Rows[1])
}

func TestReadErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a;b"), config.CSVSettings{Encoding: "EBCDIC"})
	var convErr *types.ConversionError
	assert.True(t, errors.As(err, &convErr))

	_, err = Read(bytes.NewReader([]byte("PK\x03\x04broken")), config.CSVSettings{})
	assert.True(t, errors.As(err, &convErr))

	s, err := Read(strings.NewReader(""), config.CSVSettings{})
	require.NoError(t, err)
	_, _, err = s.Table()
	assert.True(t, errors.As(err, &convErr))
}
