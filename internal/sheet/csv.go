package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// ReadCSV reads delimited text. Every non-empty field becomes a trimmed
// string; consumers parse numbers and dates themselves.
func ReadCSV(r io.Reader, settings config.CSVSettings) (*Sheet, error) {
	enc, err := decoderFor(settings.Encoding)
	if err != nil {
		return nil, &types.ConversionError{Op: "read CSV", Err: err}
	}

	reader := csv.NewReader(transform.NewReader(r, enc.NewDecoder()))
	configureReader(reader, settings)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &types.ConversionError{Op: "read CSV", Err: err}
	}

	if settings.SkipRows > 0 {
		if settings.SkipRows >= len(records) {
			records = nil
		} else {
			records = records[settings.SkipRows:]
		}
	}

	rows := make([]types.Row, len(records))
	for i, record := range records {
		row := make(types.Row, len(record))
		for j, value := range record {
			row[j] = text(value)
		}
		rows[i] = row
	}

	return &Sheet{Name: "csv", Format: FormatCSV, Rows: rows}, nil
}

// configureReader applies the delimiter and comment settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ",", "comma":
		reader.Comma = ','
	case "", ";", "semicolon":
		reader.Comma = ';'
	default:
		reader.Comma = []rune(settings.Delimiter)[0]
	}

	if settings.Comment != "" {
		reader.Comment = []rune(settings.Comment)[0]
	}

	// Exports often end rows early when trailing cells are empty.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// decoderFor maps an encoding name to a decoder. UTF-8 input may start with
// a byte order mark.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8BOM, nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252, nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1, nil
	case "ISO-8859-15", "LATIN9", "LATIN-9":
		return charmap.ISO8859_15, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q", name)
}
