package datev

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// LineBreak separates the lines of a DATEV file.
const LineBreak = "\r\n"

// File is a complete EXTF booking batch: header line, column line and one
// line per booking.
type File struct {
	Header   *Header
	Bookings []*Booking
}

// Lines returns the text lines of the file in order.
func (f File) Lines() []string {
	lines := make([]string, 0, len(f.Bookings)+2)
	lines = append(lines, f.Header.CSV(), BookingColumnsCSV())
	for _, b := range f.Bookings {
		lines = append(lines, b.CSV())
	}
	return lines
}

// String joins the lines with CRLF, without a trailing line break.
func (f File) String() string {
	return strings.Join(f.Lines(), LineBreak)
}

// Encode returns the file in Windows-1252, the encoding DATEV imports.
// A character outside the code page fails the whole file with the line
// number it appears on.
func (f File) Encode() ([]byte, error) {
	if f.Header == nil {
		return nil, &types.ConversionError{Op: "encode DATEV file", Err: fmt.Errorf("missing header")}
	}

	encoder := charmap.Windows1252.NewEncoder()
	var out []byte
	for i, line := range f.Lines() {
		encoded, err := encoder.String(line)
		if err != nil {
			return nil, &types.ConversionError{
				Op:  fmt.Sprintf("encode line %d as Windows-1252", i+1),
				Err: err,
			}
		}
		if i > 0 {
			out = append(out, LineBreak...)
		}
		out = append(out, encoded...)
	}
	return out, nil
}
