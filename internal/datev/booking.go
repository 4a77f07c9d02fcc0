package datev

// DebitCredit tells whether the amount is booked on the debit (S, Soll) or
// credit (H, Haben) side of Konto.
type DebitCredit string

const (
	Debit  DebitCredit = "S"
	Credit DebitCredit = "H"
)

// Opposite returns the other side.
func (dc DebitCredit) Opposite() DebitCredit {
	if dc == Credit {
		return Debit
	}
	return Credit
}

// BookingFields are the columns of one booking line, in file order.
type BookingFields struct {
	Umsatz         string      `field:"umsatz" validate:"pattern=amount"`
	SollHabenKZ    DebitCredit `field:"soll_haben_kz" validate:"oneof=S H"`
	WKZUmsatz      *string     `field:"wkz_umsatz" validate:"omitempty,pattern=currency"`
	Kurs           *string     `field:"kurs" validate:"omitempty,pattern=rate"`
	Basisumsatz    *string     `field:"basisumsatz" validate:"omitempty,pattern=amount"`
	WKZBasisumsatz *string     `field:"wkz_basisumsatz" validate:"omitempty,pattern=currency"`
	Konto          int         `field:"konto"`
	Gegenkonto     int         `field:"gegenkonto"`
	BUSchluessel   *int        `field:"bu_schluessel" validate:"omitempty,gte=1000,lte=9999"`
	Belegdatum     string      `field:"belegdatum" validate:"pattern=ddmm"`
	Belegfeld1     *string     `field:"belegfeld_1" validate:"omitempty,pattern=belegfeld1"`
	Belegfeld2     *string     `field:"belegfeld_2" validate:"omitempty,pattern=belegfeld2"`
	Skonto         *string     `field:"skonto" validate:"omitempty,pattern=discount"`
	Buchungstext   string      `field:"buchungstext" validate:"max=60"`
	Postensperre   *int        `field:"postensperre" validate:"omitempty,oneof=0 1"`
}

// bookingColumns are the external column names, in file order.
var bookingColumns = []string{
	"Umsatz",
	"Soll-/Haben-Kennzeichen",
	"WKZ Umsatz",
	"Kurs",
	"Basisumsatz",
	"WKZ Basisumsatz",
	"Konto",
	"Gegenkonto (ohne BU-Schlüssel)",
	"BU-Schlüssel",
	"Belegdatum",
	"Belegfeld 1",
	"Belegfeld 2",
	"Skonto",
	"Buchungstext",
	"Postensperre",
}

// Booking is a validated booking line.
type Booking struct {
	fields BookingFields
}

// NewBooking validates the fields and returns the booking record, or the
// first *types.SchemaViolationError.
func NewBooking(f BookingFields) (*Booking, error) {
	if err := engine().Struct(f); err != nil {
		return nil, err
	}
	return &Booking{fields: cloneBookingFields(f)}, nil
}

// Fields returns a copy of the validated fields.
func (b *Booking) Fields() BookingFields { return cloneBookingFields(b.fields) }

// CSV renders the booking line.
func (b *Booking) CSV() string {
	f := b.fields
	return recordLine([]cell{
		text(f.Umsatz),
		text(string(f.SollHabenKZ)),
		optText(f.WKZUmsatz),
		optText(f.Kurs),
		optText(f.Basisumsatz),
		optText(f.WKZBasisumsatz),
		number(f.Konto),
		number(f.Gegenkonto),
		optNumber(f.BUSchluessel),
		text(f.Belegdatum),
		optText(f.Belegfeld1),
		optText(f.Belegfeld2),
		optText(f.Skonto),
		text(f.Buchungstext),
		optNumber(f.Postensperre),
	})
}

// BookingColumnsCSV renders the column header line. All names are quoted and
// the unquoting pass is not applied.
func BookingColumnsCSV() string {
	cells := make([]cell, len(bookingColumns))
	for i, name := range bookingColumns {
		cells[i] = text(name)
	}
	return writeRow(cells)
}

func cloneBookingFields(f BookingFields) BookingFields {
	f.WKZUmsatz = clonePtr(f.WKZUmsatz)
	f.Kurs = clonePtr(f.Kurs)
	f.Basisumsatz = clonePtr(f.Basisumsatz)
	f.WKZBasisumsatz = clonePtr(f.WKZBasisumsatz)
	f.BUSchluessel = clonePtr(f.BUSchluessel)
	f.Belegfeld1 = clonePtr(f.Belegfeld1)
	f.Belegfeld2 = clonePtr(f.Belegfeld2)
	f.Skonto = clonePtr(f.Skonto)
	f.Postensperre = clonePtr(f.Postensperre)
	return f
}
