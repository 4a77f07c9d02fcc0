package datev

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// Flag marks who produced a file: EXTF for third party software, DTVF for
// DATEV's own programs.
type Flag string

const (
	FlagEXTF Flag = "EXTF"
	FlagDTVF Flag = "DTVF"
)

// FormatCategory is the numeric DATEV data category.
type FormatCategory int

const (
	CategoryDebitorsCreditors FormatCategory = 16
	CategoryAccountLabels     FormatCategory = 20
	CategoryBookingBatch      FormatCategory = 21
	CategoryPaymentTerms      FormatCategory = 46
	CategoryMiscAddresses     FormatCategory = 48
	CategoryRecurringBookings FormatCategory = 65
)

// FormatName is the textual DATEV data category.
type FormatName string

const (
	NameBookingBatch      FormatName = "Buchungsstapel"
	NameRecurringBookings FormatName = "Wiederkehrende Buchungen"
	NameDebitorsCreditors FormatName = "Debitoren/Kreditoren"
	NameAccountLabels     FormatName = "Sachkontenbeschriftungen"
	NamePaymentTerms      FormatName = "Zahlungsbedingungen"
	NameMiscAddresses     FormatName = "Diverse Adressen"
)

// categoryNames pairs every category with the only name it may carry.
var categoryNames = map[FormatCategory]FormatName{
	CategoryDebitorsCreditors: NameDebitorsCreditors,
	CategoryAccountLabels:     NameAccountLabels,
	CategoryBookingBatch:      NameBookingBatch,
	CategoryPaymentTerms:      NamePaymentTerms,
	CategoryMiscAddresses:     NameMiscAddresses,
	CategoryRecurringBookings: NameRecurringBookings,
}

// VersionNumber is the only header version this package writes.
const VersionNumber = 700

// Date is a calendar date in DATEV notation, YYYYMMDD. It is written as a
// bare number.
type Date string

// DateOf converts a calendar date.
func DateOf(t time.Time) Date { return Date(DateToDatev(t)) }

// DateFromInt converts the integer notation, e.g. 20200101.
func DateFromInt(n int) Date { return Date(strconv.Itoa(n)) }

// Time parses the date. It fails for values that were never validated.
func (d Date) Time() (time.Time, error) {
	return time.Parse("20060102", string(d))
}

// =============================================================================
// HEADER
// =============================================================================

// HeaderFields are the 31 positional fields of the first line of a DATEV
// file, in file order. Optional fields are pointers; nil is written empty.
type HeaderFields struct {
	Flag                   Flag           `field:"flag" validate:"oneof=EXTF DTVF"`
	VersionNumber          int            `field:"version_number" validate:"oneof=700"`
	FormatCategory         FormatCategory `field:"format_category" validate:"oneof=16 20 21 46 48 65"`
	FormatName             FormatName     `field:"format_name" validate:"pattern=format_name"`
	FormatVersion          int            `field:"format_version" validate:"oneof=2 4 5 9 12"`
	CreatedOn              *string        `field:"created_on" validate:"omitempty,pattern=timestamp"`
	Reserved07             string         `field:"reserved_07" validate:"max=0"`
	Reserved08             *string        `field:"reserved_08" validate:"omitempty,pattern=word2"`
	Reserved09             *string        `field:"reserved_09" validate:"omitempty,pattern=word25"`
	Reserved10             *string        `field:"reserved_10" validate:"omitempty,pattern=word25"`
	ConsultantNumber       int            `field:"consultant_number" validate:"gte=1001,lte=9999999"`
	ClientNumber           int            `field:"client_number" validate:"gte=1,lte=99999"`
	BusinessYearStart      Date           `field:"business_year_start" validate:"pattern=date"`
	GLAccountLength        int            `field:"gl_account_length" validate:"gte=4,lte=8"`
	DateFrom               Date           `field:"date_from" validate:"pattern=date"`
	DateTill               Date           `field:"date_till" validate:"pattern=date"`
	Designation            string         `field:"designation" validate:"pattern=designation"`
	Initials               *string        `field:"initials" validate:"omitempty,pattern=initials"`
	RecordType             *int           `field:"record_type" validate:"omitempty,oneof=1 2"`
	AccountingReason       *int           `field:"accounting_reason" validate:"omitempty,oneof=0 30 40 50 64"`
	Locking                *int           `field:"locking" validate:"required,oneof=0 1"`
	CurrencyCode           string         `field:"currency_code" validate:"pattern=currency"`
	Reserved23             string         `field:"reserved_23" validate:"max=0"`
	DerivativesFlag        string         `field:"derivatives_flag" validate:"max=0"`
	Reserved25             string         `field:"reserved_25" validate:"max=0"`
	Reserved26             string         `field:"reserved_26" validate:"max=0"`
	GLChartOfAccounts      string         `field:"gl_chart_of_accounts" validate:"pattern=chart"`
	IndustrySolutionID     *int           `field:"industry_solution_id" validate:"omitempty,gte=0,lte=9999"`
	Reserved29             string         `field:"reserved_29" validate:"max=0"`
	Reserved30             string         `field:"reserved_30" validate:"max=0"`
	ApplicationInformation string         `field:"application_information" validate:"max=16"`
}

// Header is a validated header line. It cannot be changed after NewHeader.
type Header struct {
	fields HeaderFields
}

// NewHeader validates the fields and returns the header record.
//
// DEFAULTS:
//   - VersionNumber 0 becomes 700
//   - CurrencyCode "" becomes EUR
//
// RETURNS:
//   - *types.SchemaViolationError for the first field breaking its
//     constraint, including the category/name pairing and the date window.
func NewHeader(f HeaderFields) (*Header, error) {
	if f.VersionNumber == 0 {
		f.VersionNumber = VersionNumber
	}
	if f.CurrencyCode == "" {
		f.CurrencyCode = "EUR"
	}

	if err := engine().Struct(f); err != nil {
		return nil, err
	}
	if err := checkCategoryName(f); err != nil {
		return nil, err
	}
	if err := checkDateWindow(f); err != nil {
		return nil, err
	}

	return &Header{fields: cloneHeaderFields(f)}, nil
}

// Fields returns a copy of the validated fields.
func (h *Header) Fields() HeaderFields { return cloneHeaderFields(h.fields) }

// CSV renders the header line.
func (h *Header) CSV() string {
	f := h.fields
	return recordLine([]cell{
		text(string(f.Flag)),
		number(f.VersionNumber),
		number(int(f.FormatCategory)),
		text(string(f.FormatName)),
		number(f.FormatVersion),
		optText(f.CreatedOn),
		text(f.Reserved07),
		optText(f.Reserved08),
		optText(f.Reserved09),
		optText(f.Reserved10),
		number(f.ConsultantNumber),
		number(f.ClientNumber),
		dateCell(f.BusinessYearStart),
		number(f.GLAccountLength),
		dateCell(f.DateFrom),
		dateCell(f.DateTill),
		text(f.Designation),
		optText(f.Initials),
		optNumber(f.RecordType),
		optNumber(f.AccountingReason),
		optNumber(f.Locking),
		text(f.CurrencyCode),
		text(f.Reserved23),
		text(f.DerivativesFlag),
		text(f.Reserved25),
		text(f.Reserved26),
		text(f.GLChartOfAccounts),
		optNumber(f.IndustrySolutionID),
		text(f.Reserved29),
		text(f.Reserved30),
		text(f.ApplicationInformation),
	})
}

// dateCell writes a validated date as a bare number.
func dateCell(d Date) cell { return cell{kind: cellNumber, value: string(d)} }

// =============================================================================
// CROSS FIELD CHECKS
// =============================================================================

func checkCategoryName(f HeaderFields) error {
	want := categoryNames[f.FormatCategory]
	if f.FormatName == want {
		return nil
	}
	return &types.SchemaViolationError{
		Field:      "format_name",
		Constraint: fmt.Sprintf("must be %q for format_category %d", want, f.FormatCategory),
		Value:      string(f.FormatName),
	}
}

// checkDateWindow requires business_year_start <= date_from <= date_till and
// date_till inside the business year.
func checkDateWindow(f HeaderFields) error {
	start, err := f.BusinessYearStart.Time()
	if err != nil {
		return dateViolation("business_year_start", "calendar date", f.BusinessYearStart)
	}
	from, err := f.DateFrom.Time()
	if err != nil {
		return dateViolation("date_from", "calendar date", f.DateFrom)
	}
	till, err := f.DateTill.Time()
	if err != nil {
		return dateViolation("date_till", "calendar date", f.DateTill)
	}

	switch {
	case from.Before(start):
		return dateViolation("date_from", "not before business_year_start", f.DateFrom)
	case till.Before(from):
		return dateViolation("date_till", "not before date_from", f.DateTill)
	case !till.Before(start.AddDate(1, 0, 0)):
		return dateViolation("date_till", "inside the business year", f.DateTill)
	}
	return nil
}

func dateViolation(field, constraint string, d Date) error {
	return &types.SchemaViolationError{Field: field, Constraint: constraint, Value: string(d)}
}

func cloneHeaderFields(f HeaderFields) HeaderFields {
	f.CreatedOn = clonePtr(f.CreatedOn)
	f.Reserved08 = clonePtr(f.Reserved08)
	f.Reserved09 = clonePtr(f.Reserved09)
	f.Reserved10 = clonePtr(f.Reserved10)
	f.Initials = clonePtr(f.Initials)
	f.RecordType = clonePtr(f.RecordType)
	f.AccountingReason = clonePtr(f.AccountingReason)
	f.Locking = clonePtr(f.Locking)
	f.IndustrySolutionID = clonePtr(f.IndustrySolutionID)
	return f
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
