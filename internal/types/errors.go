package types

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TAXONOMY
// =============================================================================
// Every error a conversion can return to a caller is one of the types below,
// possibly wrapped with context. Callers match them with errors.As.

// InvalidIBANError is returned when an IBAN fails format, country, length or
// checksum validation.
type InvalidIBANError struct {
	Input  string
	Reason string
}

func (e *InvalidIBANError) Error() string {
	return fmt.Sprintf("invalid IBAN %q: %s", e.Input, e.Reason)
}

// UnsupportedOriginatorCountryError is returned when the debtor account is
// not a German IBAN.
type UnsupportedOriginatorCountryError struct {
	Country string
}

func (e *UnsupportedOriginatorCountryError) Error() string {
	return fmt.Sprintf("only German originator IBANs are supported, got %q", e.Country)
}

// InvalidAmountError is returned for amounts that are not strictly positive
// after conversion to minor units, or that cannot be parsed at all.
type InvalidAmountError struct {
	Input  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

// SchemaViolationError reports the first field of a DATEV record that breaks
// its constraint.
type SchemaViolationError struct {
	Field      string
	Constraint string
	Value      string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("field %s violates %s (value %q)", e.Field, e.Constraint, e.Value)
}

// MissingColumnError is returned when a required column is absent from the
// header row of a payroll export.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing column %q", e.Column)
}

// InvalidDateError is returned when a date cell is neither a date nor text in
// DD.MM.YYYY form.
type InvalidDateError struct {
	Row    int
	Column string
	Value  string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("row %d: column %q: invalid date %q, expected DD.MM.YYYY", e.Row, e.Column, e.Value)
}

// ConversionError wraps structural failures of a conversion step, such as an
// unreadable workbook or an empty export.
type ConversionError struct {
	Op  string
	Err error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// RowError attaches the 1-based source row number to an error raised while
// mapping that row.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// IsUserError reports whether err was caused by the submitted data rather
// than by the system. Adapters map these to client errors.
func IsUserError(err error) bool {
	var (
		ibanErr    *InvalidIBANError
		countryErr *UnsupportedOriginatorCountryError
		amountErr  *InvalidAmountError
		schemaErr  *SchemaViolationError
		columnErr  *MissingColumnError
		dateErr    *InvalidDateError
		convErr    *ConversionError
	)
	switch {
	case errors.As(err, &ibanErr),
		errors.As(err, &countryErr),
		errors.As(err, &amountErr),
		errors.As(err, &schemaErr),
		errors.As(err, &columnErr),
		errors.As(err, &dateErr),
		errors.As(err, &convErr):
		return true
	}
	return false
}
