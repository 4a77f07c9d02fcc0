// =============================================================================
// sepacetamol - IBAN / BIC Validator
// =============================================================================
//
// This package validates and normalizes International Bank Account Numbers
// (ISO 13616) and derives the BIC of German accounts from the bank code that
// is embedded in every German IBAN.
//
// VALIDATION STEPS:
//   1. Drop everything but ASCII letters and digits, upper-case the rest
//   2. Check the country code against the IBAN registry
//   3. Check the country specific length
//   4. Check the BBAN structure and the ISO 7064 mod-97-10 checksum
//      (github.com/jbub/banking)
//
// =============================================================================

package iban

import (
	"strings"

	bankiban "github.com/jbub/banking/iban"
	bankbic "github.com/jbub/banking/swift"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// =============================================================================
// COUNTRY TABLES
// =============================================================================

// lengths is the total IBAN length per country, as published in the SWIFT
// IBAN registry.
var lengths = map[string]int{
	"AD": 24, "AE": 23, "AL": 28, "AT": 20, "AZ": 28, "BA": 20, "BE": 16,
	"BG": 22, "BH": 22, "BR": 29, "BY": 28, "CH": 21, "CR": 22, "CY": 28,
	"CZ": 24, "DE": 22, "DK": 18, "DO": 28, "EE": 20, "EG": 29, "ES": 24,
	"FI": 18, "FO": 18, "FR": 27, "GB": 22, "GE": 22, "GI": 23, "GL": 18,
	"GR": 27, "GT": 28, "HR": 21, "HU": 28, "IE": 22, "IL": 23, "IQ": 23,
	"IS": 26, "IT": 27, "JO": 30, "KW": 30, "KZ": 20, "LB": 28, "LC": 32,
	"LI": 21, "LT": 20, "LU": 20, "LV": 21, "LY": 25, "MC": 27, "MD": 24,
	"ME": 22, "MK": 19, "MR": 27, "MT": 31, "MU": 30, "NL": 18, "NO": 15,
	"PK": 24, "PL": 28, "PS": 29, "PT": 25, "QA": 29, "RO": 24, "RS": 22,
	"SA": 24, "SC": 31, "SE": 24, "SI": 19, "SK": 24, "SM": 27, "ST": 25,
	"SV": 28, "TL": 23, "TN": 24, "TR": 26, "UA": 29, "VA": 22, "VG": 24,
	"XK": 20,
}

// sepaCountries are the IBAN country codes taking part in the SEPA scheme.
var sepaCountries = map[string]bool{
	// EU
	"AT": true, "BE": true, "BG": true, "CY": true, "CZ": true, "DE": true,
	"DK": true, "EE": true, "ES": true, "FI": true, "FR": true, "GR": true,
	"HR": true, "HU": true, "IE": true, "IT": true, "LT": true, "LU": true,
	"LV": true, "MT": true, "NL": true, "PL": true, "PT": true, "RO": true,
	"SE": true, "SI": true, "SK": true,
	// EEA
	"IS": true, "LI": true, "NO": true,
	// non-EEA participants
	"AD": true, "CH": true, "GB": true, "GI": true, "MC": true, "SM": true,
	"VA": true,
}

// =============================================================================
// IBAN VALUE
// =============================================================================

// IBAN is a validated account number in compact, upper-case form.
// The zero value is not a valid IBAN; obtain one through Parse.
type IBAN struct {
	compact string
}

// Parse validates and normalizes raw user input.
//
// PARAMETERS:
//   - raw: the IBAN as typed. Spaces and punctuation are ignored.
//
// RETURNS:
//   - The validated IBAN.
//   - *types.InvalidIBANError describing the first failed check.
func Parse(raw string) (IBAN, error) {
	compact := clean(raw)
	fail := func(reason string) (IBAN, error) {
		return IBAN{}, &types.InvalidIBANError{Input: raw, Reason: reason}
	}

	if compact == "" {
		return fail("empty value")
	}
	if len(compact) < 5 {
		return fail("too short")
	}

	country := compact[:2]
	if !isUpperAlpha(country) {
		return fail("missing country code")
	}
	want, ok := lengths[country]
	if !ok {
		return fail("unknown country code " + country)
	}
	if len(compact) != want {
		return fail("invalid length for " + country)
	}
	if !isDigits(compact[2:4]) {
		return fail("invalid check digits")
	}
	if country == "DE" && !isDigits(compact[4:]) {
		return fail("German account numbers are numeric")
	}
	if err := bankiban.Validate(compact); err != nil {
		return fail("fails ISO 13616 structure or checksum: " + err.Error())
	}

	return IBAN{compact: compact}, nil
}

// String returns the compact electronic form, e.g. DE89370400440532013000.
func (i IBAN) String() string { return i.compact }

// Formatted returns the print form in groups of four characters.
func (i IBAN) Formatted() string {
	var b strings.Builder
	for n, r := range i.compact {
		if n > 0 && n%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CountryCode returns the ISO 3166 country prefix.
func (i IBAN) CountryCode() string {
	if len(i.compact) < 2 {
		return ""
	}
	return i.compact[:2]
}

// BankCode returns the German Bankleitzahl, or "" for other countries.
func (i IBAN) BankCode() string {
	if i.CountryCode() != "DE" {
		return ""
	}
	return i.compact[4:12]
}

// IsSEPA reports whether the account country takes part in SEPA.
func (i IBAN) IsSEPA() bool {
	return sepaCountries[i.CountryCode()]
}

// BIC derives the BIC for German accounts from the active bank registry.
// It returns "" for other countries and for unknown bank codes.
func (i IBAN) BIC() string {
	code := i.BankCode()
	if code == "" {
		return ""
	}
	bic, _ := Active().BIC(code)
	return bic
}

// =============================================================================
// BIC FORMAT
// =============================================================================

// NormalizeBIC upper-cases and strips separators from an explicitly entered
// BIC and validates its ISO 9362 structure. An empty input stays empty.
func NormalizeBIC(raw string) (string, error) {
	bic := clean(raw)
	if bic == "" {
		return "", nil
	}
	if err := validBIC(bic); err != nil {
		return "", &types.InvalidIBANError{Input: raw, Reason: "malformed BIC: " + err.Error()}
	}
	return bic, nil
}

func validBIC(bic string) error {
	return bankbic.Validate(bic)
}

// =============================================================================
// HELPERS
// =============================================================================

// clean keeps ASCII letters and digits, upper-cased.
func clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return s != ""
}
