// =============================================================================
// sepacetamol - SEPA Parties and Payments
// =============================================================================
//
// This module holds the validated inputs of a credit transfer: the originator
// (the paying account) and the individual payments.
//
// BIC RULES:
//   - An explicit BIC always wins once it passes the ISO 9362 format check
//   - Otherwise German IBANs derive their BIC from the bank code registry
//   - Otherwise the BIC stays empty and the agent is written as NOTPROVIDED
//
// =============================================================================

package sepa

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sepacetamol/internal/iban"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// Scheme limits for free text.
const (
	maxNameLength      = 70
	maxPurposeLength   = 140
	maxReferenceLength = 35
)

// NotProvided is the end-to-end identifier used when a payment has no
// reference.
const NotProvided = "NOTPROVIDED"

// =============================================================================
// ORIGINATOR
// =============================================================================

// Originator is the debtor of all payments in a file. Only German accounts
// are supported.
type Originator struct {
	Name string
	IBAN iban.IBAN
	BIC  string
}

// NewOriginator validates the paying account.
//
// RETURNS:
//   - *types.InvalidIBANError for a malformed IBAN or BIC
//   - *types.UnsupportedOriginatorCountryError for a valid non-German IBAN
//   - *types.SchemaViolationError for an empty name
func NewOriginator(name, rawIBAN, explicitBIC string) (Originator, error) {
	account, err := iban.Parse(rawIBAN)
	if err != nil {
		return Originator{}, err
	}
	if account.CountryCode() != "DE" {
		return Originator{}, &types.UnsupportedOriginatorCountryError{Country: account.CountryCode()}
	}

	cleaned, err := requiredText("originator_name", name, maxNameLength)
	if err != nil {
		return Originator{}, err
	}

	bic, err := resolveBIC(account, explicitBIC)
	if err != nil {
		return Originator{}, err
	}

	return Originator{Name: cleaned, IBAN: account, BIC: bic}, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// Payment is one credit transfer as entered by the user.
type Payment struct {
	Name      string
	IBAN      string
	BIC       string
	Amount    decimal.Decimal
	Purpose   string
	Reference string
}

// Transaction is an accepted payment: cleaned, truncated and converted to
// minor units.
type Transaction struct {
	Name        string
	IBAN        iban.IBAN
	BIC         string
	AmountCents int64
	Purpose     string
	Reference   string
}

// Amount returns the amount in euros.
func (t Transaction) Amount() decimal.Decimal {
	return decimal.New(t.AmountCents, -2)
}

func newTransaction(p Payment) (Transaction, error) {
	account, err := iban.Parse(p.IBAN)
	if err != nil {
		return Transaction{}, err
	}
	if !account.IsSEPA() {
		return Transaction{}, &types.InvalidIBANError{
			Input:  p.IBAN,
			Reason: "country " + account.CountryCode() + " is not part of SEPA",
		}
	}

	name, err := requiredText("name", p.Name, maxNameLength)
	if err != nil {
		return Transaction{}, err
	}

	bic, err := resolveBIC(account, p.BIC)
	if err != nil {
		return Transaction{}, err
	}

	cents, err := ToMinorUnits(p.Amount)
	if err != nil {
		return Transaction{}, err
	}

	reference := truncate(CleanText(p.Reference), maxReferenceLength)
	if reference == "" {
		reference = NotProvided
	}

	return Transaction{
		Name:        name,
		IBAN:        account,
		BIC:         bic,
		AmountCents: cents,
		Purpose:     truncate(CleanText(p.Purpose), maxPurposeLength),
		Reference:   reference,
	}, nil
}

// resolveBIC applies the BIC rules from the file header.
func resolveBIC(account iban.IBAN, explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return iban.NormalizeBIC(explicit)
	}
	return account.BIC(), nil
}

func requiredText(field, raw string, limit int) (string, error) {
	cleaned := truncate(CleanText(raw), limit)
	if cleaned == "" {
		return "", &types.SchemaViolationError{Field: field, Constraint: "required", Value: raw}
	}
	return cleaned, nil
}
