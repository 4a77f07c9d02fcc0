package sepa

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sepacetamol/internal/iban"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// Workbook layout of a payment list.
const (
	originatorRow   = 2 // name, IBAN
	firstPaymentRow = 4 // name, IBAN, amount, purpose, reference
)

// Import is the preview of a payment workbook: what will be paid, by whom and
// how much in total. Payments carry the formatted IBAN and the BIC that will
// be used so the user can confirm them.
type Import struct {
	OriginatorName string
	OriginatorIBAN string
	OriginatorBIC  string
	Payments       []Payment
	Total          decimal.Decimal
}

// ReadSheet reads the positional payment layout. rows[0] is sheet row 1.
// Empty payment rows are skipped.
//
// RETURNS:
//   - A *types.RowError wrapping *types.InvalidIBANError or
//     *types.InvalidAmountError for the first bad row.
func ReadSheet(rows []types.Row) (*Import, error) {
	if len(rows) < originatorRow {
		return nil, &types.ConversionError{Op: "read payment sheet", Err: fmt.Errorf("originator row %d is missing", originatorRow)}
	}

	head := rows[originatorRow-1]
	originator, err := iban.Parse(types.Text(head.At(1)))
	if err != nil {
		return nil, &types.RowError{Row: originatorRow, Err: err}
	}

	imp := &Import{
		OriginatorName: strings.TrimSpace(types.Text(head.At(0))),
		OriginatorIBAN: originator.Formatted(),
		OriginatorBIC:  originator.BIC(),
		Total:          decimal.Zero,
	}

	for i := firstPaymentRow - 1; i < len(rows); i++ {
		row := rows[i]
		if row.IsEmpty() {
			continue
		}
		payment, err := readPayment(row)
		if err != nil {
			return nil, &types.RowError{Row: i + 1, Err: err}
		}
		imp.Payments = append(imp.Payments, payment)
		imp.Total = imp.Total.Add(payment.Amount)
	}

	return imp, nil
}

func readPayment(row types.Row) (Payment, error) {
	account, err := iban.Parse(types.Text(row.At(1)))
	if err != nil {
		return Payment{}, err
	}

	amount, err := types.Decimal(row.At(2))
	if err != nil {
		return Payment{}, err
	}

	bic := ""
	if account.CountryCode() == "DE" {
		bic = account.BIC()
	}

	return Payment{
		Name:      strings.TrimSpace(types.Text(row.At(0))),
		IBAN:      account.Formatted(),
		BIC:       bic,
		Amount:    amount,
		Purpose:   strings.TrimSpace(types.Text(row.At(3))),
		Reference: strings.TrimSpace(types.Text(row.At(4))),
	}, nil
}

// Builder validates the originator and every payment of the import.
func (imp *Import) Builder(opts ...Option) (*Builder, error) {
	originator, err := NewOriginator(imp.OriginatorName, imp.OriginatorIBAN, imp.OriginatorBIC)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(originator, opts...)
	for i, p := range imp.Payments {
		if err := b.Add(p); err != nil {
			return nil, fmt.Errorf("payment %d: %w", i+1, err)
		}
	}
	return b, nil
}

// TargetFilename derives the XML file name from the uploaded workbook name.
func TargetFilename(source string) string {
	if strings.HasSuffix(strings.ToLower(source), ".xlsx") {
		return source[:len(source)-len(".xlsx")] + ".xml"
	}
	return source + ".xml"
}
