// =============================================================================
// sepacetamol - SEPA Credit Transfer Builder
// =============================================================================
//
// This module accumulates validated payments for one originator and renders
// them as an ISO 20022 pain.001.001.03 customer credit transfer initiation.
//
// BATCH MODES:
//   true   - all payments in one PmtInf block, <BtchBookg>true</BtchBookg>
//   single - one PmtInf block per payment, <BtchBookg>false</BtchBookg>
//   false  - rendered like "true", then the first batch flag is rewritten to
//            false in the serialized document. Banks rely on this exact
//            output, so the grouping is kept.
//
// USAGE:
//   b := sepa.NewBuilder(originator)
//   if err := b.Add(payment); err != nil { ... }
//   xml, err := b.Render(sepa.BatchTrue)
//
// =============================================================================

package sepa

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/sepacetamol/internal/types"
	"github.com/ginjaninja78/sepacetamol/internal/xmlwriter"
)

const (
	// Namespace of the generated documents.
	Namespace = "urn:iso:std:iso:20022:tech:xsd:pain.001.001.03"

	// Currency is the only currency the builder emits.
	Currency = "EUR"

	// ContentType is the media type of rendered documents.
	ContentType = "application/xml"
)

// =============================================================================
// BATCH MODE
// =============================================================================

// BatchMode selects how payments are grouped.
type BatchMode string

const (
	BatchTrue   BatchMode = "true"
	BatchFalse  BatchMode = "false"
	BatchSingle BatchMode = "single"
)

// ParseBatchMode reads a form or config value. Empty and checkbox values
// ("on") mean true.
func ParseBatchMode(s string) (BatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true", "on", "1", "yes":
		return BatchTrue, nil
	case "false", "off", "0", "no":
		return BatchFalse, nil
	case "single":
		return BatchSingle, nil
	}
	return "", &types.SchemaViolationError{Field: "batch_booking", Constraint: "one of [true false single]", Value: s}
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder collects payments for one originator. It is not safe for
// concurrent use.
type Builder struct {
	originator    Originator
	transactions  []Transaction
	now           func() time.Time
	newID         func() string
	executionDate time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock replaces time.Now for the creation timestamp and the default
// execution date.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithIDGenerator replaces the generator of message and payment information
// identifiers. Identifiers longer than 35 characters are cut.
func WithIDGenerator(newID func() string) Option {
	return func(b *Builder) { b.newID = newID }
}

// WithExecutionDate sets the requested execution date. The default is the
// current day in Europe/Berlin.
func WithExecutionDate(d time.Time) Option {
	return func(b *Builder) { b.executionDate = d }
}

// NewBuilder starts an empty transfer for o.
func NewBuilder(o Originator, opts ...Option) *Builder {
	b := &Builder{
		originator: o,
		now:        time.Now,
		newID:      newMessageID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func newMessageID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Add validates p and appends it. A rejected payment leaves the builder
// unchanged.
func (b *Builder) Add(p Payment) error {
	tx, err := newTransaction(p)
	if err != nil {
		return err
	}
	b.transactions = append(b.transactions, tx)
	return nil
}

// Originator returns the debtor of the transfer.
func (b *Builder) Originator() Originator { return b.originator }

// Transactions returns a copy of the accepted payments in insertion order.
func (b *Builder) Transactions() []Transaction {
	return append([]Transaction(nil), b.transactions...)
}

// Total returns the sum of all accepted payments in euros.
func (b *Builder) Total() decimal.Decimal {
	return decimal.New(sumCents(b.transactions), -2)
}

func sumCents(txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.AmountCents
	}
	return total
}

// =============================================================================
// RENDERING
// =============================================================================

// Render serializes the transfer. Nothing is returned unless every payment
// made it into the document.
func (b *Builder) Render(mode BatchMode) ([]byte, error) {
	if len(b.transactions) == 0 {
		return nil, &types.ConversionError{Op: "render SEPA transfer", Err: fmt.Errorf("no payments")}
	}

	switch mode {
	case BatchTrue, "":
		return b.render(true), nil
	case BatchSingle:
		return b.render(false), nil
	case BatchFalse:
		return bytes.Replace(b.render(true),
			[]byte("<BtchBookg>true</BtchBookg>"),
			[]byte("<BtchBookg>false</BtchBookg>"), 1), nil
	}
	return nil, &types.SchemaViolationError{Field: "batch_booking", Constraint: "one of [true false single]", Value: string(mode)}
}

func (b *Builder) render(batch bool) []byte {
	now := b.now().In(berlin)
	execution := b.executionDate
	if execution.IsZero() {
		execution = now
	}

	root := xmlwriter.New("Document").
		Attr("xmlns", Namespace).
		Attr("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	initiation := root.Child("CstmrCdtTrfInitn")

	initiation.Child("GrpHdr").
		Leaf("MsgId", b.id()).
		Leaf("CreDtTm", now.Format("2006-01-02T15:04:05")).
		Leaf("NbOfTxs", strconv.Itoa(len(b.transactions))).
		Leaf("CtrlSum", formatCents(sumCents(b.transactions))).
		Child("InitgPty").Leaf("Nm", b.originator.Name)

	if batch {
		initiation.Append(b.paymentInfo(b.transactions, true, execution))
	} else {
		for i := range b.transactions {
			initiation.Append(b.paymentInfo(b.transactions[i:i+1], false, execution))
		}
	}

	return xmlwriter.Marshal(root, xmlwriter.DefaultOptions())
}

// paymentInfo builds one PmtInf block for txs.
func (b *Builder) paymentInfo(txs []Transaction, batch bool, execution time.Time) *xmlwriter.Element {
	info := xmlwriter.New("PmtInf").
		Leaf("PmtInfId", b.id()).
		Leaf("PmtMtd", "TRF").
		Leaf("BtchBookg", strconv.FormatBool(batch)).
		Leaf("NbOfTxs", strconv.Itoa(len(txs))).
		Leaf("CtrlSum", formatCents(sumCents(txs)))

	info.Child("PmtTpInf").Child("SvcLvl").Leaf("Cd", "SEPA")
	info.Leaf("ReqdExctnDt", execution.Format("2006-01-02"))
	info.Child("Dbtr").Leaf("Nm", b.originator.Name)
	info.Child("DbtrAcct").Child("Id").Leaf("IBAN", b.originator.IBAN.String())
	info.Append(agent("DbtrAgt", b.originator.BIC))
	info.Leaf("ChrgBr", "SLEV")

	for _, tx := range txs {
		info.Append(creditTransfer(tx))
	}
	return info
}

func creditTransfer(tx Transaction) *xmlwriter.Element {
	e := xmlwriter.New("CdtTrfTxInf")
	e.Child("PmtId").Leaf("EndToEndId", tx.Reference)
	e.Child("Amt").Append(&xmlwriter.Element{
		Name:  "InstdAmt",
		Attrs: []xmlwriter.Attr{{Name: "Ccy", Value: Currency}},
		Value: formatCents(tx.AmountCents),
	})
	if tx.BIC != "" {
		e.Append(agent("CdtrAgt", tx.BIC))
	}
	e.Child("Cdtr").Leaf("Nm", tx.Name)
	e.Child("CdtrAcct").Child("Id").Leaf("IBAN", tx.IBAN.String())
	if tx.Purpose != "" {
		e.Child("RmtInf").Leaf("Ustrd", tx.Purpose)
	}
	return e
}

// agent writes a financial institution. Without a BIC the IBAN-only form
// <Othr><Id>NOTPROVIDED</Id></Othr> is used.
func agent(name, bic string) *xmlwriter.Element {
	institution := xmlwriter.New("FinInstnId")
	if bic != "" {
		institution.Leaf("BIC", bic)
	} else {
		institution.Child("Othr").Leaf("Id", NotProvided)
	}
	return xmlwriter.New(name).Append(institution)
}

func (b *Builder) id() string {
	id := b.newID()
	if len(id) > 35 {
		id = id[:35]
	}
	return id
}

// berlin is the zone execution dates are counted in.
var berlin = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.FixedZone("CET", 60*60)
	}
	return loc
}()
