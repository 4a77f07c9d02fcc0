package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/personio"
	"github.com/ginjaninja78/sepacetamol/internal/sepa"
	"github.com/ginjaninja78/sepacetamol/internal/sheet"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// uploadCSV is how uploaded CSV files are read. Uploads carry no profile.
var uploadCSV = config.CSVSettings{Delimiter: ";", Encoding: "UTF-8"}

// ============================================================
// POST /sepa/preview
// ============================================================

type previewResponse struct {
	SourceFilename string               `json:"source_filename"`
	TargetFilename string               `json:"target_filename"`
	Originator     previewOriginator    `json:"originator"`
	Transactions   []previewTransaction `json:"transactions"`
	GrandTotal     string               `json:"grand_total"`
}

type previewOriginator struct {
	Name string `json:"name"`
	IBAN string `json:"iban"`
	BIC  string `json:"bic"`
}

type previewTransaction struct {
	Name      string `json:"name"`
	IBAN      string `json:"iban"`
	BIC       string `json:"bic"`
	Amount    string `json:"amount"`
	Purpose   string `json:"purpose"`
	Reference string `json:"reference"`
}

// sepaPreview reads an uploaded payment workbook and returns what would be
// paid. Nothing is validated beyond the IBANs and amounts; that happens on
// generate, after the user confirmed the list.
func (a *api) sepaPreview(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r, a.cfg.Server.MaxUploadBytes); err != nil {
		handleError(w, err, a.logger)
		return
	}

	file, header, err := r.FormFile("source-file")
	if err != nil {
		handleError(w, missingField("source-file"), a.logger)
		return
	}
	defer file.Close()

	s, err := sheet.Read(file, uploadCSV)
	if err != nil {
		handleError(w, err, a.logger)
		return
	}

	imp, err := sepa.ReadSheet(s.Rows)
	if err != nil {
		handleError(w, err, a.logger)
		return
	}

	resp := previewResponse{
		SourceFilename: header.Filename,
		TargetFilename: sepa.TargetFilename(header.Filename),
		Originator: previewOriginator{
			Name: imp.OriginatorName,
			IBAN: imp.OriginatorIBAN,
			BIC:  imp.OriginatorBIC,
		},
		Transactions: make([]previewTransaction, 0, len(imp.Payments)),
		GrandTotal:   imp.Total.StringFixed(2),
	}
	for _, p := range imp.Payments {
		resp.Transactions = append(resp.Transactions, previewTransaction{
			Name:      p.Name,
			IBAN:      p.IBAN,
			BIC:       p.BIC,
			Amount:    p.Amount.StringFixed(2),
			Purpose:   p.Purpose,
			Reference: p.Reference,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ============================================================
// POST /sepa/generate
// ============================================================

// transactionFields are the repeated form fields of one payment, in the
// order of the Payment fields they fill.
var transactionFields = []string{
	"transaction-name",
	"transaction-iban",
	"transaction-bic",
	"transaction-amount",
	"transaction-purpose",
	"transaction-reference",
}

// sepaGenerate renders the confirmed payment list. The batch-booking field
// is a checkbox. An unchecked box sends nothing and yields one payment
// information block per payment (sepa.BatchSingle), which is what the upload
// form has always produced. A sent value goes through sepa.ParseBatchMode:
// "on" or "true" batch, "false" keeps the batch but clears the flag.
func (a *api) sepaGenerate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	doc, err := a.generate(w, r)
	records := 0
	if doc != nil {
		records = doc.Transactions
	}
	a.metrics.RecordConversion(config.KindSEPA, time.Since(start), records, err)
	if err != nil {
		handleError(w, err, a.logger)
		return
	}

	a.logger.Sugar().Infof("generated %s with %d transactions", doc.Filename, doc.Transactions)
	writeAttachment(w, sepa.ContentType, doc.Filename, doc.Content)
}

func (a *api) generate(w http.ResponseWriter, r *http.Request) (*sepa.Document, error) {
	if err := parseForm(w, r, a.cfg.Server.MaxUploadBytes); err != nil {
		return nil, err
	}

	name, err := requiredValue(r, "originator-name")
	if err != nil {
		return nil, err
	}
	account, err := requiredValue(r, "originator-iban")
	if err != nil {
		return nil, err
	}

	mode := sepa.BatchSingle
	if values, ok := r.Form["batch-booking"]; ok && len(values) > 0 {
		if mode, err = sepa.ParseBatchMode(strings.TrimSpace(values[0])); err != nil {
			return nil, err
		}
	}

	bic := strings.TrimSpace(r.FormValue("originator-bic"))
	if bic == "" {
		bic = a.cfg.SEPA.OriginatorBIC
	}

	payments, err := formPayments(r)
	if err != nil {
		return nil, err
	}

	return sepa.Generate(sepa.Request{
		OriginatorName: name,
		OriginatorIBAN: account,
		OriginatorBIC:  bic,
		TargetFilename: strings.TrimSpace(r.FormValue("target-filename")),
		Mode:           mode,
		Payments:       payments,
	}, a.sepaOps...)
}

// formPayments zips the repeated transaction fields. Every list must have the
// same length.
func formPayments(r *http.Request) ([]sepa.Payment, error) {
	lists := make([][]string, len(transactionFields))
	for i, field := range transactionFields {
		lists[i] = r.Form[field]
		if len(lists[i]) != len(lists[0]) {
			return nil, &types.ConversionError{
				Op:  "read form",
				Err: fmt.Errorf("%s has %d values, %s has %d", field, len(lists[i]), transactionFields[0], len(lists[0])),
			}
		}
	}

	payments := make([]sepa.Payment, len(lists[0]))
	for i := range payments {
		amount, err := sepa.ParseAmount(lists[3][i])
		if err != nil {
			return nil, &types.RowError{Row: i + 1, Err: err}
		}
		payments[i] = sepa.Payment{
			Name:      strings.TrimSpace(lists[0][i]),
			IBAN:      strings.TrimSpace(lists[1][i]),
			BIC:       strings.TrimSpace(lists[2][i]),
			Amount:    amount,
			Purpose:   strings.TrimSpace(lists[4][i]),
			Reference: strings.TrimSpace(lists[5][i]),
		}
	}
	return payments, nil
}

// ============================================================
// POST /datev/personio
// ============================================================

// datevPersonio converts an uploaded Personio export. The DATEV numbers are
// checked before the file is read; empty fields fall back to the configured
// numbers.
func (a *api) datevPersonio(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	export, err := a.convertPersonio(w, r)
	records := 0
	if export != nil {
		records = len(export.File.Bookings)
	}
	a.metrics.RecordConversion(config.KindDATEV, time.Since(start), records, err)
	if err != nil {
		handleError(w, err, a.logger)
		return
	}

	a.logger.Sugar().Infof("converted Personio export for %s to %s with %d bookings",
		export.Month.Format("2006-01"), export.Filename, records)
	writeAttachment(w, personio.ContentType, export.Filename, export.Content)
}

func (a *api) convertPersonio(w http.ResponseWriter, r *http.Request) (*personio.Export, error) {
	if err := parseForm(w, r, a.cfg.Server.MaxUploadBytes); err != nil {
		return nil, err
	}

	consultant, err := formNumber(r, "consultant-number", "consultant_number", a.cfg.DATEV.ConsultantNumber)
	if err != nil {
		return nil, err
	}
	client, err := formNumber(r, "client-number", "client_number", a.cfg.DATEV.ClientNumber)
	if err != nil {
		return nil, err
	}
	settings := personio.Settings{ConsultantNumber: consultant, ClientNumber: client}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("personio-file")
	if err != nil {
		return nil, missingField("personio-file")
	}
	defer file.Close()

	s, err := sheet.Read(file, uploadCSV)
	if err != nil {
		return nil, err
	}
	header, rows, err := s.Table()
	if err != nil {
		return nil, err
	}

	return personio.Convert(header, rows, settings)
}

// formNumber reads an integer form field, falling back when it is empty.
func formNumber(r *http.Request, name, field string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &types.SchemaViolationError{Field: field, Constraint: "integer", Value: raw}
	}
	return n, nil
}
