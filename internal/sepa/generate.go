package sepa

import (
	"fmt"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// Request is a confirmed transfer as submitted by the user.
type Request struct {
	OriginatorName string
	OriginatorIBAN string
	OriginatorBIC  string
	TargetFilename string
	Mode           BatchMode
	Payments       []Payment
}

// Document is a rendered transfer file.
type Document struct {
	Filename     string
	Transactions int
	Content      []byte
}

// Generate validates req and renders it. Any invalid payment aborts the
// whole file.
func Generate(req Request, opts ...Option) (*Document, error) {
	originator, err := NewOriginator(req.OriginatorName, req.OriginatorIBAN, req.OriginatorBIC)
	if err != nil {
		return nil, err
	}

	b := NewBuilder(originator, opts...)
	for i, p := range req.Payments {
		if err := b.Add(p); err != nil {
			return nil, &types.RowError{Row: i + 1, Err: err}
		}
	}

	content, err := b.Render(req.Mode)
	if err != nil {
		return nil, err
	}

	filename := req.TargetFilename
	if filename == "" {
		filename = fmt.Sprintf("%s.xml", originator.IBAN.String())
	}

	return &Document{Filename: filename, Transactions: len(req.Payments), Content: content}, nil
}
