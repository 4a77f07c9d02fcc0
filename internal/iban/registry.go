package iban

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"
)

// =============================================================================
// BANK REGISTRY
// =============================================================================
// Maps German bank codes (Bankleitzahl) to BICs. A table of the major
// institutes ships with the binary. Operators install the Bundesbank's
// complete code list through bank_registry_file, either as the CSV download
// or as the fixed-width text file.

//go:embed bankcodes.csv
var bundledCSV []byte

// Registry is an immutable bank code to BIC table. It is safe for concurrent
// use.
type Registry struct {
	byCode map[string]string
}

// Bundled returns the registry compiled into the binary. It is parsed once on
// first use.
var Bundled = sync.OnceValue(func() *Registry {
	r, err := ParseRegistry(bytes.NewReader(bundledCSV))
	if err != nil {
		panic(fmt.Sprintf("iban: bundled bank registry: %v", err))
	}
	return r
})

var active atomic.Pointer[Registry]

// Active returns the registry used by IBAN.BIC.
func Active() *Registry {
	if r := active.Load(); r != nil {
		return r
	}
	return Bundled()
}

// Install makes r the registry used by IBAN.BIC. Call it once at startup.
func Install(r *Registry) {
	active.Store(r)
}

// BIC looks up the BIC of a bank code.
func (r *Registry) BIC(bankCode string) (string, bool) {
	bic, ok := r.byCode[bankCode]
	return bic, ok && bic != ""
}

// Len returns the number of bank codes with a BIC.
func (r *Registry) Len() int { return len(r.byCode) }

// With returns a new registry holding the entries of r overlaid with other.
func (r *Registry) With(other *Registry) *Registry {
	merged := make(map[string]string, len(r.byCode)+len(other.byCode))
	for k, v := range r.byCode {
		merged[k] = v
	}
	for k, v := range other.byCode {
		merged[k] = v
	}
	return &Registry{byCode: merged}
}

// ParseRegistry reads a bank code list.
//
// FORMATS:
//   - The Bundesbank fixed-width file (blz_YYYYMMDD.txt): 168 character
//     records with the code in columns 1-8 and the BIC in columns 140-150.
//   - Semicolon separated values with an optional header row. If it names
//     "Bankleitzahl" and "BIC" columns, those are used; otherwise column 1
//     is the code and column 2 the BIC.
//
// Rows whose code is not eight digits are skipped. For a code listed several
// times the first non-empty BIC wins.
func ParseRegistry(rd io.Reader) (*Registry, error) {
	buffered := bufio.NewReader(rd)
	first, err := buffered.Peek(fixedRecordLen)
	if err == nil && isFixedWidth(first) {
		return parseFixedWidth(buffered)
	}
	return parseDelimited(buffered)
}

// Layout of the Bundesbank fixed-width records, zero based.
const (
	fixedRecordLen = 168
	fixedBICStart  = 139
	fixedBICEnd    = 150
)

func isFixedWidth(head []byte) bool {
	return isDigits(string(head[:8])) && !bytes.ContainsAny(head[:fixedBICEnd], ";\n")
}

func parseFixedWidth(rd io.Reader) (*Registry, error) {
	byCode := make(map[string]string)
	scanner := bufio.NewScanner(rd)

	for line := 1; scanner.Scan(); line++ {
		record := scanner.Text()
		if strings.TrimSpace(record) == "" {
			continue
		}
		// The file is ISO 8859-1; a UTF-8 re-encoded copy is sliced by runes.
		if utf8.ValidString(record) {
			runes := []rune(record)
			if len(runes) < fixedBICEnd {
				return nil, fmt.Errorf("bank registry line %d: record too short", line)
			}
			if err := addEntry(byCode, line, string(runes[:8]), string(runes[fixedBICStart:fixedBICEnd])); err != nil {
				return nil, err
			}
			continue
		}
		if len(record) < fixedBICEnd {
			return nil, fmt.Errorf("bank registry line %d: record too short", line)
		}
		if err := addEntry(byCode, line, record[:8], record[fixedBICStart:fixedBICEnd]); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("bank registry: %w", err)
	}

	return &Registry{byCode: byCode}, nil
}

func parseDelimited(rd io.Reader) (*Registry, error) {
	reader := csv.NewReader(rd)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	codeCol, bicCol := 0, 1
	byCode := make(map[string]string)

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bank registry line %d: %w", line, err)
		}

		if line == 1 {
			if c, b, ok := headerColumns(record); ok {
				codeCol, bicCol = c, b
				continue
			}
		}
		if len(record) <= codeCol || len(record) <= bicCol {
			continue
		}
		if err := addEntry(byCode, line, record[codeCol], record[bicCol]); err != nil {
			return nil, err
		}
	}

	return &Registry{byCode: byCode}, nil
}

func addEntry(byCode map[string]string, line int, code, bic string) error {
	code = strings.TrimSpace(code)
	bic = strings.ToUpper(strings.TrimSpace(bic))
	if len(code) != 8 || !isDigits(code) || bic == "" {
		return nil
	}
	if err := validBIC(bic); err != nil {
		return fmt.Errorf("bank registry line %d: malformed BIC %q: %w", line, bic, err)
	}
	if _, seen := byCode[code]; !seen {
		byCode[code] = bic
	}
	return nil
}

func headerColumns(record []string) (int, int, bool) {
	codeCol, bicCol := -1, -1
	for i, name := range record {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case "Bankleitzahl":
			codeCol = i
		case "BIC":
			bicCol = i
		}
	}
	return codeCol, bicCol, codeCol >= 0 && bicCol >= 0
}
