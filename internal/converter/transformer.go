// =============================================================================
// sepacetamol - Transformation Engine
// =============================================================================
//
// This module rewrites named columns of an export before it is mapped.
// Source systems differ in small ways (account numbers without leading zeros,
// lower case codes, internal cost centre names), and profiles fix those up
// without code changes.
//
// TRANSFORMATION TYPES:
//   - String manipulations (trim, uppercase, lowercase, prepend, append)
//   - Zero padding
//   - Literal and regular expression replacements
//   - Lookup table replacements
//
// Empty cells are left alone. Every other cell is rendered as text, passed
// through the actions of its column in order and stored back as text.
//
// =============================================================================

package converter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies profile rules to rows.
type Transformer struct {
	rules   []config.TransformationRule
	regexes map[string]*regexp.Regexp
}

// NewTransformer compiles the regular expressions of rules.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{
		rules:   rules,
		regexes: make(map[string]*regexp.Regexp),
	}

	for _, rule := range rules {
		for _, action := range rule.Actions {
			if action.Type != "regex_replace" || action.Find == "" {
				continue
			}
			if _, ok := t.regexes[action.Find]; ok {
				continue
			}
			re, err := regexp.Compile(action.Find)
			if err != nil {
				return nil, fmt.Errorf("field %s: invalid regex pattern: %w", rule.Field, err)
			}
			t.regexes[action.Find] = re
		}
	}

	return t, nil
}

// Transform applies the rules of fieldName to value.
func (t *Transformer) Transform(fieldName, value string) (string, error) {
	result := value
	for _, rule := range t.rules {
		if rule.Field != fieldName {
			continue
		}
		for _, action := range rule.Actions {
			var err error
			result, err = t.apply(result, action)
			if err != nil {
				return "", fmt.Errorf("transformation '%s' failed: %w", action.Type, err)
			}
		}
	}
	return result, nil
}

// TransformRows rewrites the cells of rows in place. Columns are found by
// their header text.
//
// RETURNS:
//   - The number of cells changed.
//   - A *types.RowError for the first failing cell.
func (t *Transformer) TransformRows(header types.Row, rows []types.Row) (int, error) {
	if len(t.rules) == 0 {
		return 0, nil
	}

	columns := make(map[int]string)
	for i, h := range header {
		name := strings.TrimSpace(types.Text(h))
		for _, rule := range t.rules {
			if rule.Field == name {
				columns[i] = name
			}
		}
	}

	changed := 0
	for r, row := range rows {
		for i, name := range columns {
			cell := row.At(i)
			if types.IsBlank(cell) {
				continue
			}
			before := types.Text(cell)
			after, err := t.Transform(name, before)
			if err != nil {
				return changed, &types.RowError{Row: r + 2, Err: fmt.Errorf("column %q: %w", name, err)}
			}
			if after != before {
				row[i] = after
				changed++
			}
		}
	}
	return changed, nil
}

// apply runs a single action.
func (t *Transformer) apply(value string, action config.TransformationAction) (string, error) {
	switch action.Type {
	case "trim":
		return strings.TrimSpace(value), nil

	case "uppercase":
		return strings.ToUpper(value), nil

	case "lowercase":
		return strings.ToLower(value), nil

	case "prepend_string":
		// "4120" with value "0" becomes "04120"
		return action.Value + value, nil

	case "append_string":
		return value + action.Value, nil

	case "pad_zeros_to_length":
		// "755" with value "4" becomes "0755"
		targetLength, err := strconv.Atoi(action.Value)
		if err != nil || targetLength <= 0 {
			return "", fmt.Errorf("invalid length %q", action.Value)
		}
		return PadLeft(value, targetLength, '0'), nil

	case "replace":
		if action.Find == "" {
			return value, nil
		}
		return strings.ReplaceAll(value, action.Find, action.Value), nil

	case "regex_replace":
		if action.Find == "" {
			return value, nil
		}
		re, ok := t.regexes[action.Find]
		if !ok {
			return "", fmt.Errorf("regex pattern %q was not compiled", action.Find)
		}
		return re.ReplaceAllString(value, action.Value), nil

	case "lookup":
		// Values missing from the table are kept.
		if replacement, exists := action.LookupTable[value]; exists {
			return replacement, nil
		}
		return value, nil

	default:
		return "", fmt.Errorf("unknown transformation type: %s", action.Type)
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// PadLeft pads a string with a character on the left to reach the target
// length in runes.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
