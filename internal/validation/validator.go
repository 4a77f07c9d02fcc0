// =============================================================================
// sepacetamol - Validation Engine
// =============================================================================
//
// This module wraps go-playground/validator for the record schemas. Records
// declare their constraints as struct tags; the engine checks a record and
// turns the FIRST failing field into a *types.SchemaViolationError.
//
// TAGS:
//   - Standard validator tags (required, omitempty, oneof, min, max, gte, lte)
//   - pattern=<name> : the field must match the named regular expression
//                      registered with the engine (names keep regexes with
//                      commas and pipes out of the tag syntax)
//
// FIELD NAMES:
//   Violations report the name from the `field` struct tag, falling back to
//   the Go field name. This keeps reported names stable for callers.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine validates tagged structs. It is safe for concurrent use once built.
type Engine struct {
	validate *validator.Validate
	patterns map[string]*regexp.Regexp
}

// New builds an engine knowing the given named patterns.
//
// PARAMETERS:
//   - patterns: pattern name -> regular expression source. Sources follow Go
//     RE2 syntax; use \p{L}\p{N}_ where a Unicode word class is meant.
//
// RETURNS:
//   - The engine. It panics on an invalid expression, since patterns are
//     program constants.
func New(patterns map[string]string) *Engine {
	e := &Engine{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		patterns: make(map[string]*regexp.Regexp, len(patterns)),
	}
	for name, expr := range patterns {
		e.patterns[name] = regexp.MustCompile(expr)
	}

	e.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("field"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil functions.
	_ = e.validate.RegisterValidation("pattern", e.matchPattern)

	return e
}

// Struct validates s and returns nil or the first violation.
func (e *Engine) Struct(s any) error {
	err := e.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("validate %T: %w", s, err)
	}
	return e.violation(fieldErrs[0])
}

// matchPattern implements the pattern=<name> tag. Unknown names never match,
// so a typo in a tag fails loudly in tests.
func (e *Engine) matchPattern(fl validator.FieldLevel) bool {
	re, ok := e.patterns[fl.Param()]
	if !ok {
		return false
	}
	field := fl.Field()
	if field.Kind() != reflect.String {
		return re.MatchString(fmt.Sprint(field.Interface()))
	}
	return re.MatchString(field.String())
}

// =============================================================================
// ERROR CONVERSION
// =============================================================================

func (e *Engine) violation(fe validator.FieldError) *types.SchemaViolationError {
	return &types.SchemaViolationError{
		Field:      fe.Field(),
		Constraint: e.describe(fe),
		Value:      valueText(fe.Value()),
	}
}

// describe renders the failed tag as a human readable constraint.
func (e *Engine) describe(fe validator.FieldError) string {
	param := fe.Param()
	isText := fe.Kind() == reflect.String

	switch fe.Tag() {
	case "required":
		return "required"
	case "pattern":
		if re, ok := e.patterns[param]; ok {
			return "pattern " + re.String()
		}
		return "unknown pattern " + param
	case "oneof":
		return "one of [" + param + "]"
	case "min", "gte":
		if isText {
			return "min length " + param
		}
		return ">= " + param
	case "max", "lte":
		if isText {
			return "max length " + param
		}
		return "<= " + param
	case "gt":
		return "> " + param
	case "lt":
		return "< " + param
	case "len":
		return "length " + param
	}
	if param == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + param
}

func valueText(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		return fmt.Sprint(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
