package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

type sample struct {
	Code   string  `field:"code" validate:"pattern=upper3"`
	Count  int     `field:"count" validate:"gte=1,lte=9"`
	Note   *string `field:"note" validate:"omitempty,pattern=word"`
	Flag   *int    `field:"flag" validate:"required,oneof=0 1"`
	Text   string  `validate:"max=5"`
	Hidden string  `field:"-"`
}

var testPatterns = map[string]string{
	"upper3": `^[A-Z]{3}$`,
	"word":   `^[\p{L}\p{N}_]{1,4}$`,
}

func ptr[T any](v T) *T { return &v }

func TestEngineStruct(t *testing.T) {
	engine := New(testPatterns)

	valid := sample{Code: "EUR", Count: 3, Flag: ptr(0), Text: "Größe"}
	require.NoError(t, engine.Struct(valid))

	tests := []struct {
		name       string
		mutate     func(s *sample)
		field      string
		constraint string
		value      string
	}{
		{"pattern", func(s *sample) { s.Code = "eur" }, "code", "pattern ^[A-Z]{3}$", "eur"},
		{"lower bound", func(s *sample) { s.Count = 0 }, "count", ">= 1", "0"},
		{"upper bound", func(s *sample) { s.Count = 10 }, "count", "<= 9", "10"},
		{"optional present", func(s *sample) { s.Note = ptr("") }, "note", "pattern ^[\\p{L}\\p{N}_]{1,4}$", ""},
		{"required pointer", func(s *sample) { s.Flag = nil }, "flag", "required", ""},
		{"enum", func(s *sample) { s.Flag = ptr(2) }, "flag", "one of [0 1]", "2"},
		{"rune length", func(s *sample) { s.Text = "Größen" }, "Text", "max length 5", "Größen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)

			err := engine.Struct(s)
			require.Error(t, err)

			var violation *types.SchemaViolationError
			require.True(t, errors.As(err, &violation))
			assert.Equal(t, tt.field, violation.Field)
			assert.Equal(t, tt.constraint, violation.Constraint)
			assert.Equal(t, tt.value, violation.Value)
		})
	}
}

func TestEngineReportsFirstViolationInFieldOrder(t *testing.T) {
	engine := New(testPatterns)

	err := engine.Struct(sample{Code: "x", Count: 0, Flag: nil})

	var violation *types.SchemaViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "code", violation.Field)
}

func TestUnicodeWordPattern(t *testing.T) {
	engine := New(testPatterns)
	valid := sample{Code: "EUR", Count: 1, Flag: ptr(1)}

	valid.Note = ptr("März")
	assert.NoError(t, engine.Struct(valid))

	valid.Note = ptr("a-b")
	var violation *types.SchemaViolationError
	require.True(t, errors.As(engine.Struct(valid), &violation))
	assert.Equal(t, "note", violation.Field)
}
