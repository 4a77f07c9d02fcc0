package iban

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/sepacetamol/internal/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		formatted string
		country   string
		bic       string
	}{
		{"compact german", "DE89370400440532013000", "DE89 3704 0044 0532 0130 00", "DE", "COBADEFFXXX"},
		{"spaced lowercase", "de02 1203 0000 0000 2020 51", "DE02 1203 0000 0000 2020 51", "DE", "BYLADEM1001"},
		{"ing", "DE02500105170137075030", "DE02 5001 0517 0137 0750 30", "DE", "INGDDEFFXXX"},
		{"unknown bank code", "DE37999999990123456789", "DE37 9999 9999 0123 4567 89", "DE", ""},
		{"french", "FR14 2004 1010 0505 0001 3M02 606", "FR14 2004 1010 0505 0001 3M02 606", "FR", ""},
		{"austrian", "AT611904300234573201", "AT61 1904 3002 3457 3201", "AT", ""},
		{"dotted", "DE89.3704.0044.0532.0130.00", "DE89 3704 0044 0532 0130 00", "DE", "COBADEFFXXX"},
		{"slashed", "DE89/3704/0044/0532/0130/00", "DE89 3704 0044 0532 0130 00", "DE", "COBADEFFXXX"},
		{"volksbank", "DE83600901000001234567", "DE83 6009 0100 0001 2345 67", "DE", "VOBADESSXXX"},
		{"sparkasse", "DE61760501010012345678", "DE61 7605 0101 0012 3456 78", "DE", "SSKNDE77XXX"},
		{"targobank", "DE50300209000001234567", "DE50 3002 0900 0001 2345 67", "DE", "CMCIDEDDXXX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.formatted, got.Formatted())
			assert.Equal(t, tt.country, got.CountryCode())
			assert.Equal(t, tt.bic, got.BIC())
		})
	}
}

func TestParseIsIdempotentOnFormattedOutput(t *testing.T) {
	for _, raw := range []string{"DE89370400440532013000", "GB29NWBK60161331926819", "CH9300762011623852957"} {
		first, err := Parse(raw)
		require.NoError(t, err)

		second, err := Parse(first.Formatted())
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, first.Formatted(), second.Formatted())
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"empty", "  ", "empty"},
		{"bad checksum", "DE89370400440532013001", "checksum"},
		{"wrong length", "DE8937040044053201300", "length"},
		{"unknown country", "XX89370400440532013000", "unknown country"},
		{"letters in german bban", "DE89370400440532O13000", "numeric"},
		{"bban structure", "GB29NWBK6016133192681A", "ISO 13616"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)

			var ibanErr *types.InvalidIBANError
			require.True(t, errors.As(err, &ibanErr))
			assert.Equal(t, tt.input, ibanErr.Input)
			assert.Contains(t, ibanErr.Reason, tt.reason)
		})
	}
}

func TestIsSEPA(t *testing.T) {
	sepa, err := Parse("NL91ABNA0417164300")
	require.NoError(t, err)
	assert.True(t, sepa.IsSEPA())

	nonSEPA, err := Parse("TR330006100519786457841326")
	require.NoError(t, err)
	assert.False(t, nonSEPA.IsSEPA())
}

func TestNormalizeBIC(t *testing.T) {
	bic, err := NormalizeBIC(" cobadeffxxx ")
	require.NoError(t, err)
	assert.Equal(t, "COBADEFFXXX", bic)

	bic, err = NormalizeBIC("")
	require.NoError(t, err)
	assert.Empty(t, bic)

	bic, err = NormalizeBIC("COBA-DE-FF")
	require.NoError(t, err)
	assert.Equal(t, "COBADEFF", bic)

	for _, bad := range []string{"COBA1", "COBADEFFXX", "1OBADEFFXXX"} {
		_, err = NormalizeBIC(bad)
		var ibanErr *types.InvalidIBANError
		assert.True(t, errors.As(err, &ibanErr), bad)
	}
}

func TestBundledRegistryCoversMajorInstitutes(t *testing.T) {
	reg := Bundled()
	for code, want := range map[string]string{
		"60090100": "VOBADESSXXX",
		"76050101": "SSKNDE77XXX",
		"30020900": "CMCIDEDDXXX",
		"50010517": "INGDDEFFXXX",
	} {
		bic, ok := reg.BIC(code)
		assert.True(t, ok, code)
		assert.Equal(t, want, bic, code)
	}
}

func TestParseRegistry(t *testing.T) {
	input := strings.Join([]string{
		`"Bankleitzahl";"Merkmal";"Bezeichnung";"BIC"`,
		`"12345678";"1";"Testbank";"TESTDEFFXXX"`,
		`"12345678";"2";"Testbank Filiale";"TESTDEFF123"`,
		`"87654321";"1";"Ohne BIC";""`,
		`"abc";"1";"Kaputt";"TESTDEFFXXX"`,
	}, "\n")

	reg, err := ParseRegistry(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	bic, ok := reg.BIC("12345678")
	assert.True(t, ok)
	assert.Equal(t, "TESTDEFFXXX", bic)

	_, ok = reg.BIC("87654321")
	assert.False(t, ok)
}

// fixedRecord builds one record of the Bundesbank fixed-width file.
func fixedRecord(code, feature, name, bic string) string {
	pad := func(s string, n int) string { return s + strings.Repeat(" ", n-len([]rune(s))) }
	return code + feature + pad(name, 58) + "70173" + pad("Stuttgart", 35) + pad(name, 27) + "12345" +
		pad(bic, 11) + "A1" + "000001" + "U" + "0" + "00000000"
}

func TestParseRegistryFixedWidth(t *testing.T) {
	lines := []string{
		fixedRecord("60090100", "1", "Volksbank Stuttgart", "VOBADESSXXX"),
		fixedRecord("60090100", "2", "Volksbank Stuttgart Filiale", ""),
		fixedRecord("60050101", "1", "Baden-Württembergische Bank", "SOLADEST600"),
	}
	require.Len(t, []rune(lines[0]), 168)

	reg, err := ParseRegistry(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	bic, ok := reg.BIC("60090100")
	require.True(t, ok)
	assert.Equal(t, "VOBADESSXXX", bic)

	bic, ok = reg.BIC("60050101")
	require.True(t, ok)
	assert.Equal(t, "SOLADEST600", bic)
}

func TestParseRegistryRejectsMalformedBIC(t *testing.T) {
	_, err := ParseRegistry(strings.NewReader("12345678;NOPE\n"))
	assert.Error(t, err)
}

func TestInstallOverlaysBundled(t *testing.T) {
	extra, err := ParseRegistry(strings.NewReader("99999999;TESTDEFFXXX\n"))
	require.NoError(t, err)

	Install(Bundled().With(extra))
	t.Cleanup(func() { Install(Bundled()) })

	unknown, err := Parse("DE37999999990123456789")
	require.NoError(t, err)
	assert.Equal(t, "TESTDEFFXXX", unknown.BIC())

	known, err := Parse("DE89370400440532013000")
	require.NoError(t, err)
	assert.Equal(t, "COBADEFFXXX", known.BIC())
}
