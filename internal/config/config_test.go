package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMainConfigDefaults(t *testing.T) {
	config, err := ParseMainConfig([]byte("input_dir: ./in\n"))
	require.NoError(t, err)

	assert.Equal(t, "./in", config.InputDir)
	assert.Equal(t, "./output", config.OutputDir)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, int64(10<<20), config.Server.MaxUploadBytes)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "true", config.SEPA.BatchBooking)
	assert.Equal(t, "EUR", config.SEPA.Currency)
	assert.Equal(t, 4, config.MaxConcurrency)
	assert.True(t, config.ContinueOnError)
}

func TestParseMainConfig(t *testing.T) {
	config, err := ParseMainConfig([]byte(`
server:
  addr: 127.0.0.1:9000
  read_timeout: 5s
logging:
  level: debug
  format: console
datev:
  consultant_number: 1001
  client_number: 99999
sepa:
  batch_booking: single
max_concurrency: 2
continue_on_error: false
`))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", config.Server.Addr)
	assert.Equal(t, 5*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, "console", config.Logging.Format)
	assert.Equal(t, 1001, config.DATEV.ConsultantNumber)
	assert.Equal(t, "single", config.SEPA.BatchBooking)
	assert.Equal(t, 2, config.MaxConcurrency)
	assert.False(t, config.ContinueOnError)
}

func TestParseMainConfigRejects(t *testing.T) {
	tests := map[string]string{
		"log level":     "logging:\n  level: loud\n",
		"concurrency":   "max_concurrency: -1\n",
		"consultant":    "datev:\n  consultant_number: 5\n",
		"client":        "datev:\n  client_number: 100000\n",
		"batch booking": "sepa:\n  batch_booking: sometimes\n",
		"currency":      "sepa:\n  currency: USD\n",
		"yaml":          "server: [",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMainConfig([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")

	config, err := LoadOrDefault(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "./input", config.InputDir)

	_, err = LoadOrDefault(missing, true)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	t.Setenv("SEPACETAMOL_SERVER_ADDR", ":9999")
	t.Setenv("SEPACETAMOL_DATEV_CLIENT_NUMBER", "42")
	t.Setenv("SEPACETAMOL_CONTINUE_ON_ERROR", "false")

	v := NewViper()
	config := Default()
	require.NoError(t, ApplyOverrides(config, v))

	assert.Equal(t, ":9999", config.Server.Addr)
	assert.Equal(t, 42, config.DATEV.ClientNumber)
	assert.False(t, config.ContinueOnError)
	assert.Equal(t, "info", config.Logging.Level)

	t.Setenv("SEPACETAMOL_LOGGING_LEVEL", "chatty")
	assert.Error(t, ApplyOverrides(config, NewViper()))
}

func TestLoadProfiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}

	write("payroll.yaml", `
name: Payroll
code: PAY
kind: DATEV
file_matching_patterns: ["personio_*.csv", "personio_*.xlsx"]
csv_settings:
  encoding: Windows-1252
transformation_rules:
  - field: Konto
    actions:
      - type: trim
      - type: pad_zeros_to_length
        value: "4"
datev:
  client_number: 12
`)
	write("transfers.yml", `
name: Transfers
kind: sepa
file_matching_patterns: ["Gehalt_*.xlsx"]
`)

	profiles, err := LoadProfiles(dir)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	pay := profiles["PAY"]
	require.NotNil(t, pay)
	assert.Equal(t, KindDATEV, pay.Kind)
	assert.Equal(t, ";", pay.CSVSettings.Delimiter)
	assert.Equal(t, "Windows-1252", pay.CSVSettings.Encoding)
	require.Len(t, pay.TransformationRules, 1)
	assert.Len(t, pay.TransformationRules[0].Actions, 2)

	transfers := profiles["transfers"]
	require.NotNil(t, transfers)
	assert.Equal(t, "transfers", transfers.Code)

	assert.Same(t, pay, MatchProfile("/in/personio_2023-06.csv", profiles))
	assert.Same(t, transfers, MatchProfile("Gehalt_Juni.xlsx", profiles))
	assert.Nil(t, MatchProfile("other.csv", profiles))

	main := Default()
	main.DATEV = DATEVConfig{ConsultantNumber: 1001, ClientNumber: 1}
	assert.Equal(t, DATEVConfig{ConsultantNumber: 1001, ClientNumber: 12}, main.DATEVFor(pay))
	assert.Equal(t, "true", main.SEPAFor(transfers).BatchBooking)
}

func TestParseProfileRejects(t *testing.T) {
	tests := map[string]string{
		"kind":     "kind: paypal\nfile_matching_patterns: [a]\n",
		"patterns": "kind: sepa\n",
		"glob":     "kind: sepa\nfile_matching_patterns: ['[']\n",
		"action":   "kind: datev\nfile_matching_patterns: [a]\ntransformation_rules:\n  - field: x\n    actions:\n      - type: explode\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseProfile([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	config := Default()
	config.InputDir = filepath.Join(root, "in")
	config.OutputDir = filepath.Join(root, "out")
	config.InputArchiveDir = filepath.Join(root, "archive", "in")
	config.OutputArchiveDir = filepath.Join(root, "archive", "out")

	require.NoError(t, config.EnsureDirectories())
	for _, dir := range []string{config.InputDir, config.OutputDir, config.InputArchiveDir, config.OutputArchiveDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}


func TestShippedConfiguration(t *testing.T) {
	config, err := LoadMainConfig(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, config.Server.WriteTimeout)
	assert.Equal(t, 1001, config.DATEV.ConsultantNumber)

	profiles, err := LoadProfiles(filepath.Join("..", "..", "configs"))
	require.NoError(t, err)
	require.Contains(t, profiles, "salary")
	require.Contains(t, profiles, "personio")

	assert.Equal(t, profiles["salary"], MatchProfile("input/Gehalt_Maerz.xlsx", profiles))
	assert.Equal(t, profiles["personio"], MatchProfile("input/personio_2024_03.csv", profiles))
	assert.Nil(t, MatchProfile("input/notes.txt", profiles))
}
