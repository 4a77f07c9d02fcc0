package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ginjaninja78/sepacetamol/internal/config"
	"github.com/ginjaninja78/sepacetamol/internal/types"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	logger, err = NewLogger(config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))

	_, err = NewLogger(config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "rejected", Status(&types.RowError{Row: 3, Err: &types.InvalidAmountError{Input: "0"}}))
	assert.Equal(t, "error", Status(errors.New("disk full")))
}

func TestRecordConversion(t *testing.T) {
	m := NewMetrics()
	m.RecordConversion("datev", time.Second, 12, nil)
	m.RecordConversion("datev", time.Second, 0, &types.MissingColumnError{Column: "Datum"})

	families, err := m.Registry.Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				key := family.GetName()
				for _, label := range metric.GetLabel() {
					key += "/" + label.GetValue()
				}
				counts[key] = c.GetValue()
			}
		}
	}

	assert.Equal(t, 1.0, counts["sepacetamol_conversions_total/datev/success"])
	assert.Equal(t, 1.0, counts["sepacetamol_conversions_total/datev/rejected"])
	assert.Equal(t, 12.0, counts["sepacetamol_records_total/datev"])

	var none *Metrics
	none.RecordConversion("sepa", time.Second, 1, nil)
}

func TestZapLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := ZapLoggerMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/datev/personio", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusBadRequest), entries[0].ContextMap()["status"])
}
