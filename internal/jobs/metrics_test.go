package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger_integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger_integrity").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger_integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger_integrity", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger_integrity")))
}

func TestAddFindings(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddFindings("low_stock_scan", "low_stock", 3)
	m.AddFindings("low_stock_scan", "low_stock", 0)
	require.Equal(t, 3.0, testutil.ToFloat64(m.findings.WithLabelValues("low_stock_scan", "low_stock")))

	var nilMetrics *Metrics
	nilMetrics.AddFindings("x", "y", 1)
	require.NoError(t, nilMetrics.Track("x").End(nil))
}
