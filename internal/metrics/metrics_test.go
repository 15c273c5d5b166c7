package metrics_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/payflow/internal/metrics"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()
	m := metrics.New()

	m.ObserveLedgerRequest("send", "ok", 120*time.Millisecond)
	m.ObserveLedgerRequest("send", "ok", 80*time.Millisecond)
	m.ObserveLedgerRequest("fee-presets", "wait", 10*time.Millisecond)
	m.ObservePresetPoll("wait")
	m.ObservePresetPoll("ready")
	m.ObserveChallenge("send", "challenged")
	m.ObserveSend("sent")
	m.ObserveStaleResponse("presets")

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.LedgerRequests.WithLabelValues("send", "ok")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.LedgerRequests.WithLabelValues("fee-presets", "wait")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PresetPolls.WithLabelValues("ready")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.MfaChallenges.WithLabelValues("send", "challenged")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Sends.WithLabelValues("sent")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.StaleResponses.WithLabelValues("presets")), 0.001)
	assert.Equal(t, 2, testutil.CollectAndCount(m.LedgerLatency))
}

func TestMetrics_PrivateRegistries(t *testing.T) {
	t.Parallel()
	a := metrics.New()
	b := metrics.New()

	a.ObserveSend("sent")
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.Sends.WithLabelValues("sent")), 0.001)
}

func TestMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	m.ObserveSend("rejected")

	path := filepath.Join(t.TempDir(), "payflow.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path) //nolint:gosec // G304: test path
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `payflow_sends_total{outcome="rejected"} 1`))

	require.NoError(t, m.WriteTextfile(""))
}
