package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_ExposesObservations(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveBuildDuration(120 * time.Millisecond)
	rec.ObservePhaseDuration("load", 10*time.Millisecond)
	rec.IncBuildOutcome(OutcomeSuccess)
	rec.SetPagesLoaded(3)
	rec.IncPagesSkipped()
	rec.IncRebuildTriggered()

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	require.Contains(t, body, "pagewright_build_outcomes_total")
	require.Contains(t, body, `outcome="success"`)
	require.Contains(t, body, "pagewright_pages_loaded 3")
	require.Contains(t, body, `phase="load"`)
}

func TestNilPrometheusRecorder_IsSafe(t *testing.T) {
	var rec *PrometheusRecorder
	require.NotPanics(t, func() {
		rec.ObserveBuildDuration(time.Second)
		rec.IncBuildOutcome(OutcomeFailed)
		rec.SetPagesLoaded(1)
	})
}

func TestNoopRecorder_ImplementsRecorder(t *testing.T) {
	var _ Recorder = NoopRecorder{}
	var _ Recorder = (*PrometheusRecorder)(nil)
}
