package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterTwiceIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second registration: %v", err)
	}
}

func TestSetLatencySummary(t *testing.T) {
	SetLatencySummary(120*time.Millisecond, 300*time.Millisecond)

	if got := testutil.ToFloat64(probeLatency.WithLabelValues("avg")); math.Abs(got-0.12) > 1e-9 {
		t.Errorf("avg gauge = %v, want 0.12", got)
	}
	if got := testutil.ToFloat64(probeLatency.WithLabelValues("p95")); math.Abs(got-0.3) > 1e-9 {
		t.Errorf("p95 gauge = %v, want 0.3", got)
	}
}
