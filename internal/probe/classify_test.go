package probe

import (
	"testing"

	"github.com/netpulsehq/netpulse/internal/models"
)

func fptr(v float64) *float64 { return &v }

func TestClassifyShortCircuitVerdicts(t *testing.T) {
	tests := []struct {
		name   string
		checks Checks
		want   models.Verdict
	}{
		{"nothing ran", Checks{}, models.VerdictUnknown},
		{"router down", Checks{Ran: true}, models.VerdictLANFailure},
		{"internet down", Checks{Ran: true, RouterReachable: true}, models.VerdictISPFailure},
		{"dns broken", Checks{Ran: true, RouterReachable: true, InternetReachable: true}, models.VerdictDNSFailure},
		{"http broken", Checks{Ran: true, RouterReachable: true, InternetReachable: true, DNSOk: true}, models.VerdictAppFailure},
		{"all clear no metrics", Checks{Ran: true, RouterReachable: true, InternetReachable: true, DNSOk: true, HTTPOk: true}, models.VerdictHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.checks, nil, nil); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestClassifyQualityThresholds(t *testing.T) {
	allOK := Checks{Ran: true, RouterReachable: true, InternetReachable: true, DNSOk: true, HTTPOk: true}

	tests := []struct {
		name    string
		latency *float64
		loss    *float64
		want    models.Verdict
	}{
		{"loss at unstable boundary", fptr(15), fptr(20.0), models.VerdictUnstable},
		{"just under every threshold", fptr(99.9), fptr(9.9), models.VerdictHealthy},
		{"latency at slow boundary", fptr(200), fptr(0), models.VerdictSlow},
		{"loss 19.9 latency 199 is degraded", fptr(199), fptr(19.9), models.VerdictDegraded},
		{"latency at degraded boundary", fptr(100), fptr(0), models.VerdictDegraded},
		{"loss at degraded boundary", fptr(15), fptr(10.0), models.VerdictDegraded},
		{"clean connection", fptr(15), fptr(0), models.VerdictHealthy},
		{"unstable wins over slow", fptr(500), fptr(35), models.VerdictUnstable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(allOK, tt.latency, tt.loss); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
