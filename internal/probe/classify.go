package probe

import "github.com/netpulsehq/netpulse/internal/models"

// Quality thresholds. Loss is a percentage, latency is milliseconds.
const (
	lossUnstablePct = 20.0
	lossDegradedPct = 10.0
	latencySlowMs   = 200.0
	latencyDegraded = 100.0
)

// Checks summarises which diagnostic levels ran and their boolean outcomes.
type Checks struct {
	Ran               bool
	RouterReachable   bool
	InternetReachable bool
	DNSOk             bool
	HTTPOk            bool
}

// Classify maps probe outcomes and quality metrics to a verdict. It is pure
// and total: every combination of inputs yields a verdict, with "unknown"
// reserved for the case where no probes ran at all.
func Classify(ch Checks, latencyMs, lossPct *float64) models.Verdict {
	switch {
	case !ch.Ran:
		return models.VerdictUnknown
	case !ch.RouterReachable:
		return models.VerdictLANFailure
	case !ch.InternetReachable:
		return models.VerdictISPFailure
	case !ch.DNSOk:
		return models.VerdictDNSFailure
	case !ch.HTTPOk:
		return models.VerdictAppFailure
	}

	// Quality sampling is best-effort; without metrics the connection is
	// considered healthy since every reachability level passed.
	if latencyMs == nil || lossPct == nil {
		return models.VerdictHealthy
	}

	switch {
	case *lossPct >= lossUnstablePct:
		return models.VerdictUnstable
	case *latencyMs >= latencySlowMs:
		return models.VerdictSlow
	case *lossPct >= lossDegradedPct || *latencyMs >= latencyDegraded:
		return models.VerdictDegraded
	default:
		return models.VerdictHealthy
	}
}
