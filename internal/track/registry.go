package track

import "github.com/netpulsehq/netpulse/internal/models"

// definition fixes the schema-level attributes of one event type. The
// registry is closed: event types are not runtime-extensible, which is
// what lets the factory guarantee every persisted event is well formed.
type definition struct {
	Category models.Category
	Severity models.Severity
	Summary  string
	Verdict  string
	Resolved bool
}

var registry = map[models.EventType]definition{
	models.EventInternetDown: {
		Category: models.CategoryConnectivity,
		Severity: models.SeverityCritical,
		Summary:  "Internet connection lost",
		Verdict:  string(models.VerdictISPFailure),
	},
	models.EventNetworkRestored: {
		Category: models.CategoryConnectivity,
		Severity: models.SeverityInfo,
		Summary:  "Internet connection restored",
		Verdict:  string(models.VerdictHealthy),
		Resolved: true,
	},
	models.EventNetworkSwitch: {
		Category: models.CategoryInfrastructure,
		Severity: models.SeverityInfo,
		Summary:  "Switched to a different network",
	},
	models.EventStatusChange: {
		Category: models.CategoryPerformance,
		Severity: models.SeverityWarning,
		Summary:  "Network status changed",
	},
	models.EventHighLatency: {
		Category: models.CategoryPerformance,
		Severity: models.SeverityWarning,
		Summary:  "High latency detected",
		Verdict:  string(models.VerdictSlow),
	},
	models.EventPacketLossSpike: {
		Category: models.CategoryPerformance,
		Severity: models.SeverityWarning,
		Summary:  "Packet loss spike detected",
		Verdict:  string(models.VerdictUnstable),
	},
	models.EventDNSFailure: {
		Category: models.CategoryInfrastructure,
		Severity: models.SeverityHigh,
		Summary:  "DNS resolution failing",
		Verdict:  string(models.VerdictDNSFailure),
	},
	models.EventRouterUnreachable: {
		Category: models.CategoryInfrastructure,
		Severity: models.SeverityCritical,
		Summary:  "Router unreachable",
		Verdict:  string(models.VerdictLANFailure),
	},
	models.EventWebsiteUnreachable: {
		Category: models.CategoryApplication,
		Severity: models.SeverityMedium,
		Summary:  "Web connectivity check failing",
		Verdict:  string(models.VerdictAppFailure),
	},
}
