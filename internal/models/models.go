package models

import "time"

// Fingerprint is one cycle's snapshot of raw network-identifying host
// attributes. Fields that could not be read are empty strings; a fingerprint
// is never persisted verbatim, only hashed into a NetworkID.
type Fingerprint struct {
	GatewayIP  string
	MACAddress string
	LocalIP    string
	PublicIP   string
	Hostname   string
	Platform   string
}

// NetworkID is a stable identifier for a physical network, derived from the
// non-volatile subset of a fingerprint. Real networks hash to 16 hex
// characters; OfflineNetworkID is the sentinel used when nothing at all is
// known about the attachment.
type NetworkID string

// OfflineNetworkID groups history recorded while the host had no resolvable
// network attachment. It is distinct from every hashed identity.
const OfflineNetworkID NetworkID = "offline"

// Verdict classifies the outcome of one diagnostic cycle.
type Verdict string

const (
	VerdictHealthy    Verdict = "healthy"
	VerdictDegraded   Verdict = "degraded"
	VerdictSlow       Verdict = "slow"
	VerdictUnstable   Verdict = "unstable"
	VerdictLANFailure Verdict = "local network failure"
	VerdictISPFailure Verdict = "ISP failure"
	VerdictDNSFailure Verdict = "DNS failure"
	VerdictAppFailure Verdict = "application failure"
	VerdictUnknown    Verdict = "unknown"
)

// Online reports whether the verdict implies basic internet connectivity.
// DNS and application failures still count as online: packets reach the
// internet even though higher layers are broken.
func (v Verdict) Online() bool {
	switch v {
	case VerdictLANFailure, VerdictISPFailure, VerdictUnknown:
		return false
	default:
		return true
	}
}

// DegradedClass reports whether the verdict belongs to the class of
// quality degradations that the event detector debounces.
func (v Verdict) DegradedClass() bool {
	switch v {
	case VerdictDegraded, VerdictSlow, VerdictUnstable, VerdictDNSFailure, VerdictAppFailure:
		return true
	default:
		return false
	}
}

// DiagnosticRun is the immutable result of one diagnostic cycle.
// Latency and loss are nil when the quality level did not run.
type DiagnosticRun struct {
	Timestamp         time.Time `json:"timestamp"`
	NetworkID         NetworkID `json:"network_id"`
	RouterIP          string    `json:"router_ip,omitempty"`
	InternetIP        string    `json:"internet_ip,omitempty"`
	RouterReachable   bool      `json:"router_reachable"`
	InternetReachable bool      `json:"internet_reachable"`
	DNSOk             bool      `json:"dns_ok"`
	HTTPOk            bool      `json:"http_ok"`
	AvgLatencyMs      *float64  `json:"avg_latency_ms,omitempty"`
	PacketLossPct     *float64  `json:"packet_loss_pct,omitempty"`
	Verdict           Verdict   `json:"verdict"`
}

// NetworkState is the coarse connectivity state tracked per network.
type NetworkState string

const (
	StateUp         NetworkState = "UP"
	StateDegraded   NetworkState = "DEGRADED"
	StateDown       NetworkState = "DOWN"
	StateRecovering NetworkState = "RECOVERING"
)

// Valid reports whether s is one of the four known states.
func (s NetworkState) Valid() bool {
	switch s {
	case StateUp, StateDegraded, StateDown, StateRecovering:
		return true
	default:
		return false
	}
}

// StateRecord is one append-only row of per-network state history.
// DowntimeSeconds is set only on the DOWN to UP transition that closes a
// tracked outage.
type StateRecord struct {
	NetworkID       NetworkID    `json:"network_id"`
	State           NetworkState `json:"state"`
	Timestamp       time.Time    `json:"timestamp"`
	DowntimeSeconds *int64       `json:"downtime_seconds,omitempty"`
}

// NetworkProfile stores per-network metadata maintained across cycles.
// LastGateway and LastMAC are structured fields used to re-associate a
// profile after an offline period.
type NetworkProfile struct {
	NetworkID   NetworkID `json:"network_id"`
	Name        string    `json:"name,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	LastGateway string    `json:"last_gateway,omitempty"`
	LastMAC     string    `json:"last_mac,omitempty"`
	CycleCount  int64     `json:"cycle_count"`
}

// TimeRange bounds historical queries. A zero Start or End leaves that side
// unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// RunFilter selects diagnostic runs for read-only projections.
type RunFilter struct {
	NetworkID NetworkID
	Range     TimeRange
	Limit     int
}

// NetworkStats summarises a network's behaviour over a query window.
type NetworkStats struct {
	NetworkID       NetworkID         `json:"network_id"`
	Runs            int64             `json:"runs"`
	AvgLatencyMs    float64           `json:"avg_latency_ms"`
	AvgPacketLoss   float64           `json:"avg_packet_loss"`
	UptimePct       float64           `json:"uptime_pct"`
	DowntimeSeconds int64             `json:"downtime_seconds"`
	VerdictCounts   map[Verdict]int64 `json:"verdict_counts"`
}
