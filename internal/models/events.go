package models

import "time"

// EventType enumerates the closed set of event kinds the engine can emit.
type EventType string

const (
	EventInternetDown       EventType = "INTERNET_DOWN"
	EventNetworkRestored    EventType = "NETWORK_RESTORED"
	EventNetworkSwitch      EventType = "NETWORK_SWITCH"
	EventStatusChange       EventType = "NETWORK_STATUS_CHANGE"
	EventHighLatency        EventType = "HIGH_LATENCY"
	EventPacketLossSpike    EventType = "PACKET_LOSS_SPIKE"
	EventDNSFailure         EventType = "DNS_FAILURE"
	EventRouterUnreachable  EventType = "ROUTER_UNREACHABLE"
	EventWebsiteUnreachable EventType = "WEBSITE_UNREACHABLE"
)

// Category classifies events by functional area.
type Category string

const (
	CategoryConnectivity   Category = "CONNECTIVITY"
	CategoryPerformance    Category = "PERFORMANCE"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategoryApplication    Category = "APPLICATION"
)

// Severity captures how urgent an event is.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Event is an immutable record of a meaningful network transition.
// Resolution is represented by a later compensating event, never by
// mutating an existing one.
type Event struct {
	EventID       string             `json:"event_id"`
	Timestamp     time.Time          `json:"timestamp"`
	Type          EventType          `json:"event_type"`
	Category      Category           `json:"category"`
	Severity      Severity           `json:"severity"`
	DeviceID      string             `json:"device_id"`
	NetworkID     NetworkID          `json:"network_id"`
	Verdict       string             `json:"verdict,omitempty"`
	Summary       string             `json:"summary,omitempty"`
	Description   string             `json:"description,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
	Duration      *float64           `json:"duration,omitempty"`
	Resolved      bool               `json:"resolved"`
	CorrelationID string             `json:"correlation_id,omitempty"`
}

// EventFilter selects events for read-only projections.
type EventFilter struct {
	NetworkID NetworkID
	Type      EventType
	Range     TimeRange
	Limit     int
}
