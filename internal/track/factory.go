package track

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/utils"
)

// EventInput carries the caller-supplied parts of an event; everything
// schema-level comes from the registry.
type EventInput struct {
	Type          models.EventType
	Timestamp     time.Time
	DeviceID      string
	NetworkID     models.NetworkID
	Description   string
	Verdict       string
	Metrics       map[string]float64
	Duration      *float64
	CorrelationID string
}

// NewEvent builds a validated event. A validation failure here is a
// programming defect, not a network condition, so callers must treat the
// error as hard.
func NewEvent(in EventInput) (models.Event, error) {
	def, ok := registry[in.Type]
	if !ok {
		return models.Event{}, utils.NewAppError("track.NewEvent", "unknown event type "+string(in.Type), nil)
	}
	if strings.TrimSpace(in.DeviceID) == "" {
		return models.Event{}, utils.NewAppError("track.NewEvent", "device id is required", nil)
	}
	if strings.TrimSpace(string(in.NetworkID)) == "" {
		return models.Event{}, utils.NewAppError("track.NewEvent", "network id is required", nil)
	}
	if strings.TrimSpace(in.Description) == "" {
		return models.Event{}, utils.NewAppError("track.NewEvent", "description is required", nil)
	}

	verdict := def.Verdict
	if in.Verdict != "" {
		verdict = in.Verdict
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return models.Event{
		EventID:       uuid.NewString(),
		Timestamp:     ts,
		Type:          in.Type,
		Category:      def.Category,
		Severity:      def.Severity,
		DeviceID:      in.DeviceID,
		NetworkID:     in.NetworkID,
		Verdict:       verdict,
		Summary:       def.Summary,
		Description:   in.Description,
		Metrics:       in.Metrics,
		Duration:      in.Duration,
		Resolved:      def.Resolved,
		CorrelationID: in.CorrelationID,
	}, nil
}
