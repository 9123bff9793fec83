package track

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/netpulsehq/netpulse/internal/config"
	"github.com/netpulsehq/netpulse/internal/metrics"
	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/utils"
)

// Hysteresis is the explicit per-network debounce state for quality
// verdicts. It is a plain value advanced by each cycle; nothing in it
// reads the system clock. Binary connectivity is not tracked here: that
// lives at host scope on the Detector.
type Hysteresis struct {
	PrevVerdict      models.Verdict
	DegradedCount    int
	HealthyCount     int
	ReportedDegraded bool
	LastStatusChange time.Time
}

// Snapshot is one cycle's input to the detector.
type Snapshot struct {
	NetworkID     models.NetworkID
	Verdict       models.Verdict
	AvgLatencyMs  *float64
	PacketLossPct *float64

	// DowntimeSeconds is set when this cycle's state update closed an
	// outage; it rides on the restored event as its duration.
	DowntimeSeconds *int64
}

// Detector turns per-cycle verdicts into debounced events. Binary
// connectivity changes and network switches fire immediately; verdict
// quality changes must be sustained and outside the cooldown window.
type Detector struct {
	logger   *slog.Logger
	conf     config.DebounceConfig
	deviceID string

	prevNetwork models.NetworkID
	hasPrev     bool
	networks    map[models.NetworkID]Hysteresis

	// Connectivity is a property of the host, not of the resolved
	// network: a full outage usually changes the resolved identity, so
	// the down and restored sides of the pair land on different network
	// ids and must still pair up. downSince holds the outage start for
	// the restored event's duration when the state engine cannot supply
	// it (the closing UP lands on a different network than the DOWN).
	hostSeen   bool
	hostOnline bool
	downSince  time.Time
}

func NewDetector(logger *slog.Logger, conf config.DebounceConfig, deviceID string) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if conf.SustainedCycles <= 0 {
		conf.SustainedCycles = 2
	}
	return &Detector{
		logger:   logger.With("component", "event-detector"),
		conf:     conf,
		deviceID: deviceID,
		networks: make(map[models.NetworkID]Hysteresis),
	}
}

// Analyze runs one cycle's snapshot through the detector. The hysteresis
// value for the network is advanced unconditionally, whether or not any
// event fired. Errors come only from event construction and indicate a
// defect, so callers should treat them as hard.
func (d *Detector) Analyze(snap Snapshot, now time.Time) ([]models.Event, error) {
	var events []models.Event

	if d.hasPrev && snap.NetworkID != d.prevNetwork {
		ev, err := NewEvent(EventInput{
			Type:      models.EventNetworkSwitch,
			Timestamp: now,
			DeviceID:  d.deviceID,
			NetworkID: snap.NetworkID,
			Description: fmt.Sprintf("Switched from network %s to %s",
				d.prevNetwork, snap.NetworkID),
		})
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		// A switch invalidates whatever was counted on the new network.
		delete(d.networks, snap.NetworkID)
	}

	online := snap.Verdict.Online()
	// A host never observed before is assumed online, so a first cycle
	// that is already offline still raises the alarm.
	prevOnline := d.hostOnline || !d.hostSeen

	h := d.networks[snap.NetworkID]
	h, cycleEvents, err := d.advance(h, prevOnline, snap, now)
	if err != nil {
		return nil, err
	}
	events = append(events, cycleEvents...)

	d.networks[snap.NetworkID] = h
	d.prevNetwork = snap.NetworkID
	d.hasPrev = true
	d.hostOnline = online
	d.hostSeen = true

	for _, ev := range events {
		metrics.CountEvent(string(ev.Type))
		d.logger.Info("event emitted",
			"type", string(ev.Type), "network_id", string(ev.NetworkID), "severity", string(ev.Severity))
	}
	return events, nil
}

func (d *Detector) advance(h Hysteresis, prevOnline bool, snap Snapshot, now time.Time) (Hysteresis, []models.Event, error) {
	var events []models.Event

	online := snap.Verdict.Online()

	switch {
	case prevOnline && !online:
		ev, err := d.offlineEvent(snap, now)
		if err != nil {
			return h, nil, err
		}
		events = append(events, ev)
		d.downSince = now
		h.DegradedCount = 0
		h.HealthyCount = 0

	case !prevOnline && online:
		ev, err := d.restoredEvent(snap, now)
		if err != nil {
			return h, nil, err
		}
		events = append(events, ev)
		d.downSince = time.Time{}
		h.DegradedCount = 0
		h.HealthyCount = 0
		h.ReportedDegraded = false

	case online && snap.Verdict.DegradedClass():
		h.DegradedCount++
		h.HealthyCount = 0
		if h.DegradedCount >= d.conf.SustainedCycles && d.cooldownElapsed(h, now) {
			ev, err := d.degradedEvent(snap, now)
			if err != nil {
				return h, nil, err
			}
			events = append(events, ev)
			h.DegradedCount = 0
			h.ReportedDegraded = true
			h.LastStatusChange = now
		}

	case online && snap.Verdict == models.VerdictHealthy:
		h.HealthyCount++
		h.DegradedCount = 0
		if h.ReportedDegraded && h.HealthyCount >= d.conf.SustainedCycles && d.cooldownElapsed(h, now) {
			ev, err := d.recoveredEvent(snap, now)
			if err != nil {
				return h, nil, err
			}
			events = append(events, ev)
			h.HealthyCount = 0
			h.ReportedDegraded = false
			h.LastStatusChange = now
		}
	}

	h.PrevVerdict = snap.Verdict
	return h, events, nil
}

func (d *Detector) cooldownElapsed(h Hysteresis, now time.Time) bool {
	if h.LastStatusChange.IsZero() {
		return true
	}
	return now.Sub(h.LastStatusChange) >= d.conf.Cooldown
}

func (d *Detector) offlineEvent(snap Snapshot, now time.Time) (models.Event, error) {
	evType := models.EventInternetDown
	desc := "Internet connectivity lost"
	if snap.Verdict == models.VerdictLANFailure {
		evType = models.EventRouterUnreachable
		desc = "Local gateway is not responding"
	}
	return NewEvent(EventInput{
		Type:        evType,
		Timestamp:   now,
		DeviceID:    d.deviceID,
		NetworkID:   snap.NetworkID,
		Description: desc,
		Verdict:     string(snap.Verdict),
		Metrics:     snapMetrics(snap),
	})
}

func (d *Detector) restoredEvent(snap Snapshot, now time.Time) (models.Event, error) {
	desc := "Internet connectivity restored"
	var duration *float64
	if secs, ok := d.outageSeconds(snap, now); ok {
		desc = fmt.Sprintf("Internet connectivity restored after %s",
			utils.FormatDowntime(secs))
		f := float64(secs)
		duration = &f
	}
	return NewEvent(EventInput{
		Type:        models.EventNetworkRestored,
		Timestamp:   now,
		DeviceID:    d.deviceID,
		NetworkID:   snap.NetworkID,
		Description: desc,
		Verdict:     string(snap.Verdict),
		Duration:    duration,
		Metrics:     snapMetrics(snap),
	})
}

// outageSeconds resolves the duration for a restored event. The state
// engine's persisted downtime wins when the recovery closed on the same
// network; the host-level tracker covers the case where the outage opened
// under a different resolved identity.
func (d *Detector) outageSeconds(snap Snapshot, now time.Time) (int64, bool) {
	if snap.DowntimeSeconds != nil {
		return *snap.DowntimeSeconds, true
	}
	if !d.downSince.IsZero() {
		return utils.DowntimeSeconds(d.downSince, now), true
	}
	return 0, false
}

func (d *Detector) degradedEvent(snap Snapshot, now time.Time) (models.Event, error) {
	evType := models.EventStatusChange
	switch snap.Verdict {
	case models.VerdictSlow:
		evType = models.EventHighLatency
	case models.VerdictUnstable:
		evType = models.EventPacketLossSpike
	case models.VerdictDNSFailure:
		evType = models.EventDNSFailure
	case models.VerdictAppFailure:
		evType = models.EventWebsiteUnreachable
	}
	desc := fmt.Sprintf("Connection quality is %s (%s degradation)",
		snap.Verdict, GradeSeverity(snap.AvgLatencyMs, snap.PacketLossPct))
	return NewEvent(EventInput{
		Type:        evType,
		Timestamp:   now,
		DeviceID:    d.deviceID,
		NetworkID:   snap.NetworkID,
		Description: desc,
		Verdict:     string(snap.Verdict),
		Metrics:     snapMetrics(snap),
	})
}

func (d *Detector) recoveredEvent(snap Snapshot, now time.Time) (models.Event, error) {
	return NewEvent(EventInput{
		Type:        models.EventStatusChange,
		Timestamp:   now,
		DeviceID:    d.deviceID,
		NetworkID:   snap.NetworkID,
		Description: "Connection quality back to healthy",
		Verdict:     string(snap.Verdict),
		Metrics:     snapMetrics(snap),
	})
}

// GradeSeverity labels how bad a degradation is from its measurements.
// The label goes into event descriptions; the schema-level severity of an
// event stays fixed by its type.
func GradeSeverity(latencyMs, lossPct *float64) string {
	latency := 0.0
	if latencyMs != nil {
		latency = *latencyMs
	}
	loss := 0.0
	if lossPct != nil {
		loss = *lossPct
	}
	switch {
	case loss >= 50 || latency >= 1000:
		return "critical"
	case loss >= 30 || latency >= 500:
		return "severe"
	case loss >= 20 || latency >= 200:
		return "moderate"
	default:
		return "mild"
	}
}

func snapMetrics(snap Snapshot) map[string]float64 {
	m := make(map[string]float64)
	if snap.AvgLatencyMs != nil {
		m["avg_latency_ms"] = *snap.AvgLatencyMs
	}
	if snap.PacketLossPct != nil {
		m["packet_loss_pct"] = *snap.PacketLossPct
	}
	if len(m) == 0 {
		return nil
	}
	return m
}
