package track

import (
	"testing"
	"time"

	"github.com/netpulsehq/netpulse/internal/models"
)

func TestNewEventFillsRegistryFields(t *testing.T) {
	ev, err := NewEvent(EventInput{
		Type:        models.EventInternetDown,
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		DeviceID:    "dev-1",
		NetworkID:   "net-1",
		Description: "Internet connectivity lost",
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.EventID == "" {
		t.Error("event id not generated")
	}
	if ev.Category != models.CategoryConnectivity {
		t.Errorf("category = %s", ev.Category)
	}
	if ev.Severity != models.SeverityCritical {
		t.Errorf("severity = %s", ev.Severity)
	}
	if ev.Summary == "" {
		t.Error("summary not filled from registry")
	}
	if ev.Resolved {
		t.Error("down event marked resolved")
	}
}

func TestNewEventUniqueIDs(t *testing.T) {
	in := EventInput{
		Type:        models.EventStatusChange,
		DeviceID:    "dev-1",
		NetworkID:   "net-1",
		Description: "quality changed",
	}
	a, err := NewEvent(in)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewEvent(in)
	if err != nil {
		t.Fatal(err)
	}
	if a.EventID == b.EventID {
		t.Error("two events share an id")
	}
}

func TestNewEventValidation(t *testing.T) {
	base := EventInput{
		Type:        models.EventStatusChange,
		DeviceID:    "dev-1",
		NetworkID:   "net-1",
		Description: "quality changed",
	}

	cases := map[string]func(EventInput) EventInput{
		"unknown type":           func(in EventInput) EventInput { in.Type = "REBOOT"; return in },
		"empty device id":        func(in EventInput) EventInput { in.DeviceID = ""; return in },
		"whitespace device id":   func(in EventInput) EventInput { in.DeviceID = "   "; return in },
		"empty network id":       func(in EventInput) EventInput { in.NetworkID = ""; return in },
		"whitespace description": func(in EventInput) EventInput { in.Description = " \t "; return in },
	}
	for name, mutate := range cases {
		if _, err := NewEvent(mutate(base)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestNewEventVerdictOverride(t *testing.T) {
	ev, err := NewEvent(EventInput{
		Type:        models.EventNetworkRestored,
		DeviceID:    "dev-1",
		NetworkID:   "net-1",
		Description: "restored",
		Verdict:     string(models.VerdictDegraded),
	})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Verdict != string(models.VerdictDegraded) {
		t.Errorf("verdict = %s, want override", ev.Verdict)
	}
	if !ev.Resolved {
		t.Error("restored event not marked resolved")
	}
}
