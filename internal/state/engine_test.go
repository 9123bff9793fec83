package state

import (
	"context"
	"testing"
	"time"

	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/utils"
)

type fakeStateStore struct {
	records []models.StateRecord
	failing bool
}

func (f *fakeStateStore) SaveState(_ context.Context, rec models.StateRecord) error {
	if f.failing {
		return utils.NewAppError("fake", "save failed", nil)
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeStateStore) CurrentState(_ context.Context, networkID models.NetworkID) (models.NetworkState, error) {
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].NetworkID == networkID {
			return f.records[i].State, nil
		}
	}
	return "", utils.ErrNotFound
}

func (f *fakeStateStore) StateHistory(context.Context, models.NetworkID, models.TimeRange) ([]models.StateRecord, error) {
	return f.records, nil
}

func newTestEngine(store *fakeStateStore, start time.Time) (*Engine, *time.Time) {
	clock := start
	e := NewEngine(nil, store)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestFirstObservationAcceptsAnyState(t *testing.T) {
	for _, first := range []models.NetworkState{
		models.StateUp, models.StateDegraded, models.StateDown, models.StateRecovering,
	} {
		fs := &fakeStateStore{}
		e, _ := newTestEngine(fs, time.Now())

		res, err := e.Update(context.Background(), "net-1", first)
		if err != nil {
			t.Fatalf("Update(%s): %v", first, err)
		}
		if !res.Transitioned {
			t.Errorf("first observation of %s not accepted", first)
		}
		if res.Previous != nil {
			t.Errorf("first observation of %s reported previous %s", first, *res.Previous)
		}
		if len(fs.records) != 1 {
			t.Errorf("expected one record, got %d", len(fs.records))
		}
	}
}

func TestTransitionValidation(t *testing.T) {
	cases := []struct {
		from, to models.NetworkState
		want     bool
	}{
		{models.StateUp, models.StateDegraded, true},
		{models.StateUp, models.StateDown, true},
		{models.StateUp, models.StateRecovering, false},
		{models.StateDegraded, models.StateUp, true},
		{models.StateDegraded, models.StateDown, true},
		{models.StateDegraded, models.StateRecovering, false},
		{models.StateDown, models.StateRecovering, true},
		{models.StateDown, models.StateUp, true},
		{models.StateDown, models.StateDegraded, false},
		{models.StateRecovering, models.StateUp, true},
		{models.StateRecovering, models.StateDegraded, true},
		{models.StateRecovering, models.StateDown, false},
	}
	for _, tc := range cases {
		fs := &fakeStateStore{}
		e, _ := newTestEngine(fs, time.Now())
		ctx := context.Background()

		if _, err := e.Update(ctx, "net-1", tc.from); err != nil {
			t.Fatalf("seed %s: %v", tc.from, err)
		}
		res, err := e.Update(ctx, "net-1", tc.to)
		if err != nil {
			t.Fatalf("Update(%s -> %s): %v", tc.from, tc.to, err)
		}
		if res.Transitioned != tc.want {
			t.Errorf("%s -> %s: transitioned = %v, want %v", tc.from, tc.to, res.Transitioned, tc.want)
		}
		if !tc.want {
			if res.New != tc.from {
				t.Errorf("%s -> %s rejected but state moved to %s", tc.from, tc.to, res.New)
			}
			if len(fs.records) != 1 {
				t.Errorf("%s -> %s rejected but history grew to %d rows", tc.from, tc.to, len(fs.records))
			}
		}
	}
}

func TestSelfLoopIsNoOp(t *testing.T) {
	fs := &fakeStateStore{}
	e, _ := newTestEngine(fs, time.Now())
	ctx := context.Background()

	if _, err := e.Update(ctx, "net-1", models.StateUp); err != nil {
		t.Fatal(err)
	}
	res, err := e.Update(ctx, "net-1", models.StateUp)
	if err != nil {
		t.Fatal(err)
	}
	if res.Transitioned {
		t.Error("self-loop reported as a transition")
	}
	if len(fs.records) != 1 {
		t.Errorf("self-loop appended a record, history has %d rows", len(fs.records))
	}
}

func TestDowntimeAccounting(t *testing.T) {
	fs := &fakeStateStore{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newTestEngine(fs, start)
	ctx := context.Background()

	if _, err := e.Update(ctx, "net-1", models.StateUp); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(10 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateDown); err != nil {
		t.Fatal(err)
	}

	*clock = start.Add(10*time.Second + 125*time.Second)
	res, err := e.Update(ctx, "net-1", models.StateUp)
	if err != nil {
		t.Fatal(err)
	}
	if res.DowntimeSeconds == nil {
		t.Fatal("recovery carried no downtime")
	}
	if got := *res.DowntimeSeconds; got < 124 || got > 126 {
		t.Errorf("downtime = %ds, want 125 +/- 1", got)
	}

	rec := fs.records[len(fs.records)-1]
	if rec.DowntimeSeconds == nil || *rec.DowntimeSeconds != *res.DowntimeSeconds {
		t.Error("persisted record does not carry the downtime")
	}

	// A later outage must not inherit the old tracker.
	*clock = start.Add(500 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateDown); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(560 * time.Second)
	res, err = e.Update(ctx, "net-1", models.StateUp)
	if err != nil {
		t.Fatal(err)
	}
	if res.DowntimeSeconds == nil || *res.DowntimeSeconds != 60 {
		t.Errorf("second outage downtime = %v, want 60", res.DowntimeSeconds)
	}
}

func TestDowntimeClosedThroughRecovering(t *testing.T) {
	fs := &fakeStateStore{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newTestEngine(fs, start)
	ctx := context.Background()

	if _, err := e.Update(ctx, "net-1", models.StateDown); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(30 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateRecovering); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(90 * time.Second)
	res, err := e.Update(ctx, "net-1", models.StateUp)
	if err != nil {
		t.Fatal(err)
	}
	if res.DowntimeSeconds == nil || *res.DowntimeSeconds != 90 {
		t.Errorf("downtime through RECOVERING = %v, want 90", res.DowntimeSeconds)
	}
}

func TestCurrentFallsBackToHistory(t *testing.T) {
	fs := &fakeStateStore{records: []models.StateRecord{
		{NetworkID: "net-1", State: models.StateDegraded, Timestamp: time.Now()},
	}}
	e, _ := newTestEngine(fs, time.Now())

	// A fresh engine has an empty cache; the stored row decides.
	st, seen, err := e.Current(context.Background(), "net-1")
	if err != nil {
		t.Fatal(err)
	}
	if !seen || st != models.StateDegraded {
		t.Errorf("Current = (%s, %v), want (DEGRADED, true)", st, seen)
	}

	// The restored state constrains the next transition.
	res, err := e.Update(context.Background(), "net-1", models.StateRecovering)
	if err != nil {
		t.Fatal(err)
	}
	if res.Transitioned {
		t.Error("DEGRADED -> RECOVERING accepted after restart")
	}
}

func TestUpdateRejectsUnknownState(t *testing.T) {
	e, _ := newTestEngine(&fakeStateStore{}, time.Now())
	if _, err := e.Update(context.Background(), "net-1", "SIDEWAYS"); err == nil {
		t.Error("unknown state accepted")
	}
}

func TestSaveFailureKeepsOutageStart(t *testing.T) {
	fs := &fakeStateStore{}
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e, clock := newTestEngine(fs, start)
	ctx := context.Background()

	// Outage opens, network wobbles back down through RECOVERING and
	// DEGRADED without ever reaching UP.
	if _, err := e.Update(ctx, "net-1", models.StateDown); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(30 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateRecovering); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(60 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateDegraded); err != nil {
		t.Fatal(err)
	}

	// The DOWN re-entry fails to persist. The tracker predates this
	// update, so the original outage start must survive.
	fs.failing = true
	*clock = start.Add(90 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateDown); err == nil {
		t.Fatal("expected save error")
	}
	fs.failing = false

	*clock = start.Add(120 * time.Second)
	if _, err := e.Update(ctx, "net-1", models.StateDown); err != nil {
		t.Fatal(err)
	}
	*clock = start.Add(180 * time.Second)
	res, err := e.Update(ctx, "net-1", models.StateUp)
	if err != nil {
		t.Fatal(err)
	}
	if res.DowntimeSeconds == nil || *res.DowntimeSeconds != 180 {
		t.Errorf("downtime = %v, want 180 from the original outage start", res.DowntimeSeconds)
	}
}

func TestSaveFailureLeavesStateUnchanged(t *testing.T) {
	fs := &fakeStateStore{}
	e, _ := newTestEngine(fs, time.Now())
	ctx := context.Background()

	if _, err := e.Update(ctx, "net-1", models.StateUp); err != nil {
		t.Fatal(err)
	}
	fs.failing = true
	if _, err := e.Update(ctx, "net-1", models.StateDown); err == nil {
		t.Fatal("expected save error")
	}
	fs.failing = false

	st, _, err := e.Current(ctx, "net-1")
	if err != nil {
		t.Fatal(err)
	}
	if st != models.StateUp {
		t.Errorf("state moved to %s despite failed save", st)
	}
}
