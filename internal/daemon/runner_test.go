package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/netpulsehq/netpulse/internal/config"
	"github.com/netpulsehq/netpulse/internal/fingerprint"
	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/state"
	"github.com/netpulsehq/netpulse/internal/track"
	"github.com/netpulsehq/netpulse/internal/utils"
)

type fakeCollector struct {
	fp models.Fingerprint
}

func (f *fakeCollector) Collect(context.Context) models.Fingerprint { return f.fp }

type seqCollector struct {
	fps   []models.Fingerprint
	calls int
}

func (c *seqCollector) Collect(context.Context) models.Fingerprint {
	fp := c.fps[c.calls%len(c.fps)]
	c.calls++
	return fp
}

type fakeDiagnoser struct {
	verdicts []models.Verdict
	latency  *float64
	calls    int
}

func (f *fakeDiagnoser) Run(_ context.Context, networkID models.NetworkID, gatewayIP string) models.DiagnosticRun {
	verdict := f.verdicts[f.calls%len(f.verdicts)]
	f.calls++
	online := verdict.Online()
	return models.DiagnosticRun{
		Timestamp:         time.Now(),
		NetworkID:         networkID,
		RouterIP:          gatewayIP,
		RouterReachable:   verdict != models.VerdictLANFailure,
		InternetReachable: online,
		DNSOk:             online,
		HTTPOk:            online,
		AvgLatencyMs:      f.latency,
		Verdict:           verdict,
	}
}

type memStore struct {
	mu       sync.Mutex
	runs     []models.DiagnosticRun
	states   []models.StateRecord
	events   []models.Event
	profiles map[models.NetworkID]models.NetworkProfile
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[models.NetworkID]models.NetworkProfile)}
}

func (m *memStore) SaveRun(_ context.Context, run models.DiagnosticRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) Runs(context.Context, models.RunFilter) ([]models.DiagnosticRun, error) {
	return m.runs, nil
}

func (m *memStore) SaveState(_ context.Context, rec models.StateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, rec)
	return nil
}

func (m *memStore) CurrentState(_ context.Context, networkID models.NetworkID) (models.NetworkState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.states) - 1; i >= 0; i-- {
		if m.states[i].NetworkID == networkID {
			return m.states[i].State, nil
		}
	}
	return "", utils.ErrNotFound
}

func (m *memStore) StateHistory(context.Context, models.NetworkID, models.TimeRange) ([]models.StateRecord, error) {
	return m.states, nil
}

func (m *memStore) SaveEvent(_ context.Context, ev models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memStore) Events(context.Context, models.EventFilter) ([]models.Event, error) {
	return m.events, nil
}

func (m *memStore) UpsertProfile(_ context.Context, p models.NetworkProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[p.NetworkID]; ok {
		p.CycleCount = existing.CycleCount + 1
		p.FirstSeen = existing.FirstSeen
	}
	m.profiles[p.NetworkID] = p
	return nil
}

func (m *memStore) Profile(_ context.Context, networkID models.NetworkID) (models.NetworkProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[networkID]
	if !ok {
		return models.NetworkProfile{}, utils.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ProfileByGateway(_ context.Context, gateway string) (models.NetworkProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if gateway != "" && p.LastGateway == gateway {
			return p, nil
		}
	}
	return models.NetworkProfile{}, utils.ErrNotFound
}

func (m *memStore) Profiles(context.Context) ([]models.NetworkProfile, error) { return nil, nil }

func (m *memStore) NetworkStats(context.Context, models.NetworkID, models.TimeRange) (models.NetworkStats, error) {
	return models.NetworkStats{}, nil
}

func (m *memStore) Close() error { return nil }

func testConfig() config.Config {
	return config.Config{
		Monitor: config.MonitorConfig{
			Interval: time.Minute,
			Debounce: config.DebounceConfig{SustainedCycles: 2, Cooldown: 2 * time.Minute},
		},
	}
}

func newTestRunner(st *memStore, diag *fakeDiagnoser, fp models.Fingerprint) *Runner {
	conf := testConfig()
	engine := state.NewEngine(nil, st)
	detector := track.NewDetector(nil, conf.Monitor.Debounce, "dev-1")
	return NewRunner(nil, conf, "dev-1", &fakeCollector{fp: fp}, diag, engine, detector, st)
}

func TestCyclePersistsRunStateAndProfile(t *testing.T) {
	st := newMemStore()
	fp := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "aa:bb:cc:dd:ee:ff"}
	r := newTestRunner(st, &fakeDiagnoser{verdicts: []models.Verdict{models.VerdictHealthy}}, fp)

	if err := r.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(st.runs) != 1 {
		t.Fatalf("runs persisted = %d", len(st.runs))
	}
	wantID := fingerprint.Resolve(fp)
	if st.runs[0].NetworkID != wantID {
		t.Errorf("run network id = %s, want %s", st.runs[0].NetworkID, wantID)
	}
	if len(st.states) != 1 || st.states[0].State != models.StateUp {
		t.Fatalf("states = %+v, want one UP", st.states)
	}
	p, ok := st.profiles[wantID]
	if !ok {
		t.Fatal("profile not upserted")
	}
	if p.LastGateway != "192.168.1.1" {
		t.Errorf("profile gateway = %s", p.LastGateway)
	}
	if p.Name == "" {
		t.Error("new profile has no suggested name")
	}
}

func TestOutageCyclesEmitDownAndRestored(t *testing.T) {
	st := newMemStore()
	fp := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "aa:bb:cc:dd:ee:ff"}
	diag := &fakeDiagnoser{verdicts: []models.Verdict{
		models.VerdictHealthy,
		models.VerdictISPFailure,
		models.VerdictHealthy,
	}}
	r := newTestRunner(st, diag, fp)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := r.Cycle(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		clock = clock.Add(time.Minute)
	}

	var types []models.EventType
	for _, ev := range st.events {
		types = append(types, ev.Type)
		if ev.DeviceID != "dev-1" {
			t.Errorf("event %s missing device id", ev.Type)
		}
	}
	if len(types) != 2 || types[0] != models.EventInternetDown || types[1] != models.EventNetworkRestored {
		t.Fatalf("event types = %v, want [INTERNET_DOWN NETWORK_RESTORED]", types)
	}

	last := st.states[len(st.states)-1]
	if last.State != models.StateUp || last.DowntimeSeconds == nil {
		t.Fatalf("final state = %+v, want UP with downtime", last)
	}
}

func TestOutageAcrossIdentityChangeEmitsRestoredWithDuration(t *testing.T) {
	// A LAN loss wipes the fingerprint, so the down cycle resolves to
	// the sentinel identity and the recovery lands back on the real
	// network. The restored event must still fire and carry the outage
	// duration even though no single network saw both transitions.
	st := newMemStore()
	home := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "aa:bb:cc:dd:ee:ff"}
	collector := &seqCollector{fps: []models.Fingerprint{home, {}, home}}
	diag := &fakeDiagnoser{verdicts: []models.Verdict{
		models.VerdictHealthy,
		models.VerdictLANFailure,
		models.VerdictHealthy,
	}}

	conf := testConfig()
	engine := state.NewEngine(nil, st)
	detector := track.NewDetector(nil, conf.Monitor.Debounce, "dev-1")
	r := NewRunner(nil, conf, "dev-1", collector, diag, engine, detector, st)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := r.Cycle(ctx); err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		clock = clock.Add(time.Minute)
	}

	var restored *models.Event
	for i, ev := range st.events {
		if ev.Type == models.EventNetworkRestored {
			restored = &st.events[i]
		}
	}
	if restored == nil {
		t.Fatalf("no NETWORK_RESTORED among %+v", st.events)
	}
	if restored.NetworkID != fingerprint.Resolve(home) {
		t.Errorf("restored network = %s, want %s", restored.NetworkID, fingerprint.Resolve(home))
	}
	if restored.Duration == nil || *restored.Duration != 60 {
		t.Errorf("restored duration = %v, want 60", restored.Duration)
	}
}

func TestOfflineFingerprintUsesSentinelIdentity(t *testing.T) {
	st := newMemStore()
	r := newTestRunner(st, &fakeDiagnoser{verdicts: []models.Verdict{models.VerdictLANFailure}}, models.Fingerprint{})

	if err := r.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(st.runs) != 1 || st.runs[0].NetworkID != models.OfflineNetworkID {
		t.Fatalf("offline runs = %+v, want sentinel identity", st.runs)
	}
	if len(st.states) != 1 || st.states[0].State != models.StateDown {
		t.Fatalf("offline states = %+v, want DOWN", st.states)
	}
}

func TestProfileReassociationByGateway(t *testing.T) {
	st := newMemStore()
	old := models.NetworkProfile{
		NetworkID:   "stale-id",
		Name:        "Home",
		LastGateway: "192.168.1.1",
	}
	st.profiles[old.NetworkID] = old

	fp := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "aa:bb:cc:dd:ee:ff"}
	r := newTestRunner(st, &fakeDiagnoser{verdicts: []models.Verdict{models.VerdictHealthy}}, fp)

	if err := r.Cycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	p := st.profiles[fingerprint.Resolve(fp)]
	if p.Name != "Home" {
		t.Errorf("new profile name = %q, want inherited %q", p.Name, "Home")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := newMemStore()
	r := newTestRunner(st, &fakeDiagnoser{verdicts: []models.Verdict{models.VerdictHealthy}}, models.Fingerprint{GatewayIP: "192.168.1.1"})
	r.conf.Monitor.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Run returned nil after cancel")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop within the sleep step bound")
	}
}

func TestWaitReturnsImmediatelyWhenBudgetSpent(t *testing.T) {
	st := newMemStore()
	r := newTestRunner(st, &fakeDiagnoser{verdicts: []models.Verdict{models.VerdictHealthy}}, models.Fingerprint{})

	start := time.Now()
	if err := r.wait(context.Background(), -5*time.Second); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("negative budget slept %v", elapsed)
	}
}
