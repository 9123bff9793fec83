package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/utils"
)

//go:embed schema.sql
var schemaFS embed.FS

// Fixed-width UTC timestamps keep lexicographic and chronological order
// identical, so range predicates work on the TEXT column directly.
const timeLayout = "2006-01-02T15:04:05.000Z"

// SQLite implements the full Store contract on a single database file.
// The process holds an advisory file lock for its lifetime: this engine is
// the sole writer, while WAL mode lets external query tools read without
// ever being blocked by it.
type SQLite struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates or opens the database at path, applies the schema, and
// acquires the single-writer lock. It fails fast when another engine
// process already owns the file.
func Open(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire writer lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("database %s is locked by another process", path)
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single writer needs a single connection; readers use their own
	// handles out of process.
	db.SetMaxOpenConns(1)

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLite{db: db, lock: lock}, nil
}

// NewWithDB wraps an existing database handle; used by tests.
func NewWithDB(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Close releases the database and the writer lock.
func (s *SQLite) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// SaveRun appends one diagnostic run. Each append is its own implicit
// transaction; no lock is held across cycles.
func (s *SQLite) SaveRun(ctx context.Context, run models.DiagnosticRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostic_runs (
			timestamp, network_id, router_ip, internet_ip,
			router_reachable, internet_reachable, dns_ok, http_ok,
			avg_latency_ms, packet_loss_pct, verdict
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Timestamp.UTC().Format(timeLayout),
		string(run.NetworkID),
		run.RouterIP,
		run.InternetIP,
		boolToInt(run.RouterReachable),
		boolToInt(run.InternetReachable),
		boolToInt(run.DNSOk),
		boolToInt(run.HTTPOk),
		nullFloat(run.AvgLatencyMs),
		nullFloat(run.PacketLossPct),
		string(run.Verdict),
	)
	if err != nil {
		return utils.NewAppError("store.SaveRun", "insert diagnostic run", err)
	}
	return nil
}

// Runs returns diagnostic runs matching the filter, newest first.
func (s *SQLite) Runs(ctx context.Context, filter models.RunFilter) ([]models.DiagnosticRun, error) {
	query := `
		SELECT timestamp, network_id, router_ip, internet_ip,
		       router_reachable, internet_reachable, dns_ok, http_ok,
		       avg_latency_ms, packet_loss_pct, verdict
		FROM diagnostic_runs`
	where, args := buildPredicates(string(filter.NetworkID), "", filter.Range)
	query += where + " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError("store.Runs", "query diagnostic runs", err)
	}
	defer rows.Close()

	var runs []models.DiagnosticRun
	for rows.Next() {
		var (
			run                models.DiagnosticRun
			ts, netID          string
			routerIP, wanIP    sql.NullString
			rOK, iOK, dOK, hOK int
			latency, loss      sql.NullFloat64
			verdict            string
		)
		if err := rows.Scan(&ts, &netID, &routerIP, &wanIP, &rOK, &iOK, &dOK, &hOK, &latency, &loss, &verdict); err != nil {
			return nil, utils.NewAppError("store.Runs", "scan row", err)
		}
		run.Timestamp = parseStoredTime(ts)
		run.NetworkID = models.NetworkID(netID)
		run.RouterIP = routerIP.String
		run.InternetIP = wanIP.String
		run.RouterReachable = rOK != 0
		run.InternetReachable = iOK != 0
		run.DNSOk = dOK != 0
		run.HTTPOk = hOK != 0
		run.AvgLatencyMs = floatPtr(latency)
		run.PacketLossPct = floatPtr(loss)
		run.Verdict = models.Verdict(verdict)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveState appends one state history row.
func (s *SQLite) SaveState(ctx context.Context, rec models.StateRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO network_states (network_id, state, timestamp, downtime_seconds)
		VALUES (?, ?, ?, ?)`,
		string(rec.NetworkID),
		string(rec.State),
		rec.Timestamp.UTC().Format(timeLayout),
		nullInt(rec.DowntimeSeconds),
	)
	if err != nil {
		return utils.NewAppError("store.SaveState", "insert state record", err)
	}
	return nil
}

// CurrentState returns the latest persisted state for a network, or
// utils.ErrNotFound when the network has no history.
func (s *SQLite) CurrentState(ctx context.Context, networkID models.NetworkID) (models.NetworkState, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT state FROM network_states
		WHERE network_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`,
		string(networkID),
	).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", utils.ErrNotFound
	}
	if err != nil {
		return "", utils.NewAppError("store.CurrentState", "query current state", err)
	}
	return models.NetworkState(state), nil
}

// StateHistory returns state records for a network in a time range,
// oldest first.
func (s *SQLite) StateHistory(ctx context.Context, networkID models.NetworkID, r models.TimeRange) ([]models.StateRecord, error) {
	query := `
		SELECT network_id, state, timestamp, downtime_seconds
		FROM network_states`
	where, args := buildPredicates(string(networkID), "", r)
	query += where + " ORDER BY timestamp ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError("store.StateHistory", "query state history", err)
	}
	defer rows.Close()

	var records []models.StateRecord
	for rows.Next() {
		var (
			netID, state, ts string
			downtime         sql.NullInt64
		)
		if err := rows.Scan(&netID, &state, &ts, &downtime); err != nil {
			return nil, utils.NewAppError("store.StateHistory", "scan row", err)
		}
		rec := models.StateRecord{
			NetworkID: models.NetworkID(netID),
			State:     models.NetworkState(state),
			Timestamp: parseStoredTime(ts),
		}
		if downtime.Valid {
			v := downtime.Int64
			rec.DowntimeSeconds = &v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveEvent appends one immutable event record.
func (s *SQLite) SaveEvent(ctx context.Context, ev models.Event) error {
	var metricsJSON sql.NullString
	if len(ev.Metrics) > 0 {
		data, err := json.Marshal(ev.Metrics)
		if err != nil {
			return utils.NewAppError("store.SaveEvent", "encode metrics", err)
		}
		metricsJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (
			event_id, timestamp, event_type, category, severity,
			device_id, network_id, verdict, summary, description,
			metrics, duration, resolved, correlation_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID,
		ev.Timestamp.UTC().Format(timeLayout),
		string(ev.Type),
		string(ev.Category),
		string(ev.Severity),
		ev.DeviceID,
		string(ev.NetworkID),
		ev.Verdict,
		ev.Summary,
		ev.Description,
		metricsJSON,
		nullFloat(ev.Duration),
		boolToInt(ev.Resolved),
		nullString(ev.CorrelationID),
	)
	if err != nil {
		return utils.NewAppError("store.SaveEvent", "insert event", err)
	}
	return nil
}

// Events returns events matching the filter, newest first.
func (s *SQLite) Events(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	query := `
		SELECT event_id, timestamp, event_type, category, severity,
		       device_id, network_id, verdict, summary, description,
		       metrics, duration, resolved, correlation_id
		FROM events`
	where, args := buildPredicates(string(filter.NetworkID), string(filter.Type), filter.Range)
	query += where + " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError("store.Events", "query events", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			ev                       models.Event
			ts, evType, cat, sev     string
			netID                    string
			verdict, summary, descr  sql.NullString
			metricsJSON, correlation sql.NullString
			duration                 sql.NullFloat64
			resolved                 int
		)
		if err := rows.Scan(&ev.EventID, &ts, &evType, &cat, &sev, &ev.DeviceID, &netID,
			&verdict, &summary, &descr, &metricsJSON, &duration, &resolved, &correlation); err != nil {
			return nil, utils.NewAppError("store.Events", "scan row", err)
		}
		ev.Timestamp = parseStoredTime(ts)
		ev.Type = models.EventType(evType)
		ev.Category = models.Category(cat)
		ev.Severity = models.Severity(sev)
		ev.NetworkID = models.NetworkID(netID)
		ev.Verdict = verdict.String
		ev.Summary = summary.String
		ev.Description = descr.String
		ev.Duration = floatPtr(duration)
		ev.Resolved = resolved != 0
		ev.CorrelationID = correlation.String
		if metricsJSON.Valid && metricsJSON.String != "" {
			if err := json.Unmarshal([]byte(metricsJSON.String), &ev.Metrics); err != nil {
				return nil, utils.NewAppError("store.Events", "decode metrics", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// UpsertProfile creates or refreshes the metadata row for a network.
func (s *SQLite) UpsertProfile(ctx context.Context, p models.NetworkProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO network_profiles (
			network_id, name, first_seen, last_seen, last_gateway, last_mac, cycle_count
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network_id) DO UPDATE SET
			last_seen = excluded.last_seen,
			last_gateway = excluded.last_gateway,
			last_mac = excluded.last_mac,
			cycle_count = network_profiles.cycle_count + 1`,
		string(p.NetworkID),
		p.Name,
		p.FirstSeen.UTC().Format(timeLayout),
		p.LastSeen.UTC().Format(timeLayout),
		nullString(p.LastGateway),
		nullString(p.LastMAC),
		p.CycleCount,
	)
	if err != nil {
		return utils.NewAppError("store.UpsertProfile", "upsert profile", err)
	}
	return nil
}

// Profile returns the metadata row for a network, or utils.ErrNotFound.
func (s *SQLite) Profile(ctx context.Context, networkID models.NetworkID) (models.NetworkProfile, error) {
	return s.profileWhere(ctx, "network_id = ?", string(networkID))
}

// ProfileByGateway returns the most recently seen profile whose structured
// last-known-gateway matches exactly, or utils.ErrNotFound.
func (s *SQLite) ProfileByGateway(ctx context.Context, gateway string) (models.NetworkProfile, error) {
	if gateway == "" {
		return models.NetworkProfile{}, utils.ErrNotFound
	}
	return s.profileWhere(ctx, "last_gateway = ? ORDER BY last_seen DESC", gateway)
}

func (s *SQLite) profileWhere(ctx context.Context, predicate string, arg string) (models.NetworkProfile, error) {
	var (
		p                   models.NetworkProfile
		netID               string
		name, gateway, mac  sql.NullString
		firstSeen, lastSeen string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT network_id, name, first_seen, last_seen, last_gateway, last_mac, cycle_count
		FROM network_profiles
		WHERE `+predicate+`
		LIMIT 1`, arg,
	).Scan(&netID, &name, &firstSeen, &lastSeen, &gateway, &mac, &p.CycleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NetworkProfile{}, utils.ErrNotFound
	}
	if err != nil {
		return models.NetworkProfile{}, utils.NewAppError("store.Profile", "query profile", err)
	}
	p.NetworkID = models.NetworkID(netID)
	p.Name = name.String
	p.FirstSeen = parseStoredTime(firstSeen)
	p.LastSeen = parseStoredTime(lastSeen)
	p.LastGateway = gateway.String
	p.LastMAC = mac.String
	return p, nil
}

// Profiles lists all known networks, most recently seen first.
func (s *SQLite) Profiles(ctx context.Context) ([]models.NetworkProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT network_id, name, first_seen, last_seen, last_gateway, last_mac, cycle_count
		FROM network_profiles
		ORDER BY last_seen DESC`)
	if err != nil {
		return nil, utils.NewAppError("store.Profiles", "query profiles", err)
	}
	defer rows.Close()

	var profiles []models.NetworkProfile
	for rows.Next() {
		var (
			p                   models.NetworkProfile
			netID               string
			name, gateway, mac  sql.NullString
			firstSeen, lastSeen string
		)
		if err := rows.Scan(&netID, &name, &firstSeen, &lastSeen, &gateway, &mac, &p.CycleCount); err != nil {
			return nil, utils.NewAppError("store.Profiles", "scan row", err)
		}
		p.NetworkID = models.NetworkID(netID)
		p.Name = name.String
		p.FirstSeen = parseStoredTime(firstSeen)
		p.LastSeen = parseStoredTime(lastSeen)
		p.LastGateway = gateway.String
		p.LastMAC = mac.String
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// buildPredicates assembles the shared WHERE clause for the equality and
// range filters every projection supports.
func buildPredicates(networkID, eventType string, r models.TimeRange) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if networkID != "" {
		clauses = append(clauses, "network_id = ?")
		args = append(args, networkID)
	}
	if eventType != "" {
		clauses = append(clauses, "event_type = ?")
		args = append(args, eventType)
	}
	if !r.Start.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, r.Start.UTC().Format(timeLayout))
	}
	if !r.End.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, r.End.UTC().Format(timeLayout))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	where := " WHERE " + clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}
	return where, args
}

func parseStoredTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
