package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/netpulsehq/netpulse/internal/metrics"
	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/store"
	"github.com/netpulsehq/netpulse/internal/utils"
)

// Result reports the outcome of one state update. A rejected transition is
// not an error: Transitioned is false and stored state is untouched.
type Result struct {
	Transitioned    bool
	Previous        *models.NetworkState
	New             models.NetworkState
	DowntimeSeconds *int64
}

type networkTrack struct {
	mu        sync.Mutex
	current   models.NetworkState
	seen      bool
	downSince time.Time
}

// Engine owns the coarse per-network state machine. The in-memory cache is
// an optimization only; unseen networks are resolved against persisted
// history first so downtime accounting survives restarts.
type Engine struct {
	logger *slog.Logger
	states store.StateStore
	now    func() time.Time

	mu       sync.Mutex
	networks map[models.NetworkID]*networkTrack
}

func NewEngine(logger *slog.Logger, states store.StateStore) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:   logger.With("component", "state-engine"),
		states:   states,
		now:      time.Now,
		networks: make(map[models.NetworkID]*networkTrack),
	}
}

func (e *Engine) track(networkID models.NetworkID) *networkTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.networks[networkID]
	if !ok {
		t = &networkTrack{}
		e.networks[networkID] = t
	}
	return t
}

// Current returns the known state for a network, consulting persisted
// history before declaring it unseen. The second return is false when the
// network has never been observed.
func (e *Engine) Current(ctx context.Context, networkID models.NetworkID) (models.NetworkState, bool, error) {
	t := e.track(networkID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return e.currentLocked(ctx, networkID, t)
}

func (e *Engine) currentLocked(ctx context.Context, networkID models.NetworkID, t *networkTrack) (models.NetworkState, bool, error) {
	if t.seen {
		return t.current, true, nil
	}
	stored, err := e.states.CurrentState(ctx, networkID)
	if errors.Is(err, utils.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	t.current = stored
	t.seen = true
	return stored, true, nil
}

// Update moves a network toward the given state. The first observation of a
// network accepts any valid state unconditionally. Invalid transitions and
// self-loops leave stored state untouched and report Transitioned false.
// Entering DOWN starts the downtime tracker; the transition that brings the
// network back to UP closes it and attaches the elapsed seconds.
func (e *Engine) Update(ctx context.Context, networkID models.NetworkID, next models.NetworkState) (Result, error) {
	if !next.Valid() {
		return Result{}, utils.NewAppError("state.Update", "unknown state "+string(next), nil)
	}

	t := e.track(networkID)
	t.mu.Lock()
	defer t.mu.Unlock()

	now := e.now()

	current, seen, err := e.currentLocked(ctx, networkID, t)
	if err != nil {
		return Result{}, err
	}

	if seen && current == next {
		return Result{Transitioned: false, Previous: &current, New: current}, nil
	}
	if seen && !ValidTransition(current, next) {
		e.logger.Warn("rejected state transition",
			"network_id", string(networkID), "from", string(current), "to", string(next))
		return Result{Transitioned: false, Previous: &current, New: current}, nil
	}

	res := Result{Transitioned: true, New: next}
	if seen {
		prev := current
		res.Previous = &prev
	}

	openedDown := next == models.StateDown && t.downSince.IsZero()
	if openedDown {
		t.downSince = now
	}
	closedDown := next == models.StateUp && !t.downSince.IsZero()
	if closedDown {
		downtime := utils.DowntimeSeconds(t.downSince, now)
		res.DowntimeSeconds = &downtime
	}

	rec := models.StateRecord{
		NetworkID:       networkID,
		State:           next,
		Timestamp:       now,
		DowntimeSeconds: res.DowntimeSeconds,
	}
	if err := e.states.SaveState(ctx, rec); err != nil {
		// Keep memory consistent with what the history actually shows.
		// A tracker that predates this update is still the truth: a DOWN
		// re-entry after DOWN -> RECOVERING -> DEGRADED must not lose the
		// original outage start to a transient write failure.
		if openedDown {
			t.downSince = time.Time{}
		}
		return Result{}, err
	}
	if closedDown {
		t.downSince = time.Time{}
	}

	t.current = next
	t.seen = true
	metrics.SetNetworkState(string(networkID), string(next))

	args := []any{"network_id", string(networkID), "state", string(next)}
	if res.Previous != nil {
		args = append(args, "previous", string(*res.Previous))
	}
	if res.DowntimeSeconds != nil {
		args = append(args, "downtime", utils.FormatDowntime(*res.DowntimeSeconds))
	}
	e.logger.Info("network state changed", args...)

	return res, nil
}
