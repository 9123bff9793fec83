// Package store defines the engine's append-only persistence contract and
// its SQLite adapter. Runs, state history and events are write-once; the
// only mutable table is the per-network profile metadata.
package store

import (
	"context"

	"github.com/netpulsehq/netpulse/internal/models"
)

// RunStore persists diagnostic runs, one append per cycle.
type RunStore interface {
	SaveRun(ctx context.Context, run models.DiagnosticRun) error
	Runs(ctx context.Context, filter models.RunFilter) ([]models.DiagnosticRun, error)
}

// StateStore persists per-network state history. CurrentState returns
// utils.ErrNotFound for a network with no recorded history.
type StateStore interface {
	SaveState(ctx context.Context, rec models.StateRecord) error
	CurrentState(ctx context.Context, networkID models.NetworkID) (models.NetworkState, error)
	StateHistory(ctx context.Context, networkID models.NetworkID, r models.TimeRange) ([]models.StateRecord, error)
}

// EventStore persists immutable event records.
type EventStore interface {
	SaveEvent(ctx context.Context, ev models.Event) error
	Events(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
}

// ProfileStore maintains per-network metadata across cycles. ProfileByGateway
// supports re-associating an offline profile through its structured
// last-known-gateway field.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p models.NetworkProfile) error
	Profile(ctx context.Context, networkID models.NetworkID) (models.NetworkProfile, error)
	ProfileByGateway(ctx context.Context, gateway string) (models.NetworkProfile, error)
	Profiles(ctx context.Context) ([]models.NetworkProfile, error)
}

// StatsReader serves the read-only projections consumed by external
// history and graphing tools.
type StatsReader interface {
	NetworkStats(ctx context.Context, networkID models.NetworkID, r models.TimeRange) (models.NetworkStats, error)
}

// Store aggregates the full persistence contract.
type Store interface {
	RunStore
	StateStore
	EventStore
	ProfileStore
	StatsReader
	Close() error
}
