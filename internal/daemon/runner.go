package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/netpulsehq/netpulse/internal/config"
	"github.com/netpulsehq/netpulse/internal/fingerprint"
	"github.com/netpulsehq/netpulse/internal/metrics"
	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/state"
	"github.com/netpulsehq/netpulse/internal/store"
	"github.com/netpulsehq/netpulse/internal/track"
	"github.com/netpulsehq/netpulse/internal/utils"
)

// sleepStep bounds how long a shutdown signal can go unnoticed while the
// loop is sleeping between cycles.
const sleepStep = time.Second

// Collector produces one fingerprint per cycle.
type Collector interface {
	Collect(ctx context.Context) models.Fingerprint
}

// Diagnoser runs the hierarchical probe pipeline for one cycle.
type Diagnoser interface {
	Run(ctx context.Context, networkID models.NetworkID, gatewayIP string) models.DiagnosticRun
}

// Runner drives the monitoring loop: collect, resolve, probe, update
// state, detect events, persist. Cycles run strictly sequentially; a
// cycle in progress finishes before shutdown so no record is written
// half-applied.
type Runner struct {
	logger    *slog.Logger
	conf      config.Config
	deviceID  string
	collector Collector
	pipeline  Diagnoser
	engine    *state.Engine
	detector  *track.Detector
	store     store.Store
	latency   *utils.LatencyTracker
	now       func() time.Time
}

func NewRunner(
	logger *slog.Logger,
	conf config.Config,
	deviceID string,
	collector Collector,
	pipeline Diagnoser,
	engine *state.Engine,
	detector *track.Detector,
	st store.Store,
) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:    logger.With("component", "monitor"),
		conf:      conf,
		deviceID:  deviceID,
		collector: collector,
		pipeline:  pipeline,
		engine:    engine,
		detector:  detector,
		store:     st,
		latency:   utils.NewLatencyTracker(256),
		now:       time.Now,
	}
}

// Run executes cycles until the context is cancelled. A failed cycle is
// logged and the loop proceeds; only cancellation stops it. Sleep between
// cycles is shortened by the wall-clock cost of the cycle just run so the
// nominal interval holds.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("monitor loop started",
		slog.Duration("interval", r.conf.Monitor.Interval),
		slog.String("device_id", r.deviceID))

	for {
		start := r.now()
		err := r.Cycle(ctx)
		elapsed := r.now().Sub(start)

		switch {
		case err == nil:
			metrics.ObserveCycle(elapsed, metrics.OutcomeSuccess)
		case errors.Is(err, context.Canceled):
			return ctx.Err()
		default:
			metrics.ObserveCycle(elapsed, metrics.OutcomeError)
			r.logger.Error("cycle failed", slog.Any("error", err))
		}

		if err := r.wait(ctx, r.conf.Monitor.Interval-elapsed); err != nil {
			r.logger.Info("monitor loop stopped")
			return err
		}
	}
}

// Cycle runs one full diagnostic pass.
func (r *Runner) Cycle(ctx context.Context) error {
	now := r.now()

	fp := r.collector.Collect(ctx)
	networkID := fingerprint.Resolve(fp)

	run := r.pipeline.Run(ctx, networkID, fp.GatewayIP)
	if run.AvgLatencyMs != nil {
		r.latency.Observe(time.Duration(*run.AvgLatencyMs * float64(time.Millisecond)))
		metrics.SetLatencySummary(r.latency.Average(), r.latency.Percentile(95))
	}
	if err := r.store.SaveRun(ctx, run); err != nil {
		return err
	}

	current, _, err := r.engine.Current(ctx, networkID)
	if err != nil {
		return err
	}
	res, err := r.engine.Update(ctx, networkID, state.TargetState(current, run.Verdict))
	if err != nil {
		return err
	}

	events, err := r.detector.Analyze(track.Snapshot{
		NetworkID:       networkID,
		Verdict:         run.Verdict,
		AvgLatencyMs:    run.AvgLatencyMs,
		PacketLossPct:   run.PacketLossPct,
		DowntimeSeconds: res.DowntimeSeconds,
	}, now)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := r.store.SaveEvent(ctx, ev); err != nil {
			return err
		}
	}

	if err := r.upsertProfile(ctx, networkID, fp, now); err != nil {
		return err
	}

	r.logger.Debug("cycle complete",
		slog.String("network_id", string(networkID)),
		slog.String("verdict", string(run.Verdict)),
		slog.Int("events", len(events)),
		slog.Duration("latency_avg", r.latency.Average()),
		slog.Duration("latency_p95", r.latency.Percentile(95)))
	return nil
}

// upsertProfile maintains per-network metadata. A brand new identity whose
// gateway matches an older profile's last known gateway inherits that
// profile's name, which re-associates networks seen again after an
// offline stretch.
func (r *Runner) upsertProfile(ctx context.Context, networkID models.NetworkID, fp models.Fingerprint, now time.Time) error {
	profile := models.NetworkProfile{
		NetworkID:   networkID,
		FirstSeen:   now,
		LastSeen:    now,
		LastGateway: fp.GatewayIP,
		LastMAC:     fp.MACAddress,
		CycleCount:  1,
	}

	existing, err := r.store.Profile(ctx, networkID)
	switch {
	case err == nil:
		profile.Name = existing.Name
		profile.FirstSeen = existing.FirstSeen
	case errors.Is(err, utils.ErrNotFound):
		profile.Name = fingerprint.SuggestName(fp)
		if prior, lookupErr := r.store.ProfileByGateway(ctx, fp.GatewayIP); lookupErr == nil && prior.Name != "" {
			profile.Name = prior.Name
		}
	default:
		return err
	}

	return r.store.UpsertProfile(ctx, profile)
}

// wait sleeps for d, waking at least once per second to honor cancellation.
func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	for d > 0 {
		step := d
		if step > sleepStep {
			step = sleepStep
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
		d -= step
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
