package store

import (
	"context"
	"database/sql"

	"github.com/netpulsehq/netpulse/internal/models"
	"github.com/netpulsehq/netpulse/internal/utils"
)

// NetworkStats summarises diagnostic runs and recorded downtime for one
// network over a query window. Uptime is the share of runs whose verdict
// reported a working internet path, so a window with zero runs reports
// zero uptime rather than guessing.
func (s *SQLite) NetworkStats(ctx context.Context, networkID models.NetworkID, r models.TimeRange) (models.NetworkStats, error) {
	stats := models.NetworkStats{
		NetworkID:     networkID,
		VerdictCounts: make(map[models.Verdict]int64),
	}

	query := `
		SELECT verdict, COUNT(*), AVG(avg_latency_ms), AVG(packet_loss_pct)
		FROM diagnostic_runs`
	where, args := buildPredicates(string(networkID), "", r)
	query += where + " GROUP BY verdict"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, utils.NewAppError("store.NetworkStats", "aggregate runs", err)
	}
	defer rows.Close()

	var (
		onlineRuns      int64
		latencySum      float64
		latencyWeighted int64
		lossSum         float64
		lossWeighted    int64
	)
	for rows.Next() {
		var (
			verdict       string
			count         int64
			latency, loss sql.NullFloat64
		)
		if err := rows.Scan(&verdict, &count, &latency, &loss); err != nil {
			return stats, utils.NewAppError("store.NetworkStats", "scan aggregate", err)
		}
		v := models.Verdict(verdict)
		stats.VerdictCounts[v] = count
		stats.Runs += count
		if v.Online() {
			onlineRuns += count
		}
		if latency.Valid {
			latencySum += latency.Float64 * float64(count)
			latencyWeighted += count
		}
		if loss.Valid {
			lossSum += loss.Float64 * float64(count)
			lossWeighted += count
		}
	}
	if err := rows.Err(); err != nil {
		return stats, utils.NewAppError("store.NetworkStats", "aggregate runs", err)
	}

	if latencyWeighted > 0 {
		stats.AvgLatencyMs = latencySum / float64(latencyWeighted)
	}
	if lossWeighted > 0 {
		stats.AvgPacketLoss = lossSum / float64(lossWeighted)
	}
	if stats.Runs > 0 {
		stats.UptimePct = 100.0 * float64(onlineRuns) / float64(stats.Runs)
	}

	// Downtime comes from closed outages in the state history, not from
	// run verdicts, so a long outage with few runs is still accounted.
	downQuery := `
		SELECT COALESCE(SUM(downtime_seconds), 0)
		FROM network_states`
	downWhere, downArgs := buildPredicates(string(networkID), "", r)
	if downWhere == "" {
		downWhere = " WHERE downtime_seconds IS NOT NULL"
	} else {
		downWhere += " AND downtime_seconds IS NOT NULL"
	}
	err = s.db.QueryRowContext(ctx, downQuery+downWhere, downArgs...).Scan(&stats.DowntimeSeconds)
	if err != nil {
		return stats, utils.NewAppError("store.NetworkStats", "sum downtime", err)
	}

	return stats, nil
}
