package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/netpulsehq/netpulse/internal/config"
	"github.com/netpulsehq/netpulse/internal/metrics"
	"github.com/netpulsehq/netpulse/internal/models"
)

// Pipeline runs the ordered, short-circuiting diagnostic sequence:
// router, internet, DNS, HTTP, then quality sampling. A failing level
// records false for every downstream boolean and skips the rest; probe
// errors are downgraded locally and never escape the pipeline.
type Pipeline struct {
	logger *slog.Logger
	pinger Pinger
	dns    DNSProber
	http   HTTPProber
	conf   config.ProbesConfig

	now func() time.Time
}

// NewPipeline constructs the diagnostic pipeline. Nil probers are replaced
// with the defaults built from conf.
func NewPipeline(logger *slog.Logger, conf config.ProbesConfig, pinger Pinger, dns DNSProber, http HTTPProber) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if pinger == nil {
		pinger = NewPinger(PingerConfig{
			Privileged: conf.PingPrivileged,
			Timeout:    conf.PingTimeout,
		})
	}
	if dns == nil {
		dns = NewDNSProber(conf.DNSServer, conf.DNSTimeout)
	}
	if http == nil {
		http = NewHTTPProber(conf.HTTPTimeout)
	}
	return &Pipeline{
		logger: logger,
		pinger: pinger,
		dns:    dns,
		http:   http,
		conf:   conf,
		now:    time.Now,
	}
}

// Run executes one diagnostic cycle against gatewayIP and returns the
// immutable run record. It performs network I/O only; persistence is the
// caller's concern.
func (p *Pipeline) Run(ctx context.Context, networkID models.NetworkID, gatewayIP string) models.DiagnosticRun {
	run := models.DiagnosticRun{
		Timestamp:  p.now().UTC(),
		NetworkID:  networkID,
		RouterIP:   gatewayIP,
		InternetIP: p.conf.InternetIP,
	}

	checks := Checks{Ran: true}

	checks.RouterReachable = gatewayIP != "" && p.pingOK(ctx, "router", gatewayIP, 1)
	run.RouterReachable = checks.RouterReachable

	if checks.RouterReachable {
		checks.InternetReachable = p.pingOK(ctx, "internet", p.conf.InternetIP, 1)
		run.InternetReachable = checks.InternetReachable
	}

	if checks.InternetReachable {
		checks.DNSOk = p.dnsOK(ctx)
		run.DNSOk = checks.DNSOk
	}

	if checks.DNSOk {
		checks.HTTPOk = p.httpOK(ctx)
		run.HTTPOk = checks.HTTPOk
	}

	if checks.HTTPOk {
		run.AvgLatencyMs, run.PacketLossPct = p.quality(ctx)
	}

	run.Verdict = Classify(checks, run.AvgLatencyMs, run.PacketLossPct)
	return run
}

func (p *Pipeline) pingOK(ctx context.Context, layer, host string, count int) bool {
	start := p.now()
	stats, err := p.pinger.Ping(ctx, host, count)
	ok := err == nil && stats.Reachable()
	metrics.ObserveProbe(layer, p.now().Sub(start), ok)
	if err != nil {
		p.logger.Debug("ping probe failed", slog.String("layer", layer), slog.String("host", host), slog.Any("error", err))
	}
	return ok
}

func (p *Pipeline) dnsOK(ctx context.Context) bool {
	start := p.now()
	_, err := p.dns.Resolve(ctx, p.conf.DNSName)
	metrics.ObserveProbe("dns", p.now().Sub(start), err == nil)
	if err != nil {
		p.logger.Debug("dns probe failed", slog.String("name", p.conf.DNSName), slog.Any("error", err))
	}
	return err == nil
}

func (p *Pipeline) httpOK(ctx context.Context) bool {
	start := p.now()
	err := p.http.Check(ctx, p.conf.HTTPURL)
	metrics.ObserveProbe("http", p.now().Sub(start), err == nil)
	if err != nil {
		p.logger.Debug("http probe failed", slog.String("url", p.conf.HTTPURL), slog.Any("error", err))
	}
	return err == nil
}

// quality samples latency and loss with a multi-packet burst. Both metrics
// stay nil when the burst itself fails.
func (p *Pipeline) quality(ctx context.Context) (*float64, *float64) {
	start := p.now()
	stats, err := p.pinger.Ping(ctx, p.conf.InternetIP, p.conf.PingCount)
	metrics.ObserveProbe("quality", p.now().Sub(start), err == nil)
	if err != nil {
		p.logger.Debug("quality sampling failed", slog.Any("error", err))
		return nil, nil
	}
	if stats.PacketsSent == 0 {
		return nil, nil
	}

	latency := float64(stats.AvgRtt.Microseconds()) / 1000.0
	loss := stats.PacketLoss
	return &latency, &loss
}
