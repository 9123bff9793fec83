package probe

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingStats carries the outcome of one ICMP probe burst.
type PingStats struct {
	PacketsSent int
	PacketsRecv int
	AvgRtt      time.Duration
	PacketLoss  float64
}

// Reachable reports whether at least one reply came back.
func (s PingStats) Reachable() bool { return s.PacketsRecv > 0 }

// Pinger sends ICMP echo bursts to a host.
type Pinger interface {
	Ping(ctx context.Context, host string, count int) (PingStats, error)
}

// PingerConfig tunes the ICMP prober.
type PingerConfig struct {
	Privileged bool
	Timeout    time.Duration
	Interval   time.Duration
}

type icmpPinger struct {
	conf PingerConfig
}

// NewPinger returns the pro-bing backed Pinger. Unprivileged mode uses UDP
// datagram sockets and works without CAP_NET_RAW on Linux.
func NewPinger(conf PingerConfig) Pinger {
	if conf.Timeout <= 0 {
		conf.Timeout = 4 * time.Second
	}
	if conf.Interval <= 0 {
		conf.Interval = 100 * time.Millisecond
	}
	return &icmpPinger{conf: conf}
}

func (p *icmpPinger) Ping(ctx context.Context, host string, count int) (PingStats, error) {
	if count <= 0 {
		count = 1
	}

	pr := probing.New(host)
	if err := pr.Resolve(); err != nil {
		return PingStats{}, fmt.Errorf("resolve '%s': %w", host, err)
	}

	pr.RecordRtts = false
	pr.Count = count
	pr.Interval = p.conf.Interval
	pr.Timeout = p.conf.Timeout
	pr.SetPrivileged(p.conf.Privileged)
	pr.SetLogger(nil)

	if err := pr.RunWithContext(ctx); err != nil {
		return PingStats{}, fmt.Errorf("ping '%s' (ip %s): %w", pr.Addr(), pr.IPAddr(), err)
	}

	stats := pr.Statistics()
	return PingStats{
		PacketsSent: stats.PacketsSent,
		PacketsRecv: stats.PacketsRecv,
		AvgRtt:      stats.AvgRtt,
		PacketLoss:  stats.PacketLoss,
	}, nil
}
