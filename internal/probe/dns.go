package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const fallbackDNSServer = "8.8.8.8:53"

// DNSProber resolves a hostname and reports whether resolution succeeded.
type DNSProber interface {
	Resolve(ctx context.Context, hostname string) (time.Duration, error)
}

type dnsClient interface {
	ExchangeContext(ctx context.Context, msg *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

type dnsProber struct {
	client dnsClient
	server string
}

// NewDNSProber builds a prober querying A records against server. An empty
// server falls back to the system resolver configuration, then to a public
// resolver.
func NewDNSProber(server string, timeout time.Duration) DNSProber {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if server == "" {
		server = systemResolver()
	}
	return &dnsProber{
		client: &dns.Client{Net: "udp", ReadTimeout: timeout, Timeout: timeout},
		server: server,
	}
}

func (p *dnsProber) Resolve(ctx context.Context, hostname string) (time.Duration, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(hostname), dns.TypeA)
	msg.RecursionDesired = true

	resp, rtt, err := p.client.ExchangeContext(ctx, msg, p.server)
	if err != nil {
		return 0, fmt.Errorf("query '%s' against %s: %w", hostname, p.server, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return rtt, fmt.Errorf("query '%s' returned %s", hostname, dns.RcodeToString[resp.Rcode])
	}
	if len(resp.Answer) == 0 {
		return rtt, fmt.Errorf("query '%s' returned no answers", hostname)
	}
	return rtt, nil
}

func systemResolver() string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return fallbackDNSServer
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port)
}
