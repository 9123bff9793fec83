package fingerprint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/netpulsehq/netpulse/internal/cache"
	"github.com/netpulsehq/netpulse/internal/models"
)

const (
	publicIPEndpoint = "https://api.ipify.org"
	publicIPCacheKey = "fingerprint:public_ip"

	// Address used only to pick the outbound interface; no packets are sent.
	outboundProbeAddr = "8.8.8.8:80"
)

var (
	linuxGatewayRe   = regexp.MustCompile(`default via ([\d.]+)`)
	darwinGatewayRe  = regexp.MustCompile(`gateway: ([\d.]+)`)
	windowsGatewayRe = regexp.MustCompile(`Default Gateway[ .]*: ([\d.]+)`)
)

// Collector gathers raw host and network attributes for one cycle. A failure
// to read any single attribute leaves that field empty; collection as a
// whole never fails.
type Collector struct {
	logger     *slog.Logger
	httpClient *http.Client
	cache      cache.Provider
	publicTTL  time.Duration

	// Injection points for tests.
	runCommand func(ctx context.Context, name string, args ...string) (string, error)
	dialUDP    func() (net.Conn, error)
}

// NewCollector constructs a Collector. The cache provider absorbs the
// external public IP lookup between cycles; pass a NoopProvider to disable.
func NewCollector(logger *slog.Logger, cacheProvider cache.Provider, publicTTL time.Duration) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &Collector{
		logger:     logger,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		cache:      cacheProvider,
		publicTTL:  publicTTL,
		runCommand: runCommand,
		dialUDP: func() (net.Conn, error) {
			return net.Dial("udp4", outboundProbeAddr)
		},
	}
}

// Collect gathers all attributes into a fingerprint. Individual lookups that
// fail are logged at debug level and leave their field empty.
func (c *Collector) Collect(ctx context.Context) models.Fingerprint {
	fp := models.Fingerprint{Platform: platformString()}

	if gw, err := c.gatewayIP(ctx); err != nil {
		c.logger.Debug("gateway lookup failed", slog.Any("error", err))
	} else {
		fp.GatewayIP = gw
	}

	if ip, err := c.localIP(); err != nil {
		c.logger.Debug("local IP lookup failed", slog.Any("error", err))
	} else {
		fp.LocalIP = ip
	}

	if mac, err := macAddress(fp.LocalIP); err != nil {
		c.logger.Debug("MAC lookup failed", slog.Any("error", err))
	} else {
		fp.MACAddress = mac
	}

	if ip, err := c.publicIP(ctx); err != nil {
		c.logger.Debug("public IP lookup failed", slog.Any("error", err))
	} else {
		fp.PublicIP = ip
	}

	if name, err := os.Hostname(); err == nil {
		fp.Hostname = name
	}

	return fp
}

// gatewayIP detects the default route's next hop with the platform's
// routing tool.
func (c *Collector) gatewayIP(ctx context.Context) (string, error) {
	switch runtime.GOOS {
	case "windows":
		out, err := c.runCommand(ctx, "ipconfig")
		if err != nil {
			return "", err
		}
		return matchFirst(windowsGatewayRe, out)
	case "darwin":
		out, err := c.runCommand(ctx, "route", "-n", "get", "default")
		if err != nil {
			return "", err
		}
		return matchFirst(darwinGatewayRe, out)
	default:
		out, err := c.runCommand(ctx, "ip", "route")
		if err != nil {
			return "", err
		}
		return matchFirst(linuxGatewayRe, out)
	}
}

// localIP determines the address used for outbound traffic by opening a UDP
// socket toward a public address. Nothing is transmitted.
func (c *Collector) localIP() (string, error) {
	conn, err := c.dialUDP()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

// publicIP resolves the external address via ipify, consulting the cache
// first. Public IP is informational only and never part of the identity.
func (c *Collector) publicIP(ctx context.Context) (string, error) {
	if cached, err := c.cache.Get(ctx, publicIPCacheKey); err == nil && len(cached) > 0 {
		return string(cached), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, publicIPEndpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("public IP endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}

	ip := strings.TrimSpace(string(body))
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("public IP endpoint returned %q", ip)
	}

	if err := c.cache.Set(ctx, publicIPCacheKey, []byte(ip), c.publicTTL); err != nil {
		c.logger.Debug("public IP cache write failed", slog.Any("error", err))
	}
	return ip, nil
}

// macAddress returns the hardware address of the interface owning localIP,
// falling back to the first non-loopback interface that has one.
func macAddress(localIP string) (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var fallback string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		hw := strings.ToUpper(iface.HardwareAddr.String())
		if hw == "00:00:00:00:00:00" {
			continue
		}
		if fallback == "" && iface.Flags&net.FlagUp != 0 {
			fallback = hw
		}
		if localIP == "" {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.String() == localIP {
				return hw, nil
			}
		}
	}

	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no usable interface found")
}

func platformString() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

func matchFirst(re *regexp.Regexp, out string) (string, error) {
	m := re.FindStringSubmatch(out)
	if len(m) < 2 {
		return "", fmt.Errorf("no match in command output")
	}
	return m[1], nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}
