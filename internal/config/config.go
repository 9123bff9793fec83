package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the monitoring engine.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Storage StorageConfig `yaml:"storage"`
	Monitor MonitorConfig `yaml:"monitor"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
}

// DeviceConfig carries the externally supplied device identity. The id is
// persisted on events verbatim and never interpreted by the engine.
type DeviceConfig struct {
	ID string `yaml:"id"`
}

// StorageConfig controls where the append-only history database lives.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig controls the diagnostic cycle loop.
type MonitorConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Probes   ProbesConfig   `yaml:"probes"`
	Debounce DebounceConfig `yaml:"debounce"`
}

// ProbesConfig fixes the targets and timeouts of the diagnostic pipeline.
type ProbesConfig struct {
	InternetIP     string        `yaml:"internetIP"`
	DNSName        string        `yaml:"dnsName"`
	DNSServer      string        `yaml:"dnsServer"`
	HTTPURL        string        `yaml:"httpURL"`
	PingCount      int           `yaml:"pingCount"`
	PingPrivileged bool          `yaml:"pingPrivileged"`
	PingTimeout    time.Duration `yaml:"pingTimeout"`
	DNSTimeout     time.Duration `yaml:"dnsTimeout"`
	HTTPTimeout    time.Duration `yaml:"httpTimeout"`
}

// DebounceConfig tunes event-detector hysteresis.
type DebounceConfig struct {
	SustainedCycles int           `yaml:"sustainedCycles"`
	Cooldown        time.Duration `yaml:"cooldown"`
}

// ServerConfig controls the read-only query listener and metrics endpoint.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// CacheConfig controls caching of the public IP lookup, which otherwise
// hits an external service every cycle.
type CacheConfig struct {
	Enabled     bool          `yaml:"enabled"`
	PublicIPTTL time.Duration `yaml:"publicIPTTL"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("NETPULSE_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Storage: StorageConfig{Path: defaultStoragePath()},
		Monitor: MonitorConfig{
			Interval: time.Minute,
			Probes: ProbesConfig{
				InternetIP:  "8.8.8.8",
				DNSName:     "www.google.com",
				HTTPURL:     "https://www.google.com",
				PingCount:   5,
				PingTimeout: 4 * time.Second,
				DNSTimeout:  2 * time.Second,
				HTTPTimeout: 5 * time.Second,
			},
			Debounce: DebounceConfig{
				SustainedCycles: 2,
				Cooldown:        2 * time.Minute,
			},
		},
		Server: ServerConfig{
			Address:         "127.0.0.1:8087",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Cache: CacheConfig{
			Enabled:     true,
			PublicIPTTL: 10 * time.Minute,
		},
	}
}

func defaultStoragePath() string {
	base, err := os.UserHomeDir()
	if err != nil {
		return "netpulse.db"
	}
	return filepath.Join(base, ".local", "share", "netpulse", "netpulse.db")
}

func (c *Config) validate() error {
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("monitor interval %s is below 1s", c.Monitor.Interval)
	}
	if c.Monitor.Probes.PingCount <= 0 {
		return fmt.Errorf("ping count must be positive")
	}
	if c.Monitor.Debounce.SustainedCycles <= 0 {
		return fmt.Errorf("debounce sustained cycles must be positive")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NETPULSE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("NETPULSE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("NETPULSE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Interval = d
		}
	}
	if v := os.Getenv("NETPULSE_INTERNET_IP"); v != "" {
		cfg.Monitor.Probes.InternetIP = v
	}
	if v := os.Getenv("NETPULSE_DNS_NAME"); v != "" {
		cfg.Monitor.Probes.DNSName = v
	}
	if v := os.Getenv("NETPULSE_DNS_SERVER"); v != "" {
		cfg.Monitor.Probes.DNSServer = v
	}
	if v := os.Getenv("NETPULSE_HTTP_URL"); v != "" {
		cfg.Monitor.Probes.HTTPURL = v
	}
	if v := os.Getenv("NETPULSE_PING_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.Probes.PingCount = n
		}
	}
	if v := os.Getenv("NETPULSE_PING_PRIVILEGED"); v != "" {
		cfg.Monitor.Probes.PingPrivileged = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("NETPULSE_SUSTAINED_CYCLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monitor.Debounce.SustainedCycles = n
		}
	}
	if v := os.Getenv("NETPULSE_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Debounce.Cooldown = d
		}
	}
	if v := os.Getenv("NETPULSE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("NETPULSE_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("NETPULSE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NETPULSE_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("NETPULSE_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("NETPULSE_PUBLIC_IP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.PublicIPTTL = d
		}
	}
}
