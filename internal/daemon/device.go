package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/netpulsehq/netpulse/internal/config"
)

// DeviceID returns the opaque device identity stamped on every event.
// A configured id wins; otherwise a random one is generated once and
// persisted next to the database so it survives restarts.
func DeviceID(conf config.Config) (string, error) {
	if id := strings.TrimSpace(conf.Device.ID); id != "" {
		return id, nil
	}

	path := filepath.Join(filepath.Dir(conf.Storage.Path), "device_id")
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}
