package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/netpulsehq/netpulse/internal/models"
)

// Resolve derives the stable network identity from a fingerprint. Only the
// gateway IP and MAC address feed the hash; public IP, hostname and platform
// are volatile and deliberately excluded, so DHCP renewals and ISP address
// rotation never create a spurious new network.
//
// Fallback chain: gateway+MAC, then local IP, then the offline sentinel.
func Resolve(fp models.Fingerprint) models.NetworkID {
	stable := make([]string, 0, 2)
	if fp.GatewayIP != "" {
		stable = append(stable, fp.GatewayIP)
	}
	if fp.MACAddress != "" {
		stable = append(stable, fp.MACAddress)
	}

	if len(stable) == 0 {
		if fp.LocalIP == "" {
			return models.OfflineNetworkID
		}
		stable = []string{fp.LocalIP}
	}

	sum := sha256.Sum256([]byte(strings.Join(stable, "|")))
	return models.NetworkID(hex.EncodeToString(sum[:])[:16])
}

// SuggestName proposes a human-readable name for a newly seen network.
func SuggestName(fp models.Fingerprint) string {
	if parts := strings.Split(fp.GatewayIP, "."); len(parts) == 4 {
		return "Network " + parts[3]
	}
	return "Unknown Network"
}
