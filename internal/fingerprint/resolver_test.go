package fingerprint

import (
	"testing"

	"github.com/netpulsehq/netpulse/internal/models"
)

func TestResolveDeterministic(t *testing.T) {
	fp := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "AA:BB:CC:DD:EE:FF"}

	first := Resolve(fp)
	second := Resolve(fp)

	if first != second {
		t.Fatalf("expected deterministic identity, got %s and %s", first, second)
	}
	if len(first) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", first)
	}
}

func TestResolveIgnoresVolatileFields(t *testing.T) {
	base := models.Fingerprint{
		GatewayIP:  "192.168.1.1",
		MACAddress: "AA:BB:CC:DD:EE:FF",
		PublicIP:   "203.0.113.10",
		Hostname:   "laptop-01",
	}
	changed := base
	changed.PublicIP = "198.51.100.77"
	changed.Hostname = "laptop-renamed"
	changed.Platform = "other/os"

	if Resolve(base) != Resolve(changed) {
		t.Fatal("volatile field change altered the network identity")
	}
}

func TestResolveGatewayChangeAltersIdentity(t *testing.T) {
	a := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "AA:BB:CC:DD:EE:FF"}
	b := models.Fingerprint{GatewayIP: "10.0.0.1", MACAddress: "AA:BB:CC:DD:EE:FF"}

	if Resolve(a) == Resolve(b) {
		t.Fatal("different gateways resolved to the same identity")
	}
}

func TestResolveFallbackChain(t *testing.T) {
	onlyLocal := models.Fingerprint{LocalIP: "192.168.1.50"}
	id := Resolve(onlyLocal)
	if id == models.OfflineNetworkID {
		t.Fatal("local IP fallback should not produce the offline sentinel")
	}
	if len(id) != 16 {
		t.Fatalf("expected hashed identity, got %q", id)
	}

	if got := Resolve(models.Fingerprint{}); got != models.OfflineNetworkID {
		t.Fatalf("expected offline sentinel, got %q", got)
	}
}

func TestResolveMACOnly(t *testing.T) {
	macOnly := models.Fingerprint{MACAddress: "AA:BB:CC:DD:EE:FF"}
	gwAndMAC := models.Fingerprint{GatewayIP: "192.168.1.1", MACAddress: "AA:BB:CC:DD:EE:FF"}

	if Resolve(macOnly) == Resolve(gwAndMAC) {
		t.Fatal("partial fingerprint should hash differently from the full stable set")
	}
}

func TestSuggestName(t *testing.T) {
	fp := models.Fingerprint{GatewayIP: "192.168.1.254"}
	if got := SuggestName(fp); got != "Network 254" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := SuggestName(models.Fingerprint{}); got != "Unknown Network" {
		t.Fatalf("unexpected fallback name %q", got)
	}
}
