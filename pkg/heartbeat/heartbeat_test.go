package heartbeat

import (
	"net"
	"testing"

	"github.com/bf2ms/queryserver/pkg/registry"
)

func TestParseKV(t *testing.T) {
	got := parseKV(`\hostname\alpha\gametype\gpm_cq\numplayers\4\`)
	want := map[string]string{"hostname": "alpha", "gametype": "gpm_cq", "numplayers": "4"}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("parseKV()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestHandleUpsertsAndValidates(t *testing.T) {
	reg := registry.New(nil)
	l := &Listener{Registry: reg, GameTag: "battlefield2"}

	peer := &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 12300}
	datagram := []byte(`\gamename\battlefield2\queryport\16567\hostname\alpha\numplayers\4\statechanged\2\`)
	l.handle(peer, datagram)

	snap := reg.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1 (expected statechanged to validate the record)", len(snap))
	}
	if snap[0].Hostname != "alpha" {
		t.Fatalf("Hostname = %q, want alpha", snap[0].Hostname)
	}
}

func TestHandleIgnoresOtherGameTags(t *testing.T) {
	reg := registry.New(nil)
	l := &Listener{Registry: reg, GameTag: "battlefield2"}

	peer := &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 12300}
	datagram := []byte(`\gamename\someothergame\queryport\16567\hostname\alpha\`)
	l.handle(peer, datagram)

	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for a datagram from a different game tag", reg.Len())
	}
}

func TestHandleMalformedQueryPortDropped(t *testing.T) {
	reg := registry.New(nil)
	l := &Listener{Registry: reg, GameTag: "battlefield2"}

	peer := &net.UDPAddr{IP: net.ParseIP("1.2.3.4"), Port: 12300}
	datagram := []byte(`\gamename\battlefield2\queryport\notaport\hostname\alpha\`)
	l.handle(peer, datagram)

	if reg.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for malformed queryport", reg.Len())
	}
}
