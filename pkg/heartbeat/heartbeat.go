// Package heartbeat is the Heartbeat collaborator: a UDP listener that
// decodes GameSpy-style heartbeat datagrams and keeps the Registry current.
//
// spec.md places this collaborator out of scope except at its interface
// (upsert, markValidated, evictStale); the query path's isValidated
// invariant depends on some heartbeat handshake existing, so a minimal one
// is implemented here in the teacher's acceptor idiom.
package heartbeat

import (
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bf2ms/queryserver/pkg/registry"
	"github.com/bf2ms/queryserver/pkg/schema"
)

// Listener receives heartbeat datagrams and applies them to a Registry.
type Listener struct {
	Registry *registry.Registry
	GameTag  string

	conn *net.UDPConn
}

// Listen opens a UDP socket on addr and returns a Listener ready to Serve.
func Listen(addr string, reg *registry.Registry, gameTag string) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{Registry: reg, GameTag: gameTag, conn: conn}, nil
}

// Close shuts down the UDP socket.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Serve reads datagrams until the socket is closed. Each datagram is
// processed independently; malformed ones are logged and dropped.
func (l *Listener) Serve() {
	buf := make([]byte, 4096)
	for {
		n, peer, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			log.Printf("heartbeat: read error: %v", err)
			continue
		}
		l.handle(peer, append([]byte(nil), buf[:n]...))
	}
}

// handle decodes one datagram and applies it to the Registry.
func (l *Listener) handle(peer *net.UDPAddr, datagram []byte) {
	kv := parseKV(string(datagram))
	if kv["gamename"] != "" && kv["gamename"] != l.GameTag {
		return
	}

	queryPort, err := strconv.Atoi(kv["queryport"])
	if err != nil {
		log.Printf("heartbeat: malformed datagram from %s: bad queryport %q", peer, kv["queryport"])
		return
	}

	s := &schema.GameServer{
		IP:            peer.IP,
		QueryPort:     uint16(queryPort),
		GamePort:      atoiOr(kv["hostport"], 0),
		Hostname:      kv["hostname"],
		GameType:      kv["gametype"],
		MapName:       kv["mapname"],
		GameVariant:   kv["gamevariant"],
		NumPlayers:    uint8(atoiOr(kv["numplayers"], 0)),
		MaxPlayers:    uint8(atoiOr(kv["maxplayers"], 0)),
		RoundTime:     uint16(atoiOr(kv["roundtime"], 0)),
		Password:      kv["password"] == "1",
		Ranked:        kv["ranked"] == "1",
		PunkBuster:    kv["punkbuster"] == "1",
		Dedicated:     kv["dedicated"] == "1",
		LastRefreshed: time.Now(),
	}
	l.Registry.Upsert(s)

	if kv["statechanged"] != "" {
		l.Registry.MarkValidated(s.Key())
	}
}

func atoiOr(s string, fallback uint16) uint16 {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return uint16(n)
}

// parseKV parses the legacy GameSpy "\key\value\key\value\" wire format.
func parseKV(s string) map[string]string {
	parts := strings.Split(strings.Trim(s, "\\"), "\\")
	out := make(map[string]string, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		out[strings.ToLower(parts[i])] = parts[i+1]
	}
	return out
}

// RunEvictionTicker periodically evicts registry entries older than
// staleAfter, in the teacher's background-ticker idiom, until stop closes.
func RunEvictionTicker(reg *registry.Registry, staleAfter, interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			reg.EvictStale(time.Now().Add(-staleAfter))
		case <-stop:
			return
		}
	}
}
