package queryserver

import (
	"bytes"
	"log"
	"net"
	"strings"
	"time"

	"github.com/bf2ms/queryserver/pkg/enctypex"
	"github.com/bf2ms/queryserver/pkg/filter"
	"github.com/bf2ms/queryserver/pkg/lifecycle"
	"github.com/bf2ms/queryserver/pkg/masterlist"
	"github.com/bf2ms/queryserver/pkg/registry"
	"github.com/bf2ms/queryserver/pkg/schema"
)

const frameDelimiter = "\x00\x00\x00\x00"

// Session is the C6 component: one instance per accepted TCP connection,
// tying the normaliser, evaluator, encoder and cipher together.
type Session struct {
	ID       int
	conn     net.Conn
	core     *Core
	disposed bool
}

// Core bundles the collaborators a Session needs: the title identity, the
// registry it queries, and the metrics/lifecycle sinks it reports to.
type Core struct {
	Title      [enctypex.HandoffKeyLen]byte
	TitleTag   string
	Registry   *registry.Registry
	Metrics    *Metrics
	Lifecycle  *lifecycle.Bus
	IdleRead   time.Duration
}

// NewSession wraps an accepted connection.
func NewSession(id int, conn net.Conn, core *Core) *Session {
	return &Session{ID: id, conn: conn, core: core}
}

// Serve runs the session to completion: read, normalise, encode, encrypt,
// send, close. It never panics the caller's goroutine on malformed input —
// any error is logged and the session simply closes without a reply.
func (s *Session) Serve() {
	guard := lifecycle.NewOnceGuard(s.core.Lifecycle)
	defer func() {
		guard.Fire(lifecycle.Event{SessionID: s.ID, Addr: s.conn.RemoteAddr().String()})
		s.dispose()
	}()

	if s.core.IdleRead > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.core.IdleRead))
	}

	buf := make([]byte, 8192)
	n, err := s.conn.Read(buf)
	if err != nil {
		log.Printf("[%d] session: read error: %v", s.ID, err)
		s.outcome("disconnected")
		return
	}

	frames := bytes.Split(buf[:n], []byte(frameDelimiter))
	for _, frame := range frames {
		if s.handleFrame(frame) {
			return
		}
	}
	s.outcome("malformed")
}

// handleFrame processes one candidate frame. Returns true if it sent a
// response and the session is complete.
func (s *Session) handleFrame(frame []byte) bool {
	parts := splitDropEmpty(frame, 0x00)
	if len(parts) < 4 {
		return false
	}
	if parts[0] != s.core.TitleTag {
		return false
	}

	nonceAndFilter := parts[2]
	if len(nonceAndFilter) < enctypex.NonceLen {
		return false
	}
	var nonce [enctypex.NonceLen]byte
	copy(nonce[:], nonceAndFilter[:enctypex.NonceLen])
	rawFilter := nonceAndFilter[enctypex.NonceLen:]

	fields := splitFields(parts[3])

	canonical := filter.Normalize(rawFilter)
	pred, err := filter.Compile(canonical)
	if err != nil {
		log.Printf("[%d] evaluator: %v (filter=%q)", s.ID, err, canonical)
		if s.core.Metrics != nil {
			s.core.Metrics.EvaluatorError()
		}
		pred = nil // match-all fallback, per spec.md §7
	}

	snapshot := s.core.Registry.Snapshot()
	filtered := make([]*schema.GameServer, 0, len(snapshot))
	for _, srv := range snapshot {
		if filter.Eval(pred, srv) {
			filtered = append(filtered, srv)
		}
	}

	start := time.Now()
	blob := masterlist.Encode(clientIP(s.conn), fields, filtered)
	encrypted := enctypex.Encrypt(s.core.Title, nonce, blob)
	if s.core.Metrics != nil {
		s.core.Metrics.ObserveEncodeDuration(time.Since(start))
	}

	if _, err := s.conn.Write(encrypted); err != nil {
		log.Printf("[%d] session: write error: %v", s.ID, err)
		s.outcome("disconnected")
		return true
	}
	s.outcome("ok")
	return true
}

func (s *Session) outcome(kind string) {
	if s.core.Metrics != nil {
		s.core.Metrics.SessionOutcome(kind)
	}
}

// dispose releases the session's stream exactly once.
func (s *Session) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.conn.Close()
}

func clientIP(conn net.Conn) net.IP {
	addr, ok := conn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return net.IPv4zero
	}
	return addr.IP
}

// splitDropEmpty splits b on single occurrences of delim, dropping any
// resulting empty strings (the spec's "split on single 0x00 bytes, drop
// empties").
func splitDropEmpty(b []byte, delim byte) []string {
	var out []string
	start := 0
	for i, c := range b {
		if c == delim {
			if i > start {
				out = append(out, string(b[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}

func splitFields(s string) []string {
	parts := strings.Split(s, "\\")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
