package queryserver

import (
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/bf2ms/queryserver/pkg/enctypex"
	"github.com/bf2ms/queryserver/pkg/lifecycle"
	"github.com/bf2ms/queryserver/pkg/registry"
)

// Server accepts TCP connections and spawns one Session per connection, in
// the teacher's acceptLoop/handleConnection idiom.
type Server struct {
	cfg      Config
	core     *Core
	listener net.Listener

	mu     sync.Mutex
	nextID int
}

// NewServer builds a Server ready to Start, wiring cfg's title handoff key
// into the enctypex codec and reg into every session's Core.
func NewServer(cfg Config, reg *registry.Registry, metrics *Metrics, lc *lifecycle.Bus) (*Server, error) {
	var key [enctypex.HandoffKeyLen]byte
	if len(cfg.Title.HandoffKey) != enctypex.HandoffKeyLen {
		return nil, fmt.Errorf("queryserver: handoff key must be %d bytes, got %d", enctypex.HandoffKeyLen, len(cfg.Title.HandoffKey))
	}
	copy(key[:], cfg.Title.HandoffKey)

	return &Server{
		cfg:    cfg,
		nextID: 1,
		core: &Core{
			Title:     key,
			TitleTag:  cfg.Title.Tag,
			Registry:  reg,
			Metrics:   metrics,
			Lifecycle: lc,
			IdleRead:  cfg.IdleReadTimeout(),
		},
	}, nil
}

// Start binds the listen address and runs the accept loop until Stop is
// called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.ListenAddress, s.cfg.Server.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("queryserver: listen %s: %w", addr, err)
	}
	s.listener = ln
	log.Printf("queryserver: listening on %s", addr)
	s.acceptLoop(ln)
	return nil
}

// Stop closes the listener, unblocking acceptLoop.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("queryserver: accept error: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	id := s.nextSessionID()
	log.Printf("[%d] queryserver: connection from %s", id, conn.RemoteAddr())
	sess := NewSession(id, conn, s.core)
	sess.Serve()
	log.Printf("[%d] queryserver: session closed", id)
}

func (s *Server) nextSessionID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}
