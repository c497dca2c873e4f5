// Package registry is the Registry collaborator (C5): a concurrent map of
// game servers, validated or not, consulted by the query path (which sees
// only validated ones) and written by the Heartbeat collaborator.
package registry

import (
	"log"
	"sync"
	"time"

	"github.com/bf2ms/queryserver/pkg/database"
	"github.com/bf2ms/queryserver/pkg/schema"
)

// Registry holds the live (ip, queryPort) -> GameServer map.
type Registry struct {
	mu      sync.RWMutex
	servers map[string]*schema.GameServer

	db  *database.Store
	ids map[string]int // key -> resolved databaseId, 0 means "resolved, not found"
}

// New builds an empty Registry. db may be nil (no persistence collaborator
// configured); markOnline/markOffline become no-ops in that case.
func New(db *database.Store) *Registry {
	return &Registry{
		servers: make(map[string]*schema.GameServer),
		ids:     make(map[string]int),
		db:      db,
	}
}

// Upsert inserts or replaces the record for its (ip, queryPort) key, called
// by the Heartbeat collaborator on every report.
func (r *Registry) Upsert(s *schema.GameServer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s.Key()] = s
}

// MarkValidated flips isValidated for the server at key, if present.
func (r *Registry) MarkValidated(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.servers[key]; ok {
		s.IsValidated = true
		s.LastRefreshed = time.Now()
	}
}

// EvictStale removes every record whose LastRefreshed is older than
// olderThan.
func (r *Registry) EvictStale(olderThan time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.servers {
		if s.LastRefreshed.Before(olderThan) {
			delete(r.servers, k)
		}
	}
}

// Snapshot returns every validated record as an independent copy, so the
// caller may iterate it without holding the registry lock. Each record is
// copied while the lock is held, so no caller ever observes a torn record.
func (r *Registry) Snapshot() []*schema.GameServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*schema.GameServer, 0, len(r.servers))
	for _, s := range r.servers {
		if !s.IsValidated {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// resolveID returns the cached databaseId for key, resolving and caching it
// via the Database collaborator on first call. Holds no Registry lock.
func (r *Registry) resolveID(key, ip string, queryPort uint16) int {
	r.mu.RLock()
	id, known := r.ids[key]
	r.mu.RUnlock()
	if known {
		return id
	}

	id, err := r.db.ResolveID(ip, queryPort)
	if err != nil {
		log.Printf("registry: resolving databaseId for %s: %v", key, err)
		return 0
	}

	r.mu.Lock()
	r.ids[key] = id
	r.mu.Unlock()
	return id
}

// MarkOnline delegates to the Database collaborator per the core's
// id-resolution/UPDATE contract. A database failure is logged and
// swallowed: the in-memory record is unaffected (S6).
func (r *Registry) MarkOnline(s *schema.GameServer) {
	if r.db == nil {
		return
	}
	key := s.Key()
	id := r.resolveID(key, s.IP.String(), s.QueryPort)
	if id == 0 {
		return
	}
	if err := r.db.MarkOnline(id, s.GamePort, s.Hostname, time.Now()); err != nil {
		log.Printf("registry: database markOnline for %s: %v", key, err)
	}
}

// MarkOffline is the offline counterpart to MarkOnline.
func (r *Registry) MarkOffline(s *schema.GameServer) {
	if r.db == nil {
		return
	}
	key := s.Key()
	id := r.resolveID(key, s.IP.String(), s.QueryPort)
	if id == 0 {
		return
	}
	if err := r.db.MarkOffline(id); err != nil {
		log.Printf("registry: database markOffline for %s: %v", key, err)
	}
}

// Get returns the record at key, if any, for diagnostics and tests.
func (r *Registry) Get(key string) (*schema.GameServer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[key]
	return s, ok
}

// Len reports the total number of tracked records, validated or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}
