package registry

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bf2ms/queryserver/pkg/schema"
)

func srv(ip string, port uint16, validated bool) *schema.GameServer {
	return &schema.GameServer{
		IP:            net.ParseIP(ip),
		QueryPort:     port,
		Hostname:      "alpha",
		IsValidated:   validated,
		LastRefreshed: time.Now(),
	}
}

func TestSnapshotOnlyIncludesValidated(t *testing.T) {
	r := New(nil)
	r.Upsert(srv("1.2.3.4", 16567, true))
	r.Upsert(srv("5.6.7.8", 16567, false))

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() len = %d, want 1", len(snap))
	}
	if snap[0].IP.String() != "1.2.3.4" {
		t.Fatalf("Snapshot()[0].IP = %s, want 1.2.3.4", snap[0].IP)
	}
}

func TestSnapshotReturnsIndependentCopies(t *testing.T) {
	r := New(nil)
	r.Upsert(srv("1.2.3.4", 16567, true))

	snap := r.Snapshot()
	snap[0].Hostname = "mutated"

	s, ok := r.Get("1.2.3.4:16567")
	if !ok {
		t.Fatalf("Get after Snapshot mutation: not found")
	}
	if s.Hostname != "alpha" {
		t.Fatalf("registry record mutated via snapshot copy: Hostname = %q", s.Hostname)
	}
}

func TestEvictStaleRemovesOldRecords(t *testing.T) {
	r := New(nil)
	old := srv("1.2.3.4", 16567, true)
	old.LastRefreshed = time.Now().Add(-time.Hour)
	r.Upsert(old)
	r.Upsert(srv("5.6.7.8", 16567, true))

	r.EvictStale(time.Now().Add(-time.Minute))

	if r.Len() != 1 {
		t.Fatalf("Len() after EvictStale = %d, want 1", r.Len())
	}
	if _, ok := r.Get("1.2.3.4:16567"); ok {
		t.Fatalf("stale record was not evicted")
	}
}

func TestMarkOnlineNilDatabaseIsNoOp(t *testing.T) {
	r := New(nil)
	s := srv("1.2.3.4", 16567, true)
	r.Upsert(s)
	r.MarkOnline(s) // must not panic with a nil database collaborator
	r.MarkOffline(s)
}

func TestColdStoreRoundTripMarksNotValidated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cold.db")
	cs, err := OpenColdStore(path)
	if err != nil {
		t.Fatalf("OpenColdStore: %v", err)
	}
	defer cs.Close()

	r := New(nil)
	r.Upsert(srv("1.2.3.4", 16567, true))
	if err := cs.Snapshot(r); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	r2 := New(nil)
	if err := cs.LoadInto(r2); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	s, ok := r2.Get("1.2.3.4:16567")
	if !ok {
		t.Fatalf("reloaded registry missing server")
	}
	if s.IsValidated {
		t.Fatalf("reloaded server should not be validated until re-heartbeated")
	}
	if len(r2.Snapshot()) != 0 {
		t.Fatalf("reloaded server should not appear in Snapshot() before re-validation")
	}
}
