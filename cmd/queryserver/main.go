// Command queryserver runs the master-server query core: it accepts TCP
// connections from game clients, answers filtered server-list queries, and
// listens for UDP heartbeats that keep the registry current.
package main

import (
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bf2ms/queryserver/pkg/database"
	"github.com/bf2ms/queryserver/pkg/heartbeat"
	"github.com/bf2ms/queryserver/pkg/lifecycle"
	"github.com/bf2ms/queryserver/pkg/queryserver"
	"github.com/bf2ms/queryserver/pkg/registry"
)

const coldStoreSnapshotInterval = 5 * time.Minute

func main() {
	cfg, err := queryserver.Load(os.Getenv("QS_CONF"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *database.Store
	if cfg.Database.Path != "" {
		db, err = database.Open(cfg.Database.Path, 5)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
	} else {
		log.Printf("database: no path configured, running without online/offline persistence")
	}

	reg := registry.New(db)

	if cfg.Registry.ColdStorePath != "" {
		cold, err := registry.OpenColdStore(cfg.Registry.ColdStorePath)
		if err != nil {
			log.Fatalf("registry coldstore: %v", err)
		}
		defer cold.Close()
		if err := cold.LoadInto(reg); err != nil {
			log.Printf("registry coldstore: load: %v", err)
		}
		stopSnapshot := make(chan struct{})
		defer close(stopSnapshot)
		go cold.RunSnapshotTicker(reg, coldStoreSnapshotInterval, stopSnapshot)
	}

	stopEviction := make(chan struct{})
	defer close(stopEviction)
	go heartbeat.RunEvictionTicker(reg, cfg.StaleAfter(), cfg.StaleAfter()/2, stopEviction)

	if cfg.Server.HeartbeatPort != 0 {
		hb, err := heartbeat.Listen(":"+strconv.Itoa(int(cfg.Server.HeartbeatPort)), reg, cfg.Title.Tag)
		if err != nil {
			log.Fatalf("heartbeat: %v", err)
		}
		defer hb.Close()
		go hb.Serve()
		log.Printf("heartbeat: listening on UDP :%d", cfg.Server.HeartbeatPort)
	}

	metrics := queryserver.NewMetrics(reg)
	if cfg.Metrics.ListenAddress != "" {
		go serveMetrics(cfg.Metrics.ListenAddress, metrics)
	}

	lc := lifecycle.NewBus()

	srv, err := queryserver.NewServer(cfg, reg, metrics, lc)
	if err != nil {
		log.Fatalf("queryserver: %v", err)
	}
	if err := srv.Start(); err != nil {
		log.Fatalf("queryserver: %v", err)
	}
}

func serveMetrics(addr string, m *queryserver.Metrics) {
	log.Printf("metrics: listening on %s", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics: %v", err)
	}
}
