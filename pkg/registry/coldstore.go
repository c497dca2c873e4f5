package registry

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/bf2ms/queryserver/pkg/schema"
)

var bucketServers = []byte("servers")

// ColdStore is a bbolt-backed last-known-servers cache: a freshly restarted
// process reloads it at startup so the registry isn't empty until the first
// heartbeat round completes. Reloaded records are marked not validated, so
// they remain invisible to queries until a live heartbeat re-validates them.
type ColdStore struct {
	bolt *bbolt.DB
}

// OpenColdStore opens or creates the bbolt file at path.
func OpenColdStore(path string) (*ColdStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open coldstore %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketServers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: create coldstore bucket: %w", err)
	}
	return &ColdStore{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (c *ColdStore) Close() error {
	if c.bolt != nil {
		return c.bolt.Close()
	}
	return nil
}

// Snapshot persists every record currently in r, validated or not, for cold
// reload at the next process start.
func (c *ColdStore) Snapshot(r *Registry) error {
	r.mu.RLock()
	records := make([]*schema.GameServer, 0, len(r.servers))
	for _, s := range r.servers {
		cp := *s
		records = append(records, &cp)
	}
	r.mu.RUnlock()

	return c.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketServers)
		for _, s := range records {
			data, err := encodeServer(s)
			if err != nil {
				return fmt.Errorf("registry: encode %s: %w", s.Key(), err)
			}
			if err := b.Put([]byte(s.Key()), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadInto reads every stored record into r, forcing IsValidated false so
// reloaded entries stay invisible to queries until re-validated by a live
// heartbeat.
func (c *ColdStore) LoadInto(r *Registry) error {
	count := 0
	err := c.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketServers)
		return b.ForEach(func(k, v []byte) error {
			s, err := decodeServer(v)
			if err != nil {
				return fmt.Errorf("registry: decode %s: %w", string(k), err)
			}
			s.IsValidated = false
			r.Upsert(s)
			count++
			return nil
		})
	})
	if err != nil {
		return err
	}
	log.Printf("registry: reloaded %d cold-started servers", count)
	return nil
}

// RunSnapshotTicker periodically calls Snapshot until stop is closed, in the
// teacher's background-ticker idiom.
func (c *ColdStore) RunSnapshotTicker(r *Registry, interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := c.Snapshot(r); err != nil {
				log.Printf("registry: coldstore snapshot: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func encodeServer(s *schema.GameServer) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeServer(data []byte) (*schema.GameServer, error) {
	var s schema.GameServer
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
