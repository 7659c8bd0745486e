package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/onemanifold/SMPST-sub003/sim"

	"github.com/gorhill/cronexpr"
	bolt "go.etcd.io/bbolt"
)

var tracesBucket = []byte("traces")

// StoredTrace is the record persisted per completed simulation run.
type StoredTrace struct {
	Session  string     `json:"session"`
	Protocol string     `json:"protocol"`
	Saved    time.Time  `json:"saved"`
	Trace    *sim.Trace `json:"trace"`
}

// TraceStore persists completed run traces in a bbolt database so
// the editor can replay them later.  Protocols themselves are never
// stored.
type TraceStore struct {
	db *bolt.DB
}

func OpenTraceStore(path string) (*TraceStore, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tracesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &TraceStore{db: db}, nil
}

func (ts *TraceStore) Close() error {
	return ts.db.Close()
}

func (ts *TraceStore) Save(session, protocol string, tr *sim.Trace) error {
	rec := StoredTrace{
		Session:  session,
		Protocol: protocol,
		Saved:    time.Now().UTC(),
		Trace:    tr,
	}
	bs, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	return ts.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tracesBucket).Put([]byte(session), bs)
	})
}

func (ts *TraceStore) Get(session string) (*StoredTrace, error) {
	var rec *StoredTrace
	err := ts.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(tracesBucket).Get([]byte(session))
		if bs == nil {
			return nil
		}
		rec = &StoredTrace{}
		return json.Unmarshal(bs, rec)
	})
	return rec, err
}

func (ts *TraceStore) List() ([]string, error) {
	var ids []string
	err := ts.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(tracesBucket).ForEach(func(k, v []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Prune removes traces saved before the cutoff and returns how many
// went away.
func (ts *TraceStore) Prune(cutoff time.Time) (int, error) {
	pruned := 0
	err := ts.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(tracesBucket)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec StoredTrace
			if err := json.Unmarshal(v, &rec); err != nil {
				// Unreadable record: prune it too.
				if err := c.Delete(); err != nil {
					return err
				}
				pruned++
				continue
			}
			if rec.Saved.Before(cutoff) {
				if err := c.Delete(); err != nil {
					return err
				}
				pruned++
			}
		}
		return nil
	})
	return pruned, err
}

// Janitor prunes old traces on the given crontab schedule, keeping
// those younger than the retention period.  Blocks until the context
// is done.
func (ts *TraceStore) Janitor(ctx context.Context, schedule string, retention time.Duration) error {
	expr, err := cronexpr.Parse(schedule)
	if err != nil {
		return err
	}

	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		n, err := ts.Prune(time.Now().Add(-retention))
		if err != nil {
			log.Printf("trace janitor: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("trace janitor pruned %d traces", n)
		}
	}
}
