package store

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

var (
	bucketDagSnapshots = []byte("dag_snapshots")
	bucketDagVersions  = []byte("dag_versions")
)

// DagSnapshotStore persists one IdeaDag per correlation id with a version
// history, so the engine can resume a redelivered mandate from its last
// known DAG state instead of restarting the reasoning tree from scratch.
type DagSnapshotStore struct {
	db *bbolt.DB
}

// NewDagSnapshotStore opens (or creates) the BoltDB file at path.
func NewDagSnapshotStore(path string) (*DagSnapshotStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketDagSnapshots, bucketDagVersions} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}

	return &DagSnapshotStore{db: db}, nil
}

// NewDagSnapshotStoreReadOnly opens the BoltDB file at path read-only, for a
// debug tool inspecting a mandate's dag state without taking the writer lock
// a running worker holds on the same file.
func NewDagSnapshotStoreReadOnly(path string) (*DagSnapshotStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("store: open boltdb read-only: %w", err)
	}
	return &DagSnapshotStore{db: db}, nil
}

// Save writes dag as the current snapshot for correlationID, archiving the
// previous snapshot (if any) into the version history first.
func (s *DagSnapshotStore) Save(_ context.Context, correlationID string, dag *dagmodel.IdeaDag) error {
	data, err := dag.MarshalJSON()
	if err != nil {
		return fmt.Errorf("store: marshal dag snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		snapshots := tx.Bucket(bucketDagSnapshots)
		versions := tx.Bucket(bucketDagVersions)

		if existing := snapshots.Get([]byte(correlationID)); existing != nil {
			versionKey := fmt.Sprintf("%s:%d", correlationID, time.Now().UnixNano())
			if err := versions.Put([]byte(versionKey), existing); err != nil {
				return fmt.Errorf("archive previous version: %w", err)
			}
		}
		return snapshots.Put([]byte(correlationID), data)
	})
}

// Load returns the current DAG snapshot for correlationID, if any.
func (s *DagSnapshotStore) Load(_ context.Context, correlationID string) (*dagmodel.IdeaDag, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketDagSnapshots)
		if v := bucket.Get([]byte(correlationID)); v != nil {
			data = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if data == nil {
		return nil, false, nil
	}

	dag := &dagmodel.IdeaDag{}
	if err := dag.UnmarshalJSON(data); err != nil {
		return nil, false, fmt.Errorf("store: unmarshal dag snapshot: %w", err)
	}
	return dag, true, nil
}

// Versions returns up to limit archived snapshots for correlationID, oldest
// key order first (keys are correlationID:timestampNano so this is chronological).
func (s *DagSnapshotStore) Versions(_ context.Context, correlationID string, limit int) ([][]byte, error) {
	var out [][]byte
	prefix := []byte(correlationID + ":")

	err := s.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket(bucketDagVersions).Cursor()
		count := 0
		for k, v := cursor.Seek(prefix); k != nil && count < limit; k, v = cursor.Next() {
			if !hasPrefix(k, prefix) {
				break
			}
			out = append(out, append([]byte{}, v...))
			count++
		}
		return nil
	})
	return out, err
}

// Delete removes the current snapshot and all archived versions for
// correlationID, used once a task record reaches a terminal status and its
// retention window (external to this package) has elapsed.
func (s *DagSnapshotStore) Delete(_ context.Context, correlationID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDagSnapshots).Delete([]byte(correlationID)); err != nil {
			return err
		}
		versions := tx.Bucket(bucketDagVersions)
		prefix := []byte(correlationID + ":")
		cursor := versions.Cursor()
		var stale [][]byte
		for k, _ := cursor.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cursor.Next() {
			stale = append(stale, append([]byte{}, k...))
		}
		for _, k := range stale {
			if err := versions.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying BoltDB file.
func (s *DagSnapshotStore) Close() error {
	return s.db.Close()
}

func hasPrefix(data, prefix []byte) bool {
	if len(data) < len(prefix) {
		return false
	}
	for i := range prefix {
		if data[i] != prefix[i] {
			return false
		}
	}
	return true
}
