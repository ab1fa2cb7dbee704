package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/swarmguard/agentmind/internal/dagmodel"
)

func TestDagSnapshotStoreSaveLoadRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dag.db")
	s, err := NewDagSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("NewDagSnapshotStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	dag := dagmodel.NewIdeaDag("research the thing")
	if _, err := dag.AddChild(dag.RootID, "child", dagmodel.Details{dagmodel.DetailAction: dagmodel.ActionThink}); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if err := s.Save(ctx, "c1", dag); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, found, err := s.Load(ctx, "c1")
	if err != nil || !found {
		t.Fatalf("Load: found=%v err=%v", found, err)
	}
	if loaded.RootID != dag.RootID {
		t.Fatalf("loaded root id = %s, want %s", loaded.RootID, dag.RootID)
	}
	if len(loaded.Nodes()) != len(dag.Nodes()) {
		t.Fatalf("loaded %d nodes, want %d", len(loaded.Nodes()), len(dag.Nodes()))
	}
}

func TestDagSnapshotStoreArchivesPreviousVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dag.db")
	s, err := NewDagSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("NewDagSnapshotStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	dag := dagmodel.NewIdeaDag("mandate")
	if err := s.Save(ctx, "c1", dag); err != nil {
		t.Fatalf("first save: %v", err)
	}

	dag.UpdateStatus(dag.RootID, dagmodel.StatusActive)
	if err := s.Save(ctx, "c1", dag); err != nil {
		t.Fatalf("second save: %v", err)
	}

	versions, err := s.Versions(ctx, "c1", 10)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 1 {
		t.Fatalf("expected exactly 1 archived version after 2 saves, got %d", len(versions))
	}
}

func TestDagSnapshotStoreDeleteRemovesSnapshot(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dag.db")
	s, err := NewDagSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("NewDagSnapshotStore: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	dag := dagmodel.NewIdeaDag("mandate done")
	if err := s.Save(ctx, "c1", dag); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, found, err := s.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("Load after delete: %v", err)
	}
	if found {
		t.Fatal("expected found=false after Delete")
	}
}

func TestDagSnapshotStoreDeleteMissingIsNotAnError(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dag.db")
	s, err := NewDagSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("NewDagSnapshotStore: %v", err)
	}
	defer s.Close()

	if err := s.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatalf("Delete on missing key should be a no-op, got: %v", err)
	}
}

func TestDagSnapshotStoreLoadMissingReturnsNotFound(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dag.db")
	s, err := NewDagSnapshotStore(dbPath)
	if err != nil {
		t.Fatalf("NewDagSnapshotStore: %v", err)
	}
	defer s.Close()

	_, found, err := s.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found {
		t.Fatal("expected found=false for an unknown correlation id")
	}
}
