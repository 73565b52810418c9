package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mindmark/internal/storage"
)

// watcherTestEnv sets up a vault, its storage and a Syncer over a fresh DB.
func watcherTestEnv(t *testing.T) (string, *Syncer, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	return store.Root(), NewSyncer(db, testConv(), store, quietLogger()), db
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func indexed(db *DB, path string) func() bool {
	return func() bool {
		cs, _ := db.GetChecksum(path)
		return cs != ""
	}
}

func TestSync_IndexesAndRemovesStale(t *testing.T) {
	vaultDir, s, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "a.md"), []byte("# A\n- x"), 0o644)
	_ = os.WriteFile(filepath.Join(vaultDir, "b.md"), []byte("# B"), 0o644)
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if m, err := db.GetMap("a.md"); err != nil || m.Nodes != 2 {
		t.Fatalf("a.md = %+v, err %v", m, err)
	}

	_ = os.Remove(filepath.Join(vaultDir, "b.md"))
	if err := s.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if indexed(db, "b.md")() {
		t.Error("removed map still indexed")
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	vaultDir, s, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go s.Watch(ctx, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "new.md"), []byte("# New\n- idea"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, indexed(db, "new.md"), "new file not indexed by watcher")
	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:new.md" {
				return true
			}
		}
		return false
	}, "expected created:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir, s, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, indexed(db, "subdir/deep.md"),
		"file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	vaultDir, s, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "del.md"), []byte("# Delete Me"), 0o644)
	_ = s.Sync()
	if !indexed(db, "del.md")() {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vaultDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "del.md")()
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	vaultDir, s, db := watcherTestEnv(t)
	_ = os.WriteFile(filepath.Join(vaultDir, "old.md"), []byte("# Rename"), 0o644)
	_ = s.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !indexed(db, "old.md")() && indexed(db, "renamed.md")()
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
