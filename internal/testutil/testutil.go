// Package testutil provides shared test helpers for setting up vaults,
// index databases and converters.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/index"
	"github.com/starford/mindmark/internal/storage"
)

// TestDB opens an index database in a temp dir that is closed on cleanup.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	db, err := index.Open(filepath.Join(t.TempDir(), "mindmark-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestConverter returns a converter manager with the default config.
func TestConverter(t *testing.T) *converter.Manager {
	t.Helper()
	return converter.NewManager(converter.DefaultConfig(), Logger())
}
