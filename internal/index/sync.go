package index

import (
	"log/slog"
	"time"

	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/metrics"
	"github.com/starford/mindmark/internal/storage"
)

// Syncer keeps the index in step with the vault.
type Syncer struct {
	db     *DB
	conv   *converter.Manager
	store  storage.Provider
	logger *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(db *DB, conv *converter.Manager, store storage.Provider, logger *slog.Logger) *Syncer {
	return &Syncer{db: db, conv: conv, store: store, logger: logger}
}

// Sync walks the vault and brings the index up to date:
//   - new/changed maps are parsed and upserted
//   - maps removed from disk are deleted from the index
func (s *Syncer) Sync() error {
	start := time.Now()
	defer metrics.ObserveSync(start)

	metas, err := s.store.List("")
	if err != nil {
		return err
	}
	checksums, err := s.db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if checksums[m.Path] == m.Checksum {
			continue
		}
		data, err := s.store.Read(m.Path)
		if err != nil {
			s.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := s.indexFile(m.Path, data, "sync"); err != nil {
			s.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			s.logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := s.deleteFile(p, "sync"); err != nil {
			s.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			s.logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}

	s.logger.Info("sync: done", slog.Int("maps", len(metas)), slog.Duration("took", time.Since(start)))
	return nil
}

// IndexFile indexes a map written by the application itself.
func (s *Syncer) IndexFile(path string, data []byte) error {
	return s.indexFile(path, data, "api")
}

// RemoveFile drops a map deleted by the application itself.
func (s *Syncer) RemoveFile(path string) error {
	return s.deleteFile(path, "api")
}

// indexFile builds the index entry for data and upserts it.
func (s *Syncer) indexFile(path string, data []byte, source string) error {
	e, err := BuildEntry(s.conv, path, data)
	if err != nil {
		return err
	}
	if err := s.db.UpsertMap(e); err != nil {
		return err
	}
	metrics.IndexOp("upsert", source)
	return nil
}

func (s *Syncer) deleteFile(path, source string) error {
	if err := s.db.DeleteMap(path); err != nil {
		return err
	}
	metrics.IndexOp("delete", source)
	return nil
}
