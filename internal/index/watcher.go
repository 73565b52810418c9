package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mindmark/internal/checksum"
	"github.com/starford/mindmark/internal/models"
)

// Change kinds reported to an EventCallback.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch runs an fsnotify watcher on the vault root until ctx is cancelled,
// re-indexing maps as they change and calling cb (if non-nil) after each
// successful index mutation.
//
// Directories created at runtime are added to the watch list. fsnotify
// reports a rename on the old path only, so renames delete the old entry and
// schedule a reconciliation pass that picks up the new one.
func (s *Syncer) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := s.store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	s.logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	var (
		reconcileTimer *time.Timer
		reconcileCh    <-chan time.Time
	)
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
			return
		}
		reconcileTimer.Reset(reconcileDelay)
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			s.reconcile(notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, abs); addErr != nil {
						s.logger.Warn("watcher: add new dir failed", slog.String("path", abs), slog.String("error", addErr.Error()))
					}
					s.indexNewDir(abs, notify)
					continue
				}
			}

			if !strings.HasSuffix(abs, models.MapExt) {
				continue
			}
			rel, relErr := filepath.Rel(root, abs)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := s.store.Read(rel)
				if readErr != nil {
					s.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				if cs, _ := s.db.GetChecksum(rel); cs != "" && cs == checksum.Sum(data) {
					// written through the API and already indexed
					continue
				}
				if idxErr := s.indexFile(rel, data, "watcher"); idxErr != nil {
					s.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := ChangeUpdated
				if ev.Op&fsnotify.Create != 0 {
					kind = ChangeCreated
				}
				s.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(kind, rel)

			case ev.Op&fsnotify.Remove != 0:
				if cs, _ := s.db.GetChecksum(rel); cs == "" {
					// removed through the API and already dropped
					continue
				}
				if delErr := s.deleteFile(rel, "watcher"); delErr != nil {
					s.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				notify(ChangeDeleted, rel)

			case ev.Op&fsnotify.Rename != 0:
				if cs, _ := s.db.GetChecksum(rel); cs != "" {
					if delErr := s.deleteFile(rel, "watcher"); delErr != nil {
						s.logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					} else {
						notify(ChangeDeleted, rel)
					}
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile removes index entries without a file on disk and indexes files
// that are missing or stale in the index.
func (s *Syncer) reconcile(notify EventCallback) {
	checksums, err := s.db.AllChecksums()
	if err != nil {
		s.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := s.store.List("")
	if err != nil {
		s.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if s.deleteFile(p, "watcher") == nil {
				notify(ChangeDeleted, p)
			}
		}
	}
	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, readErr := s.store.Read(p)
		if readErr != nil {
			continue
		}
		if s.indexFile(p, data, "watcher") == nil {
			notify(ChangeCreated, p)
		}
	}
}

// indexNewDir indexes any map files already present in a new directory.
func (s *Syncer) indexNewDir(dir string, notify EventCallback) {
	root := s.store.Root()
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, models.MapExt) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, readErr := s.store.Read(rel)
		if readErr != nil {
			return nil
		}
		if s.indexFile(rel, data, "watcher") == nil {
			notify(ChangeCreated, rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to w.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
