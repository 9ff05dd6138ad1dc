// Package archive bundles a sealed day's files into an immutable zip for
// long-term retention. Archival refuses to run until the day has a DayRoot
// artifact, so every archive is covered by an attested Merkle root.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kaizencycle/hive-ledger/pkg/audit"
	"github.com/kaizencycle/hive-ledger/pkg/daystore"
)

// PreconditionError reports an archive attempt for a day that has not been
// rooted yet.
type PreconditionError struct {
	Day string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("archive: day %s has no day root; seal the day first", e.Day)
}

// Archiver packages day directories into zip bundles.
type Archiver struct {
	store  *daystore.Store
	dir    string
	audit  audit.Logger
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing bundles into dir.
func NewArchiver(store *daystore.Store, dir string, auditLog audit.Logger) *Archiver {
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Archiver{
		store:  store,
		dir:    dir,
		audit:  auditLog,
		logger: slog.Default().With("component", "archive"),
	}
}

// ArchiveDay bundles every file under the day's storage path into
// <dir>/<day>.zip, preserving paths relative to the data root, and returns
// the bundle location.
func (a *Archiver) ArchiveDay(day string) (string, error) {
	root, err := a.store.ReadDayRoot(day)
	if err != nil {
		return "", err
	}
	if root == nil {
		return "", &PreconditionError{Day: day}
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: create %s: %w", a.dir, err)
	}
	zipPath := filepath.Join(a.dir, day+".zip")
	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", zipPath, err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	dayDir := a.store.DayDir(day)
	walkErr := filepath.WalkDir(dayDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.store.Root(), path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()
		_, err = io.Copy(w, src)
		return err
	})
	if walkErr != nil {
		_ = zw.Close()
		return "", fmt.Errorf("archive: bundle day %s: %w", day, walkErr)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("archive: finalize %s: %w", zipPath, err)
	}

	a.logger.Info("day archived", "day", day, "bundle", zipPath, "root", root.Root)
	_ = a.audit.Record(context.Background(), audit.EventMutation, "archive.day", zipPath, map[string]interface{}{
		"day":  day,
		"root": root.Root,
	})
	return zipPath, nil
}
