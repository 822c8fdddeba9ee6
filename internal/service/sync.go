package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/torfstack/notedav/internal/db"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/sync"
	"github.com/torfstack/notedav/internal/webdav"
)

// Source names what started a pass.
type Source string

const (
	SourceManual   Source = "manual"
	SourceSetup    Source = "setup"
	SourceStartup  Source = "startup"
	SourceInterval Source = "interval"
	SourceWatch    Source = "watch"
)

// RunPass runs one full sync pass and records it in the history. It
// returns ErrPassRunning without doing anything if a pass is in progress
// in this process and ErrLocked if one is in progress in another.
func (s *Service) RunPass(ctx context.Context, source Source) (*sync.Report, error) {
	if !s.mu.TryLock() {
		return nil, ErrPassRunning
	}
	defer s.mu.Unlock()

	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("could not acquire sync lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	defer s.unlock()

	logging.Debugf("Starting %s sync pass", source)
	report, err := s.engine.SyncAllReport(ctx)
	if report != nil {
		s.record(ctx, source, report, err)
	}
	return report, err
}

func (s *Service) record(ctx context.Context, source Source, report *sync.Report, passErr error) {
	failed := report.Failed()
	pass := db.Pass{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Source:     string(source),
		OK:         passErr == nil && len(failed) == 0,
		Pulled:     int64(report.Count(sync.OpDownload) + report.Count(sync.OpPull)),
		Pushed:     int64(report.Count(sync.OpPush) + report.Count(sync.OpUpload)),
		Created:    int64(report.Count(sync.OpCreateCollection)),
		Failed:     int64(len(failed)),
	}
	switch {
	case passErr != nil:
		pass.Error = passErr.Error()
	case len(failed) > 0:
		pass.Error = failed[0].String()
	}

	// the pass may have been cancelled, the history entry is still wanted
	ctx = context.WithoutCancel(ctx)
	q := s.db.Queries()
	if _, err := q.InsertPass(ctx, pass); err != nil {
		logging.Error("Could not record sync pass", err)
		return
	}
	if _, err := q.PruneHistory(ctx, HistoryLimit); err != nil {
		logging.Debugf("Could not prune sync history: %s", err)
	}
}

// History returns up to limit recorded passes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]db.Pass, error) {
	return s.db.Queries().LastPasses(ctx, limit)
}

// ListFiles lists the remote collection at path, folders first.
func (s *Service) ListFiles(ctx context.Context, path string) ([]webdav.Entry, error) {
	if !s.cfg.IsConfigured() {
		return nil, sync.ErrNotConfigured
	}
	entries, err := s.client.List(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("could not list '%s': %w", path, err)
	}
	slices.SortFunc(entries, func(a, b webdav.Entry) int {
		if a.IsCollection != b.IsCollection {
			if a.IsCollection {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return entries, nil
}

// IsBusy reports whether err means a pass was skipped because another one
// holds the vault.
func IsBusy(err error) bool {
	return errors.Is(err, ErrPassRunning) || errors.Is(err, ErrLocked)
}
