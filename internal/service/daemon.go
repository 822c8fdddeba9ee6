package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/local"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/sync"
)

// DefaultDebounce is how long the vault has to stay quiet after a change
// before the daemon runs a pass for it.
const DefaultDebounce = 2 * time.Second

const triggerOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

// RunDaemon synchronizes once, then again every sync interval and whenever
// local changes have settled, until ctx is done.
func (s *Service) RunDaemon(ctx context.Context) error {
	if err := s.engine.Local().EnsureDir(""); err != nil {
		return fmt.Errorf("run-daemon: %w", err)
	}
	w, err := local.NewWatcher(s.cfg.LocalDir)
	if err != nil {
		return fmt.Errorf("run-daemon: could not create watcher: %w", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- w.Run(ctx)
	}()

	s.runLogged(ctx, SourceStartup)

	ignore := sync.LoadIgnoreList(s.engine.Local())
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	var settled <-chan time.Time
	events := w.Events
	for {
		select {
		case <-ctx.Done():
			logging.Info("Daemon stopped")
			return nil

		case err = <-watchErr:
			if err != nil {
				return fmt.Errorf("run-daemon: error while running watcher: %w", err)
			}
			return nil

		case <-ticker.C:
			s.runLogged(ctx, SourceInterval)

		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Op&triggerOps == 0 {
				continue
			}
			if ignore.ShouldIgnore(event.Path, false) {
				continue
			}
			logging.Debugf("Received %s event: %s", event.Op, event.Path)
			settled = time.After(s.debounce)

		case <-settled:
			settled = nil
			s.runLogged(ctx, SourceWatch)
		}
	}
}

func (s *Service) interval() time.Duration {
	if s.cfg.SyncInterval <= 0 {
		return config.DefaultSyncInterval
	}
	return s.cfg.SyncInterval
}

func (s *Service) runLogged(ctx context.Context, source Source) {
	report, err := s.RunPass(ctx, source)
	switch {
	case IsBusy(err):
		logging.Infof("Skipping %s sync: %s", source, err)
	case ctx.Err() != nil:
	case err != nil:
		logging.Error("Sync pass failed", err)
	default:
		for _, res := range report.Failed() {
			logging.Warnf("Skipped %s", res)
		}
	}
}
