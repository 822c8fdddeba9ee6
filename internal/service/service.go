package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/db"
	"github.com/torfstack/notedav/internal/local"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/sync"
	"github.com/torfstack/notedav/internal/util"
	"github.com/torfstack/notedav/internal/webdav"
)

const (
	lockFileName = "sync.lock"

	// HistoryLimit is how many passes the history keeps.
	HistoryLimit = 500
)

var (
	ErrPassRunning = errors.New("a sync pass is already running")
	ErrLocked      = errors.New("another notedav process is synchronizing")
)

// Service serializes everything that touches the vault: full passes, the
// entry mutations and the daemon loop. Passes are coalesced, a pass
// requested while another runs is skipped. A file lock extends this across
// processes.
type Service struct {
	cfg    config.Config
	client *webdav.Client
	engine *sync.Engine
	db     *db.Database

	mu       gosync.Mutex
	lock     *flock.Flock
	debounce time.Duration
}

// Paths locates the files a Service keeps next to the config.
type Paths struct {
	Database string
	Lock     string
}

func DefaultPaths() Paths {
	return Paths{
		Database: db.DefaultPath(),
		Lock:     filepath.Join(util.ConfigDir, lockFileName),
	}
}

func NewService(ctx context.Context, cfg config.Config) (*Service, error) {
	return NewServiceAt(ctx, cfg, DefaultPaths())
}

func NewServiceAt(ctx context.Context, cfg config.Config, paths Paths) (*Service, error) {
	d, err := db.New(ctx, paths.Database)
	if err != nil {
		return nil, fmt.Errorf("could not open history database: %w", err)
	}
	if err = util.EnsureDir(filepath.Dir(paths.Lock)); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("could not create lock directory: %w", err)
	}

	client := webdav.NewClient(cfg)
	return &Service{
		cfg:      cfg,
		client:   client,
		engine:   sync.NewEngine(cfg, client, local.NewTree(cfg.LocalDir)),
		db:       d,
		lock:     flock.New(paths.Lock),
		debounce: DefaultDebounce,
	}, nil
}

func (s *Service) Config() config.Config {
	return s.cfg
}

func (s *Service) Close() error {
	return s.db.Close()
}

// exclusive runs fn while holding both the in-process and the
// cross-process lock, waiting for either as needed.
func (s *Service) exclusive(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("could not acquire sync lock: %w", err)
	}
	if !locked {
		return ErrLocked
	}
	defer s.unlock()

	return fn()
}

func (s *Service) unlock() {
	if err := s.lock.Unlock(); err != nil {
		logging.Errorf("Could not release sync lock '%s': %s", s.lock.Path(), err)
	}
}
