// Package sync reconciles the local vault with the remote WebDAV
// collection.
//
// A pass walks both trees depth first. Names present on both sides are
// resolved once, by modification time, in the pull pass; names missing
// remotely are pushed afterwards. Per-entry failures are recorded in the
// pass Report and never abort the pass.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/davpath"
	"github.com/torfstack/notedav/internal/local"
	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/webdav"
)

var (
	ErrNotConfigured = errors.New("webdav url, username and password must be configured")
	ErrTypeConflict  = errors.New("entry is a file on one side and a folder on the other")
)

// RemoteStore is the protocol surface the engine needs. *webdav.Client
// implements it.
type RemoteStore interface {
	List(ctx context.Context, path string) ([]webdav.Entry, error)
	Stat(ctx context.Context, path string) (webdav.Entry, error)
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, content []byte) error
	CreateCollection(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	Rename(ctx context.Context, path, newName string) error
}

var _ RemoteStore = (*webdav.Client)(nil)

type Engine struct {
	cfg    config.Config
	remote RemoteStore
	local  *local.Tree
}

// New wires an engine to the WebDAV server and vault directory in cfg.
func New(cfg config.Config) *Engine {
	return NewEngine(cfg, webdav.NewClient(cfg), local.NewTree(cfg.LocalDir))
}

// NewEngine builds an engine from explicit collaborators. cfg is captured
// by value; later changes to the caller's copy are not observed.
func NewEngine(cfg config.Config, remote RemoteStore, tree *local.Tree) *Engine {
	return &Engine{cfg: cfg, remote: remote, local: tree}
}

func (e *Engine) Local() *local.Tree {
	return e.local
}

// SyncAll runs a full pass over the vault. It returns false when the
// engine is not configured or the pass could not complete; failures of
// individual entries do not make it return false.
func (e *Engine) SyncAll(ctx context.Context) bool {
	report, err := e.SyncAllReport(ctx)
	if err != nil {
		logging.Error("Sync failed", err)
		return false
	}
	if failed := report.Failed(); len(failed) > 0 {
		logging.Infof("Sync finished with %d skipped entries", len(failed))
	}
	return true
}

// SyncAllReport runs a full pass and returns its detailed report.
func (e *Engine) SyncAllReport(ctx context.Context) (report *Report, err error) {
	if !e.cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}

	logging.Debug("Starting sync pass")
	report = newReport()
	defer func() {
		report.FinishedAt = time.Now()
		if r := recover(); r != nil {
			err = fmt.Errorf("sync pass aborted: %v", r)
		}
	}()

	p := &pass{
		engine: e,
		report: report,
		ignore: LoadIgnoreList(e.local),
	}
	p.recursiveSync(ctx, "")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, fmt.Errorf("sync pass interrupted: %w", ctxErr)
	}
	logging.Infof(
		"Sync finished: %d transferred, %d failed, took %s",
		report.Transfers(), len(report.Failed()), time.Since(report.StartedAt).Round(time.Millisecond),
	)
	return report, nil
}

// pass holds the state of one SyncAll invocation.
type pass struct {
	engine *Engine
	report *Report
	ignore *IgnoreList
}

type transfer struct {
	op     Op
	path   string
	remote webdav.Entry
}

func (p *pass) recursiveSync(ctx context.Context, dir string) {
	if ctx.Err() != nil {
		return
	}
	logging.Debugf("Syncing path: '%s'", dir)
	e := p.engine

	remoteEntries, err := e.remote.List(ctx, dir)
	remoteListed := err == nil
	if err != nil {
		p.report.add(dir, OpListRemote, err)
		remoteEntries = nil
	}

	if err = e.local.EnsureDir(dir); err != nil {
		p.report.add(dir, OpEnsureDir, err)
	}

	localEntries, err := e.local.List(dir)
	if err != nil {
		p.report.add(dir, OpListLocal, err)
		localEntries = nil
	}

	localByName := make(map[string]local.Entry, len(localEntries))
	for _, l := range localEntries {
		localByName[l.Name] = l
	}
	remoteNames := make(map[string]struct{}, len(remoteEntries))

	var (
		folders []string
		pulls   []transfer
	)
	for _, r := range remoteEntries {
		rel := davpath.Join(dir, r.Name)
		if p.ignore.ShouldIgnore(rel, r.IsCollection) {
			continue
		}
		remoteNames[r.Name] = struct{}{}
		l, exists := localByName[r.Name]

		if exists && l.IsDir != r.IsCollection {
			p.report.add(rel, OpConflict, ErrTypeConflict)
			continue
		}
		if r.IsCollection {
			folders = append(folders, rel)
			continue
		}
		if !exists {
			pulls = append(pulls, transfer{OpDownload, rel, r})
			continue
		}
		switch Decide(l.ModifiedAt, r.ModifiedAt) {
		case DecisionPull:
			pulls = append(pulls, transfer{OpPull, rel, r})
		case DecisionPush:
			pulls = append(pulls, transfer{OpPush, rel, r})
		case DecisionSkip:
		}
	}

	p.runTransfers(ctx, pulls)
	for _, folder := range folders {
		p.recursiveSync(ctx, folder)
	}

	// Without a listing there is no telling which names are missing
	// remotely; pushing would overwrite whatever the server has.
	if !remoteListed {
		return
	}

	var pushes []transfer
	for _, l := range localEntries {
		if _, ok := remoteNames[l.Name]; ok {
			continue
		}
		rel := davpath.Join(dir, l.Name)
		if p.ignore.ShouldIgnore(rel, l.IsDir) {
			continue
		}
		if !l.IsDir {
			pushes = append(pushes, transfer{op: OpUpload, path: rel})
			continue
		}
		logging.Debugf("Pushing new folder: '%s'", rel)
		err = e.remote.CreateCollection(ctx, rel)
		p.report.add(rel, OpCreateCollection, err)
		if err != nil {
			continue
		}
		p.recursiveSync(ctx, rel)
	}
	p.runTransfers(ctx, pushes)
}

// runTransfers executes the file transfers of one directory, on a bounded
// pool when more than one worker is configured.
func (p *pass) runTransfers(ctx context.Context, jobs []transfer) {
	workers := min(p.engine.cfg.TransferWorkers, len(jobs))
	if workers <= 1 {
		for _, j := range jobs {
			p.report.add(j.path, j.op, p.transfer(ctx, j))
		}
		return
	}

	var (
		panicOnce gosync.Once
		panicked  any
	)
	// A panic on a worker is handed back to the calling goroutine, where
	// SyncAllReport recovers it. Workers keep draining the queue meanwhile.
	run := func(j transfer) {
		defer func() {
			if r := recover(); r != nil {
				panicOnce.Do(func() { panicked = r })
				p.report.add(j.path, j.op, fmt.Errorf("transfer aborted: %v", r))
			}
		}()
		p.report.add(j.path, j.op, p.transfer(ctx, j))
	}

	queue := make(chan transfer)
	var wg gosync.WaitGroup
	for range workers {
		wg.Go(
			func() {
				for j := range queue {
					run(j)
				}
			},
		)
	}
	for _, j := range jobs {
		queue <- j
	}
	close(queue)
	wg.Wait()

	if panicked != nil {
		panic(panicked)
	}
}

func (p *pass) transfer(ctx context.Context, j transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch j.op {
	case OpDownload, OpPull:
		logging.Debugf("Pulling '%s'", j.path)
		return p.engine.pull(ctx, j.path, j.remote.ModifiedAt)
	case OpPush, OpUpload:
		logging.Debugf("Pushing '%s'", j.path)
		return p.engine.push(ctx, j.path)
	}
	return fmt.Errorf("unknown transfer '%s'", j.op)
}

// pull replaces the local copy of path with the remote content and stamps
// it with the remote modification time.
func (e *Engine) pull(ctx context.Context, path string, remoteMillis int64) error {
	content, err := e.remote.Download(ctx, path)
	if err != nil {
		return fmt.Errorf("could not download: %w", err)
	}
	if err = e.local.Write(path, content); err != nil {
		return err
	}
	return e.local.SetModTime(path, remoteMillis)
}

// push uploads the local copy of path, then adopts the server's new
// modification time locally so the next pass sees both sides as equal.
func (e *Engine) push(ctx context.Context, path string) error {
	content, err := e.local.Read(path)
	if err != nil {
		return err
	}
	if err = e.remote.Upload(ctx, path, content); err != nil {
		return fmt.Errorf("could not upload: %w", err)
	}

	entry, err := e.remote.Stat(ctx, path)
	if err != nil || entry.ModifiedAt == 0 {
		logging.Debugf("Could not read back modification time of '%s': %v", path, err)
		return nil
	}
	if err = e.local.SetModTime(path, entry.ModifiedAt); err != nil {
		logging.Debugf("Could not adopt remote modification time for '%s': %s", path, err)
	}
	return nil
}
