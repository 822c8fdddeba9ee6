package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/davtest"
	"github.com/torfstack/notedav/internal/local"
	"github.com/torfstack/notedav/internal/webdav"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	srv    *davtest.Server
	engine *Engine
	vault  string
}

func newFixture(t *testing.T, configure ...func(*config.Config)) *fixture {
	t.Helper()
	srv := davtest.New(t)
	vault := t.TempDir()
	cfg := srv.Config(vault)
	for _, c := range configure {
		c(&cfg)
	}
	return &fixture{srv: srv, engine: New(cfg), vault: vault}
}

func (f *fixture) writeLocal(t *testing.T, rel, content string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(f.vault, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func (f *fixture) readLocal(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.vault, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

func (f *fixture) localModTime(t *testing.T, rel string) time.Time {
	t.Helper()
	info, err := os.Stat(filepath.Join(f.vault, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return info.ModTime()
}

func (f *fixture) sync(t *testing.T) *Report {
	t.Helper()
	report, err := f.engine.SyncAllReport(context.Background())
	require.NoError(t, err)
	return report
}

// transfers counts GET and PUT requests since the last reset.
func (f *fixture) transfers() int {
	return f.srv.Count(http.MethodGet) + f.srv.Count(http.MethodPut)
}

func TestSyncAll(t *testing.T) {
	tests := []struct {
		name      string
		configure func(*config.Config)
		do        func(*testing.T, *fixture)
	}{
		{
			name: "initial pull then only the changed file",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "Notes/a.md", "a1", t0)
				f.srv.WriteFile(t, "Notes/b.md", "b1", t0)

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, 2, report.Count(OpDownload))
				require.ElementsMatch(
					t,
					[]OpResult{{Path: "Notes/a.md", Op: OpDownload}, {Path: "Notes/b.md", Op: OpDownload}},
					report.Results(),
				)
				require.Equal(t, "a1", f.readLocal(t, "Notes/a.md"))
				require.Equal(t, "b1", f.readLocal(t, "Notes/b.md"))
				require.Equal(t, t0.UnixMilli(), f.localModTime(t, "Notes/a.md").UnixMilli())

				f.srv.WriteFile(t, "Notes/a.md", "a2", t0.Add(5*time.Second))
				f.srv.Reset()

				report = f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, 1, report.Count(OpPull))
				require.Equal(t, 1, f.srv.Count(http.MethodGet))
				require.Zero(t, f.srv.Count(http.MethodPut))
				require.Equal(t, "a2", f.readLocal(t, "Notes/a.md"))
				require.Equal(t, "b1", f.readLocal(t, "Notes/b.md"))
			},
		},
		{
			name: "second pass transfers nothing",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "Notes/a.md", "a", t0)
				f.writeLocal(t, "Local/new.md", "new", t0)
				f.writeLocal(t, "top.md", "top", t0)

				f.sync(t)
				f.srv.Reset()

				report := f.sync(t)
				require.True(t, report.OK())
				require.Zero(t, report.Transfers())
				require.Zero(t, f.transfers())
				require.Zero(t, f.srv.Count(webdav.MethodMkcol))
			},
		},
		{
			name: "new local folder and file are pushed",
			do: func(t *testing.T, f *fixture) {
				f.writeLocal(t, "Projects/Sub/plan.md", "plan", t0)
				f.writeLocal(t, "Projects/readme.md", "readme", t0)

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, 2, report.Count(OpCreateCollection))
				require.Equal(t, 2, report.Count(OpUpload))
				require.Equal(t, "plan", f.srv.ReadFile(t, "Projects/Sub/plan.md"))
				require.Equal(t, "readme", f.srv.ReadFile(t, "Projects/readme.md"))

				// the pushed file adopted the server's modification time
				require.Equal(
					t,
					f.srv.ModTime(t, "Projects/readme.md").Unix(),
					f.localModTime(t, "Projects/readme.md").Unix(),
				)
			},
		},
		{
			name: "newer local copy is pushed",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "a.md", "old", t0)
				f.writeLocal(t, "a.md", "new", t0.Add(10*time.Second))

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, 1, report.Count(OpPush))
				require.Equal(t, "new", f.srv.ReadFile(t, "a.md"))
			},
		},
		{
			name: "differences within tolerance are skipped",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "a.md", "remote", t0)
				f.writeLocal(t, "a.md", "local", t0.Add(2*time.Second))

				report := f.sync(t)
				require.True(t, report.OK())
				require.Zero(t, report.Transfers())
				require.Equal(t, "remote", f.srv.ReadFile(t, "a.md"))
				require.Equal(t, "local", f.readLocal(t, "a.md"))
			},
		},
		{
			name: "remote list failure skips the push pass of that folder",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "Notes/remote.md", "r", t0)
				f.writeLocal(t, "Notes/local.md", "l", t0)
				f.writeLocal(t, "other.md", "o", t0)
				f.srv.FailWith(webdav.MethodPropfind, davtest.Prefix+"/Notes/", http.StatusInternalServerError)

				report := f.sync(t)
				failed := report.Failed()
				require.Len(t, failed, 1)
				require.Equal(t, OpListRemote, failed[0].Op)
				require.Equal(t, "Notes", failed[0].Path)
				require.True(t, webdav.IsStatus(failed[0].Err, http.StatusInternalServerError))

				require.False(t, f.srv.Exists("Notes/local.md"))
				require.NoFileExists(t, filepath.Join(f.vault, "Notes", "remote.md"))
				require.Equal(t, "o", f.srv.ReadFile(t, "other.md"))
			},
		},
		{
			name: "failed download does not stop the pass",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "Notes/a.md", "a", t0)
				f.srv.WriteFile(t, "Notes/b.md", "b", t0)
				f.srv.FailWith(http.MethodGet, davtest.Prefix+"/Notes/a.md", http.StatusForbidden)

				report := f.sync(t)
				failed := report.Failed()
				require.Len(t, failed, 1)
				require.Equal(t, OpDownload, failed[0].Op)
				require.Equal(t, "Notes/a.md", failed[0].Path)
				require.Equal(t, "b", f.readLocal(t, "Notes/b.md"))
				require.NoFileExists(t, filepath.Join(f.vault, "Notes", "a.md"))
			},
		},
		{
			name: "file on one side and folder on the other is a conflict",
			do: func(t *testing.T, f *fixture) {
				f.srv.Mkdir(t, "thing")
				f.writeLocal(t, "thing", "file", t0)

				report := f.sync(t)
				failed := report.Failed()
				require.Len(t, failed, 1)
				require.Equal(t, OpConflict, failed[0].Op)
				require.ErrorIs(t, failed[0].Err, ErrTypeConflict)
				require.Equal(t, "file", f.readLocal(t, "thing"))
			},
		},
		{
			name: "ignored names are not synchronized",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, ".DS_Store", "junk", t0)
				f.srv.WriteFile(t, "keep.md", "keep", t0)
				f.writeLocal(t, "scratch.tmp", "tmp", t0)
				f.writeLocal(t, IgnoreFile, "private/\n", t0)
				f.writeLocal(t, "private/secret.md", "secret", t0)

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, 1, report.Transfers())
				require.NoFileExists(t, filepath.Join(f.vault, ".DS_Store"))
				require.False(t, f.srv.Exists("scratch.tmp"))
				require.False(t, f.srv.Exists(IgnoreFile))
				require.False(t, f.srv.Exists("private"))
			},
		},
		{
			name: "names with spaces and unicode",
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "My Notes/Über uns.md", "remote", t0)
				f.writeLocal(t, "My Notes/Neue Idee.md", "local", t0)

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, "remote", f.readLocal(t, "My Notes/Über uns.md"))
				require.Equal(t, "local", f.srv.ReadFile(t, "My Notes/Neue Idee.md"))
			},
		},
		{
			name:      "remote root",
			configure: func(c *config.Config) { c.RemoteRoot = "/Vaults/Main/" },
			do: func(t *testing.T, f *fixture) {
				f.srv.WriteFile(t, "Vaults/Main/a.md", "a", t0)
				f.srv.WriteFile(t, "outside.md", "x", t0)
				f.writeLocal(t, "b.md", "b", t0)

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, "a", f.readLocal(t, "a.md"))
				require.Equal(t, "b", f.srv.ReadFile(t, "Vaults/Main/b.md"))
				require.NoFileExists(t, filepath.Join(f.vault, "outside.md"))
			},
		},
		{
			name:      "several transfer workers",
			configure: func(c *config.Config) { c.TransferWorkers = 4 },
			do: func(t *testing.T, f *fixture) {
				for i := range 12 {
					f.srv.WriteFile(t, fmt.Sprintf("Notes/r%02d.md", i), fmt.Sprintf("r%d", i), t0)
					f.writeLocal(t, fmt.Sprintf("Notes/l%02d.md", i), fmt.Sprintf("l%d", i), t0)
				}

				report := f.sync(t)
				require.True(t, report.OK())
				require.Equal(t, 12, report.Count(OpDownload))
				require.Equal(t, 12, report.Count(OpUpload))
				for i := range 12 {
					require.Equal(t, fmt.Sprintf("r%d", i), f.readLocal(t, fmt.Sprintf("Notes/r%02d.md", i)))
					require.Equal(t, fmt.Sprintf("l%d", i), f.srv.ReadFile(t, fmt.Sprintf("Notes/l%02d.md", i)))
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var configure []func(*config.Config)
			if tt.configure != nil {
				configure = append(configure, tt.configure)
			}
			tt.do(t, newFixture(t, configure...))
		})
	}
}

func TestSyncAllNotConfigured(t *testing.T) {
	srv := davtest.New(t)
	cfg := srv.Config(t.TempDir())
	cfg.Password = ""

	e := New(cfg)
	require.False(t, e.SyncAll(context.Background()))
	_, err := e.SyncAllReport(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Empty(t, srv.Requests())
}

func TestSyncAllCancelled(t *testing.T) {
	f := newFixture(t)
	f.srv.WriteFile(t, "a.md", "a", t0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, f.engine.SyncAll(ctx))
	_, err := f.engine.SyncAllReport(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NoFileExists(t, filepath.Join(f.vault, "a.md"))
}

func TestSyncAllRecoversPanic(t *testing.T) {
	srv := davtest.New(t)
	cfg := srv.Config(t.TempDir())
	e := NewEngine(cfg, panickingStore{}, local.NewTree(cfg.LocalDir))

	require.False(t, e.SyncAll(context.Background()))
	report, err := e.SyncAllReport(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	require.False(t, report.FinishedAt.IsZero())
}

func TestSyncAllRecoversPanicOnTransferWorker(t *testing.T) {
	srv := davtest.New(t)
	cfg := srv.Config(t.TempDir())
	cfg.TransferWorkers = 4
	e := NewEngine(cfg, panickingDownloadStore{files: 8}, local.NewTree(cfg.LocalDir))

	require.False(t, e.SyncAll(context.Background()))

	report, err := e.SyncAllReport(context.Background())
	require.Error(t, err)
	require.NotNil(t, report)
	failed := report.Failed()
	require.Len(t, failed, 8)
	for _, res := range failed {
		require.Equal(t, OpDownload, res.Op)
	}
}

func TestSyncAllConfigCapturedByValue(t *testing.T) {
	srv := davtest.New(t)
	cfg := srv.Config(t.TempDir())
	e := New(cfg)
	cfg.Password = ""

	require.True(t, e.SyncAll(context.Background()))
}

type panickingStore struct {
	RemoteStore
}

func (panickingStore) List(context.Context, string) ([]webdav.Entry, error) {
	panic(errors.New("boom"))
}

// panickingDownloadStore lists files at the root and panics on every
// download.
type panickingDownloadStore struct {
	RemoteStore
	files int
}

func (s panickingDownloadStore) List(_ context.Context, path string) ([]webdav.Entry, error) {
	if path != "" {
		return nil, nil
	}
	entries := make([]webdav.Entry, 0, s.files)
	for i := range s.files {
		name := fmt.Sprintf("n%02d.md", i)
		entries = append(entries, webdav.Entry{Href: "/" + name, Name: name, ModifiedAt: t0.UnixMilli()})
	}
	return entries, nil
}

func (panickingDownloadStore) Download(context.Context, string) ([]byte, error) {
	panic(errors.New("boom"))
}
