// Package davtest runs a real WebDAV server over a temporary directory for
// tests. It records every request it serves.
package davtest

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/torfstack/notedav/internal/config"
	"github.com/torfstack/notedav/internal/util"
	"golang.org/x/net/webdav"
)

const (
	Username = "alice"
	Password = "secret"
	Prefix   = "/remote.php/webdav"
)

type Request struct {
	Method string
	Path   string
	Header http.Header
}

type Server struct {
	*httptest.Server
	Root string

	requests *util.SyncSlice[Request]
	failing  map[string]int
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		Root:     t.TempDir(),
		requests: util.NewSyncSlice[Request](),
		failing:  make(map[string]int),
	}
	dav := &webdav.Handler{
		Prefix:     Prefix,
		FileSystem: webdav.Dir(s.Root),
		LockSystem: webdav.NewMemLS(),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != Username || pass != Password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.requests.Add(Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone()})
		if status, ok := s.failing[r.Method+" "+r.URL.Path]; ok {
			w.WriteHeader(status)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Config points a notedav config at the server.
func (s *Server) Config(localDir string) config.Config {
	return config.Config{
		WebDavURL:       s.URL + Prefix,
		Username:        Username,
		Password:        Password,
		LocalDir:        localDir,
		RequestTimeout:  5 * time.Second,
		TransferWorkers: 1,
	}
}

// FailWith makes the server answer method on the decoded request path with
// status instead of serving it. Must be called before requests are in
// flight.
func (s *Server) FailWith(method, path string, status int) {
	s.failing[method+" "+path] = status
}

func (s *Server) WriteFile(t testing.TB, rel, content string, mtime time.Time) {
	t.Helper()
	p := s.abs(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	require.NoError(t, os.Chtimes(p, mtime, mtime))
}

func (s *Server) Mkdir(t testing.TB, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(s.abs(rel), 0755))
}

func (s *Server) ReadFile(t testing.TB, rel string) string {
	t.Helper()
	b, err := os.ReadFile(s.abs(rel))
	require.NoError(t, err)
	return string(b)
}

func (s *Server) Exists(rel string) bool {
	_, err := os.Stat(s.abs(rel))
	return err == nil
}

func (s *Server) ModTime(t testing.TB, rel string) time.Time {
	t.Helper()
	info, err := os.Stat(s.abs(rel))
	require.NoError(t, err)
	return info.ModTime()
}

func (s *Server) Requests() []Request {
	return s.requests.Items()
}

// Count returns how many requests with method were served.
func (s *Server) Count(method string) int {
	n := 0
	for _, r := range s.requests.Items() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// Reset forgets the recorded requests.
func (s *Server) Reset() {
	s.requests = util.NewSyncSlice[Request]()
}

func (s *Server) abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(strings.Trim(rel, "/")))
}
