package sync

import (
	"fmt"
	"time"

	"github.com/torfstack/notedav/internal/util"
)

// Op names a single step of a sync pass.
type Op string

const (
	OpListRemote       Op = "list-remote"
	OpListLocal        Op = "list-local"
	OpEnsureDir        Op = "ensure-dir"
	OpDownload         Op = "download"
	OpPull             Op = "pull"
	OpPush             Op = "push"
	OpUpload           Op = "upload"
	OpCreateCollection Op = "create-collection"
	OpConflict         Op = "type-conflict"
)

// OpResult is the outcome of one step. Err is nil on success.
type OpResult struct {
	Path string
	Op   Op
	Err  error
}

func (r OpResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s '%s': %s", r.Op, r.Path, r.Err)
	}
	return fmt.Sprintf("%s '%s'", r.Op, r.Path)
}

// Report collects every step of a pass, so per-entry failures that did not
// abort the pass stay visible to the caller.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time

	results *util.SyncSlice[OpResult]
}

func newReport() *Report {
	return &Report{
		StartedAt: time.Now(),
		results:   util.NewSyncSlice[OpResult](),
	}
}

func (r *Report) add(path string, op Op, err error) {
	r.results.Add(OpResult{Path: path, Op: op, Err: err})
}

func (r *Report) Results() []OpResult {
	return r.results.Items()
}

// Failed returns the steps that did not succeed.
func (r *Report) Failed() []OpResult {
	var failed []OpResult
	for _, res := range r.results.Items() {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool {
	return len(r.Failed()) == 0
}

// Count returns how many steps of kind op succeeded.
func (r *Report) Count(op Op) int {
	n := 0
	for _, res := range r.results.Items() {
		if res.Op == op && res.Err == nil {
			n++
		}
	}
	return n
}

// Transfers returns the number of files moved in either direction.
func (r *Report) Transfers() int {
	return r.Count(OpDownload) + r.Count(OpPull) + r.Count(OpPush) + r.Count(OpUpload)
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
