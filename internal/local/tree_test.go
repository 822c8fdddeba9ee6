package local

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestTree(t *testing.T) {
	tests := []struct {
		name string
		do   func(*testing.T, *Tree)
	}{
		{
			name: "write creates parents and list sees the file",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Write("Notes/Sub/a.md", []byte("a")))

				entries, err := tree.List("Notes")
				require.NoError(t, err)
				require.Len(t, entries, 1)
				require.Equal(t, "Sub", entries[0].Name)
				require.True(t, entries[0].IsDir)

				b, err := tree.Read("Notes/Sub/a.md")
				require.NoError(t, err)
				require.Equal(t, "a", string(b))
			},
		},
		{
			name: "write replaces content and leaves no temporary files",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Write("a.md", []byte("first")))
				require.NoError(t, tree.Write("a.md", []byte("second")))
				require.Equal(t, "second", tree.ReadText("a.md"))

				infos, err := afero.ReadDir(tree.fs, tree.Root())
				require.NoError(t, err)
				require.Len(t, infos, 1)
			},
		},
		{
			name: "list hides in-flight temporary files",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, afero.WriteFile(tree.fs, filepath.Join(tree.Root(), TempPrefix+"123"), []byte("x"), 0644))
				require.NoError(t, tree.Write("b.md", nil))

				entries, err := tree.List("")
				require.NoError(t, err)
				require.Equal(t, []string{"b.md"}, names(entries))
			},
		},
		{
			name: "list of missing directory fails",
			do: func(t *testing.T, tree *Tree) {
				_, err := tree.List("nope")
				require.Error(t, err)
			},
		},
		{
			name: "set modification time",
			do: func(t *testing.T, tree *Tree) {
				mt := time.Date(2023, 8, 21, 10, 0, 0, 0, time.UTC)
				require.NoError(t, tree.Write("a.md", []byte("a")))
				require.NoError(t, tree.SetModTime("a.md", mt.UnixMilli()))

				e, err := tree.Stat("a.md")
				require.NoError(t, err)
				require.Equal(t, mt.UnixMilli(), e.ModifiedAt)
			},
		},
		{
			name: "create refuses existing entries",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Create("a.md", []byte("a")))
				require.ErrorIs(t, tree.Create("a.md", []byte("b")), ErrExists)
				require.Equal(t, "a", tree.ReadText("a.md"))
			},
		},
		{
			name: "mkdir refuses existing entries",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Mkdir("Notes"))
				require.ErrorIs(t, tree.Mkdir("Notes"), ErrExists)
			},
		},
		{
			name: "remove all deletes recursively",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Write("Notes/Sub/a.md", []byte("a")))
				require.NoError(t, tree.RemoveAll("Notes"))
				require.False(t, tree.Exists("Notes"))
				require.ErrorIs(t, tree.RemoveAll("Notes"), ErrNotExist)
			},
		},
		{
			name: "remove all refuses the root",
			do: func(t *testing.T, tree *Tree) {
				require.ErrorIs(t, tree.RemoveAll(""), ErrOutsideRoot)
			},
		},
		{
			name: "rename within parent",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Write("Notes/a.md", []byte("a")))
				require.NoError(t, tree.Rename("Notes/a.md", "b.md"))
				require.False(t, tree.Exists("Notes/a.md"))
				require.Equal(t, "a", tree.ReadText("Notes/b.md"))
			},
		},
		{
			name: "rename preconditions",
			do: func(t *testing.T, tree *Tree) {
				require.NoError(t, tree.Write("a.md", []byte("a")))
				require.NoError(t, tree.Write("b.md", []byte("b")))
				require.ErrorIs(t, tree.Rename("missing.md", "c.md"), ErrNotExist)
				require.ErrorIs(t, tree.Rename("a.md", "b.md"), ErrExists)
				require.Error(t, tree.Rename("a.md", "x/y.md"))
			},
		},
		{
			name: "paths may not escape the root",
			do: func(t *testing.T, tree *Tree) {
				_, err := tree.Read("../etc/passwd")
				require.ErrorIs(t, err, ErrOutsideRoot)
			},
		},
		{
			name: "read text of missing file is empty",
			do: func(t *testing.T, tree *Tree) {
				require.Equal(t, "", tree.ReadText("missing.md"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			require.NoError(t, fsys.MkdirAll("/vault", 0755))
			tt.do(t, NewTreeFs(fsys, "/vault"))
		})
	}
}

func TestTreeOnDisk(t *testing.T) {
	root := t.TempDir()
	tree := NewTree(root)

	require.NoError(t, tree.Write("Notes/a b.md", []byte("content")))
	b, err := os.ReadFile(filepath.Join(root, "Notes", "a b.md"))
	require.NoError(t, err)
	require.Equal(t, "content", string(b))

	info, err := os.Stat(filepath.Join(root, "Notes", "a b.md"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}
