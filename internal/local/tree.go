package local

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/torfstack/notedav/internal/davpath"
	"github.com/torfstack/notedav/internal/logging"
)

var (
	ErrExists      = errors.New("entry already exists")
	ErrNotExist    = errors.New("entry does not exist")
	ErrOutsideRoot = errors.New("path escapes the vault root")
)

// TempPrefix marks in-flight writes. Names with this prefix are never
// synchronized.
const TempPrefix = ".notedav-"

// Entry describes one member of a local directory.
type Entry struct {
	Name       string
	IsDir      bool
	ModifiedAt int64 // unix millis
	Size       int64
}

// Tree gives access to the vault rooted at a local directory. Paths are
// vault-relative and use '/' on every platform.
type Tree struct {
	fs   afero.Fs
	root string
}

func NewTree(root string) *Tree {
	return NewTreeFs(afero.NewOsFs(), root)
}

func NewTreeFs(fsys afero.Fs, root string) *Tree {
	return &Tree{fs: fsys, root: filepath.Clean(root)}
}

func (t *Tree) Root() string {
	return t.root
}

// Abs resolves a vault-relative path to a filesystem path.
func (t *Tree) Abs(rel string) (string, error) {
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return "", fmt.Errorf("'%s': %w", rel, ErrOutsideRoot)
		}
	}
	return filepath.Join(t.root, filepath.FromSlash(davpath.Trim(rel))), nil
}

// List returns the members of the directory at rel, skipping in-flight
// temporary files.
func (t *Tree) List(rel string) ([]Entry, error) {
	dir, err := t.Abs(rel)
	if err != nil {
		return nil, err
	}
	infos, err := afero.ReadDir(t.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("could not read directory '%s': %w", dir, err)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if strings.HasPrefix(info.Name(), TempPrefix) {
			continue
		}
		entries = append(entries, toEntry(info))
	}
	return entries, nil
}

func (t *Tree) Stat(rel string) (Entry, error) {
	p, err := t.Abs(rel)
	if err != nil {
		return Entry{}, err
	}
	info, err := t.fs.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return Entry{}, fmt.Errorf("'%s': %w", rel, ErrNotExist)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("could not stat '%s': %w", p, err)
	}
	return toEntry(info), nil
}

func (t *Tree) Exists(rel string) bool {
	_, err := t.Stat(rel)
	return err == nil
}

// EnsureDir creates the directory at rel and its parents when absent.
func (t *Tree) EnsureDir(rel string) error {
	p, err := t.Abs(rel)
	if err != nil {
		return err
	}
	if err = t.fs.MkdirAll(p, 0755); err != nil {
		return fmt.Errorf("could not create directory '%s': %w", p, err)
	}
	return nil
}

func (t *Tree) Read(rel string) ([]byte, error) {
	p, err := t.Abs(rel)
	if err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(t.fs, p)
	if err != nil {
		return nil, fmt.Errorf("could not read file '%s': %w", p, err)
	}
	return b, nil
}

// ReadText returns the content of rel, or "" when it cannot be read.
func (t *Tree) ReadText(rel string) string {
	b, err := t.Read(rel)
	if err != nil {
		return ""
	}
	return string(b)
}

// Write replaces the content of rel atomically: readers see either the old
// or the new content, never a partial file. Parent directories are created.
func (t *Tree) Write(rel string, content []byte) error {
	p, err := t.Abs(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(p)
	if err = t.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory '%s': %w", dir, err)
	}

	tmp, err := afero.TempFile(t.fs, dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("could not create temporary file in '%s': %w", dir, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			if errRm := t.fs.Remove(tmpName); errRm != nil {
				logging.Debugf("Could not remove temporary file '%s': %s", tmpName, errRm)
			}
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write file '%s': %w", p, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("could not close file '%s': %w", p, err)
	}
	if err = t.fs.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("could not set permissions on '%s': %w", p, err)
	}
	if err = t.fs.Rename(tmpName, p); err != nil {
		return fmt.Errorf("could not replace file '%s': %w", p, err)
	}
	return nil
}

// SetModTime sets the modification time of rel to millis.
func (t *Tree) SetModTime(rel string, millis int64) error {
	p, err := t.Abs(rel)
	if err != nil {
		return err
	}
	mt := time.UnixMilli(millis)
	if err = t.fs.Chtimes(p, mt, mt); err != nil {
		return fmt.Errorf("could not set modification time of '%s': %w", p, err)
	}
	return nil
}

// Create writes a new file and fails with ErrExists if rel is taken.
func (t *Tree) Create(rel string, content []byte) error {
	if t.Exists(rel) {
		return fmt.Errorf("'%s': %w", rel, ErrExists)
	}
	return t.Write(rel, content)
}

// Mkdir creates a new directory and fails with ErrExists if rel is taken.
func (t *Tree) Mkdir(rel string) error {
	if t.Exists(rel) {
		return fmt.Errorf("'%s': %w", rel, ErrExists)
	}
	return t.EnsureDir(rel)
}

// RemoveAll deletes rel and, for directories, everything below it.
func (t *Tree) RemoveAll(rel string) error {
	if davpath.Trim(rel) == "" {
		return fmt.Errorf("refusing to delete the vault root: %w", ErrOutsideRoot)
	}
	if !t.Exists(rel) {
		return fmt.Errorf("'%s': %w", rel, ErrNotExist)
	}
	p, err := t.Abs(rel)
	if err != nil {
		return err
	}
	if err = t.fs.RemoveAll(p); err != nil {
		return fmt.Errorf("could not delete '%s': %w", p, err)
	}
	return nil
}

// Rename renames rel to newName within its parent directory.
func (t *Tree) Rename(rel, newName string) error {
	if newName == "" || strings.ContainsAny(newName, "/\\") {
		return fmt.Errorf("invalid name '%s'", newName)
	}
	if !t.Exists(rel) {
		return fmt.Errorf("'%s': %w", rel, ErrNotExist)
	}
	dst := davpath.Sibling(rel, newName)
	if t.Exists(dst) {
		return fmt.Errorf("'%s': %w", dst, ErrExists)
	}
	src, err := t.Abs(rel)
	if err != nil {
		return err
	}
	dstAbs, err := t.Abs(dst)
	if err != nil {
		return err
	}
	if err = t.fs.Rename(src, dstAbs); err != nil {
		return fmt.Errorf("could not rename '%s' to '%s': %w", src, dstAbs, err)
	}
	return nil
}

func toEntry(info os.FileInfo) Entry {
	return Entry{
		Name:       info.Name(),
		IsDir:      info.IsDir(),
		ModifiedAt: info.ModTime().UnixMilli(),
		Size:       info.Size(),
	}
}
