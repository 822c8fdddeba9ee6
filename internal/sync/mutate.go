package sync

import (
	"context"
	"fmt"

	"github.com/torfstack/notedav/internal/logging"
)

// SyncUp uploads content to path unconditionally. Local state, timestamps
// included, is left alone; the next pass reconciles against the server's
// new modification time.
func (e *Engine) SyncUp(ctx context.Context, path string, content []byte) error {
	if !e.cfg.IsConfigured() {
		return ErrNotConfigured
	}
	logging.Debugf("Force pushing '%s'", path)
	if err := e.remote.Upload(ctx, path, content); err != nil {
		return fmt.Errorf("could not push '%s': %w", path, err)
	}
	return nil
}

// SaveLocal replaces the local content of path without touching the
// server. The next pass pushes it.
func (e *Engine) SaveLocal(path string, content []byte) error {
	return e.local.Write(path, content)
}

// CreateFile creates path locally, then on the server. It fails without
// remote traffic when path already exists locally.
func (e *Engine) CreateFile(ctx context.Context, path string, content []byte) error {
	if !e.cfg.IsConfigured() {
		return ErrNotConfigured
	}
	if err := e.local.Create(path, content); err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	if err := e.remote.Upload(ctx, path, content); err != nil {
		return fmt.Errorf("could not create remote file '%s': %w", path, err)
	}
	return nil
}

// CreateFolder creates path locally, then as a collection on the server.
func (e *Engine) CreateFolder(ctx context.Context, path string) error {
	if !e.cfg.IsConfigured() {
		return ErrNotConfigured
	}
	if err := e.local.Mkdir(path); err != nil {
		return fmt.Errorf("could not create folder: %w", err)
	}
	if err := e.remote.CreateCollection(ctx, path); err != nil {
		return fmt.Errorf("could not create remote folder '%s': %w", path, err)
	}
	return nil
}

// DeleteEntry removes path locally, recursively for folders, then issues a
// single remote DELETE.
func (e *Engine) DeleteEntry(ctx context.Context, path string) error {
	if !e.cfg.IsConfigured() {
		return ErrNotConfigured
	}
	if err := e.local.RemoveAll(path); err != nil {
		return fmt.Errorf("could not delete: %w", err)
	}
	if err := e.remote.Delete(ctx, path); err != nil {
		return fmt.Errorf("could not delete remote entry '%s': %w", path, err)
	}
	return nil
}

// RenameEntry renames path to newName within its folder, locally and then
// on the server. A failed remote rename leaves the local rename in place.
func (e *Engine) RenameEntry(ctx context.Context, path, newName string) error {
	if !e.cfg.IsConfigured() {
		return ErrNotConfigured
	}
	if err := e.local.Rename(path, newName); err != nil {
		return fmt.Errorf("could not rename: %w", err)
	}
	if err := e.remote.Rename(ctx, path, newName); err != nil {
		return fmt.Errorf("could not rename remote entry '%s': %w", path, err)
	}
	return nil
}
