package service

import (
	"context"
	"fmt"
)

// Push uploads the local content of path unconditionally.
func (s *Service) Push(ctx context.Context, path string) error {
	return s.exclusive(ctx, func() error {
		content, err := s.engine.Local().Read(path)
		if err != nil {
			return fmt.Errorf("could not read '%s': %w", path, err)
		}
		return s.engine.SyncUp(ctx, path, content)
	})
}

// Save replaces the local content of path. The next pass pushes it.
func (s *Service) Save(ctx context.Context, path string, content []byte) error {
	return s.exclusive(ctx, func() error {
		return s.engine.SaveLocal(path, content)
	})
}

func (s *Service) CreateFile(ctx context.Context, path string, content []byte) error {
	return s.exclusive(ctx, func() error {
		return s.engine.CreateFile(ctx, path, content)
	})
}

func (s *Service) CreateFolder(ctx context.Context, path string) error {
	return s.exclusive(ctx, func() error {
		return s.engine.CreateFolder(ctx, path)
	})
}

func (s *Service) Delete(ctx context.Context, path string) error {
	return s.exclusive(ctx, func() error {
		return s.engine.DeleteEntry(ctx, path)
	})
}

func (s *Service) Rename(ctx context.Context, path, newName string) error {
	return s.exclusive(ctx, func() error {
		return s.engine.RenameEntry(ctx, path, newName)
	})
}
