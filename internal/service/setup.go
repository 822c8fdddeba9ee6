package service

import (
	"context"
	"fmt"

	"github.com/torfstack/notedav/internal/logging"
	"github.com/torfstack/notedav/internal/sync"
)

// SetupAndInitialSync prepares the vault directory, checks that the server
// accepts the configured credentials and runs a first pass.
func (s *Service) SetupAndInitialSync(ctx context.Context) (*sync.Report, error) {
	if !s.cfg.IsConfigured() {
		return nil, sync.ErrNotConfigured
	}

	tree := s.engine.Local()
	if err := tree.EnsureDir(""); err != nil {
		return nil, fmt.Errorf("could not create vault directory: %w", err)
	}
	entries, err := tree.List("")
	if err != nil {
		return nil, fmt.Errorf("could not read vault directory: %w", err)
	}
	if len(entries) > 0 {
		logging.Infof("Vault '%s' is not empty, its files will be merged with the server", tree.Root())
	}

	if _, err = s.client.List(ctx, ""); err != nil {
		return nil, fmt.Errorf("could not reach '%s': %w", s.client.BaseURL(), err)
	}
	logging.Infof("Connected to '%s'", s.client.BaseURL())

	report, err := s.RunPass(ctx, SourceSetup)
	if err != nil {
		return report, fmt.Errorf("could not perform initial sync: %w", err)
	}
	return report, nil
}
