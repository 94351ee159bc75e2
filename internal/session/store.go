// Package session restores, creates and persists the authenticated browsing
// session.
package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/layout-scout/internal/browser"
	"github.com/xkilldash9x/layout-scout/internal/store"
)

// Store persists session cookies to a single JSON file.
type Store struct {
	path   string
	files  *store.FileStore
	logger *zap.Logger
}

// NewStore creates a cookie store backed by path.
func NewStore(path string, files *store.FileStore, logger *zap.Logger) *Store {
	return &Store{
		path:   path,
		files:  files,
		logger: logger.Named("session_store"),
	}
}

// Load reads saved cookies. A missing or malformed file is not an error: it
// is logged and reported as absent so the caller falls back to a manual
// login.
func (s *Store) Load(ctx context.Context) ([]browser.Cookie, bool) {
	var cookies []browser.Cookie
	if err := s.files.ReadJSON(s.path, &cookies); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("No saved cookies found.", zap.String("path", s.path))
		} else {
			s.logger.Warn("Could not load saved cookies.", zap.String("path", s.path), zap.Error(err))
		}
		return nil, false
	}
	s.logger.Info("Cookies loaded.", zap.String("path", s.path), zap.Int("count", len(cookies)))
	return cookies, true
}

// Save writes cookies exactly as given. Write failures are returned.
func (s *Store) Save(ctx context.Context, cookies []browser.Cookie) error {
	if cookies == nil {
		cookies = []browser.Cookie{}
	}
	if err := s.files.WriteJSON(s.path, cookies); err != nil {
		return err
	}
	s.logger.Info("Cookies saved.", zap.String("path", s.path), zap.Int("count", len(cookies)))
	return nil
}
