// Package identity produces the anonymous visitor identifier and keeps it in
// client storage for the lifetime of the profile.
package identity

import (
	"io"
	"log/slog"
	"time"

	"github.com/EHam1/very-professional-blog/internal/clientstore"
	"github.com/EHam1/very-professional-blog/pkg/types"
	"github.com/google/uuid"
)

// Store hands out the visitor's VisitorID.
type Store struct {
	kv     clientstore.Store
	newID  func() (uuid.UUID, error)
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGenerator replaces the UUID source.
func WithGenerator(gen func() (uuid.UUID, error)) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

// New creates an identity store over kv. A nil kv models a context without
// client storage: VisitorID then always returns the empty id.
func New(kv clientstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		newID:  uuid.NewRandom,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VisitorID returns the persisted id, creating and persisting a fresh random
// UUID on first use. It never fails: storage problems are logged and yield
// either the empty id (unreadable storage) or an id valid for this session
// only (unwritable storage).
func (s *Store) VisitorID() types.VisitorID {
	if s == nil || s.kv == nil {
		return ""
	}

	if v, ok, err := s.kv.Get(types.VisitorIDKey); err != nil {
		s.logger.Warn("visitor id unreadable", slog.String("error", err.Error()))
		return ""
	} else if ok && v != "" {
		return types.VisitorID(v)
	}

	id, err := s.newID()
	if err != nil {
		s.logger.Warn("visitor id generation failed", slog.String("error", err.Error()))
		return ""
	}

	if err := s.kv.Set(types.VisitorIDKey, id.String(), time.Time{}); err != nil {
		s.logger.Warn("visitor id not persisted", slog.String("error", err.Error()))
	}
	return types.VisitorID(id.String())
}
