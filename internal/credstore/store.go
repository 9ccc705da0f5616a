// Package credstore persists the bearer credential and the last known
// profile so a session survives process restarts.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/tenderdesk/internal/config"
	"github.com/felixgeelhaar/tenderdesk/internal/errors"
	"github.com/felixgeelhaar/tenderdesk/internal/session"
)

// Entry keys shared by every backend.
const (
	KeyCredential = "credential"
	KeyProfile    = "profile"
)

// Backend is a small key/value contract. Get returns (nil, nil) for a
// missing key. Delete removes all given keys in one step.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Store is the typed credential store used by the account service.
// A missing entry is reported as nil with no error.
type Store struct {
	backend Backend
}

// New wraps a backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open builds the backend selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case config.BackendFile, "":
		backend, err = NewFile(cfg.Path, cfg.Passphrase)
	case config.BackendSQLite:
		backend, err = NewSQLite(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		backend, err = NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
			Prefix:   cfg.KeyPrefix,
		})
	case config.BackendMemory:
		backend = NewMemory()
	default:
		return nil, errors.New(errors.ErrCodeStoreOpen, fmt.Sprintf("unknown credential store backend %q", cfg.Backend))
	}
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

// Backend returns the name of the underlying backend.
func (s *Store) Backend() string {
	return s.backend.Name()
}

// SaveCredential replaces the stored credential.
func (s *Store) SaveCredential(ctx context.Context, c session.Credential) error {
	return s.put(ctx, KeyCredential, c)
}

// LoadCredential returns the stored credential or nil.
func (s *Store) LoadCredential(ctx context.Context) (*session.Credential, error) {
	var c session.Credential
	ok, err := s.get(ctx, KeyCredential, &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// ClearCredential removes the stored credential.
func (s *Store) ClearCredential(ctx context.Context) error {
	return s.del(ctx, KeyCredential)
}

// SaveProfile replaces the cached profile snapshot.
func (s *Store) SaveProfile(ctx context.Context, p session.Profile) error {
	return s.put(ctx, KeyProfile, p)
}

// LoadProfile returns the cached profile or nil.
func (s *Store) LoadProfile(ctx context.Context) (*session.Profile, error) {
	var p session.Profile
	ok, err := s.get(ctx, KeyProfile, &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// ClearProfile removes the cached profile.
func (s *Store) ClearProfile(ctx context.Context) error {
	return s.del(ctx, KeyProfile)
}

// Clear removes credential and profile together.
func (s *Store) Clear(ctx context.Context) error {
	return s.del(ctx, KeyCredential, KeyProfile)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreWrite, s.backend.Name(), err)
	}
	if err := s.backend.Put(ctx, key, data); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreWrite, s.backend.Name(), err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.backend.Get(ctx, key)
	if err != nil {
		if _, coded := errors.As(err); coded {
			return false, err
		}
		return false, errors.NewStoreError(errors.ErrCodeStoreRead, s.backend.Name(), err)
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, errors.NewStoreError(errors.ErrCodeStoreRead, s.backend.Name(), fmt.Errorf("decode %s: %w", key, err))
	}
	return true, nil
}

func (s *Store) del(ctx context.Context, keys ...string) error {
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return errors.NewStoreError(errors.ErrCodeStoreWrite, s.backend.Name(), err)
	}
	return nil
}
