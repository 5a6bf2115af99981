// Package storage implements the namespaced, envelope-wrapped key/value store
// that every collection manager persists through.
//
// The store has no cache and no compare-and-swap: each manager reads fresh on
// every operation. Two processes sharing one backend can lose an update when
// their read-modify-write cycles interleave. That is an accepted limitation.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/pkg/logging"
	"github.com/smukkama/weather-dashboard/pkg/metrics"
)

// ErrWriteFailed is wrapped by every error returned from a mutating Store call.
// The stored value is unchanged when it is returned.
var ErrWriteFailed = errors.New("storage write failed")

// DefaultNamespace prefixes every physical key unless overridden.
const DefaultNamespace = "weather"

// Store reads and writes envelopes under a single namespace.
type Store struct {
	backend    Backend
	namespace  string
	now        func() time.Time
	logger     *zap.Logger
	metrics    *metrics.Collector
	migrations map[string]Migration
}

// Option configures a Store.
type Option func(*Store)

// WithNamespace sets the key prefix owned by this store.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// WithClock overrides the time source used for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = logging.OrNop(l) }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Store) { s.metrics = c }
}

// WithMigration registers an upgrade for envelopes stored at version.
func WithMigration(version string, m Migration) Option {
	return func(s *Store) { s.migrations[version] = m }
}

// New creates a Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:    backend,
		namespace:  DefaultNamespace,
		now:        time.Now,
		logger:     zap.NewNop(),
		migrations: make(map[string]Migration),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Namespace returns the prefix owned by this store.
func (s *Store) Namespace() string {
	return s.namespace
}

// Now returns the store's clock reading. Managers stamp entities with it so
// one injected clock drives a whole test.
func (s *Store) Now() time.Time {
	return s.now()
}

func (s *Store) physical(key string) string {
	return s.namespace + ":" + key
}

// Set wraps value in an envelope and writes it.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	start := time.Now()
	err := s.set(ctx, key, value)
	s.metrics.RecordStorageOp("set", err, time.Since(start))
	if err != nil {
		s.logger.Error("Failed to save value", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (s *Store) set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal %s: %w", ErrWriteFailed, key, err)
	}

	raw, err := json.Marshal(Envelope{
		Data:      data,
		Timestamp: s.now().UnixMilli(),
		Version:   CurrentVersion,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal envelope for %s: %w", ErrWriteFailed, key, err)
	}

	if err := s.backend.Write(ctx, s.physical(key), raw); err != nil {
		return fmt.Errorf("%w: failed to write %s: %w", ErrWriteFailed, key, err)
	}
	return nil
}

// Get decodes the value stored at key into dst, which must be a non-nil
// pointer. It reports false, leaving dst untouched, when the key is absent or
// the stored value cannot be understood. Read errors are never returned.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	start := time.Now()
	ok := s.get(ctx, key, dst)
	s.metrics.RecordStorageOp("get", nil, time.Since(start))
	return ok
}

func (s *Store) get(ctx context.Context, key string, dst any) bool {
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		s.logger.Error("Get called with non-pointer destination", zap.String("key", key))
		return false
	}

	raw, err := s.backend.Read(ctx, s.physical(key))
	if err != nil {
		if !errors.Is(err, ErrNotExist) {
			s.logger.Warn("Failed to read value", zap.String("key", key), zap.Error(err))
		}
		return false
	}

	data, ok := s.decode(key, raw)
	if !ok {
		return false
	}

	fresh := reflect.New(target.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		s.corrupt(key, err)
		return false
	}
	target.Elem().Set(fresh.Elem())
	return true
}

// decode unwraps an envelope, applying migrations. Newer major versions are
// treated as absent rather than guessed at.
func (s *Store) decode(key string, raw []byte) (json.RawMessage, bool) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.corrupt(key, err)
		return nil, false
	}
	if isNull(env.Data) {
		return nil, false
	}

	version := env.Version
	if version == "" {
		version = CurrentVersion
	}
	if version == CurrentVersion {
		return env.Data, true
	}

	if migrate, ok := s.migrations[version]; ok {
		data, err := migrate(env.Data)
		if err != nil {
			s.corrupt(key, fmt.Errorf("migration from %s failed: %w", version, err))
			return nil, false
		}
		return data, true
	}

	stored, err := majorVersion(version)
	if err != nil {
		s.corrupt(key, err)
		return nil, false
	}
	current, _ := majorVersion(CurrentVersion)
	if stored > current {
		s.logger.Warn("Ignoring value written by a newer schema",
			zap.String("key", key), zap.String("version", version))
		return nil, false
	}
	return env.Data, true
}

func (s *Store) corrupt(key string, err error) {
	s.metrics.RecordCorruptRead()
	s.logger.Warn("Failed to parse stored value, using default", zap.String("key", key), zap.Error(err))
}

// Load returns the value stored at key, or def when it is absent or unreadable.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	var v T
	if !s.Get(ctx, key, &v) {
		return def
	}
	return v
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := s.backend.Delete(ctx, s.physical(key))
	s.metrics.RecordStorageOp("remove", err, time.Since(start))
	if err != nil {
		s.logger.Error("Failed to remove value", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("%w: failed to remove %s: %w", ErrWriteFailed, key, err)
	}
	return nil
}

// Clear removes every key under this store's namespace and nothing else.
func (s *Store) Clear(ctx context.Context) error {
	start := time.Now()
	err := s.clear(ctx)
	s.metrics.RecordStorageOp("clear", err, time.Since(start))
	if err != nil {
		s.logger.Error("Failed to clear storage", zap.Error(err))
	}
	return err
}

func (s *Store) clear(ctx context.Context) error {
	keys, err := s.backend.List(ctx, s.physical(""))
	if err != nil {
		return fmt.Errorf("%w: failed to list keys: %w", ErrWriteFailed, err)
	}

	var errs []error
	for _, key := range keys {
		if err := s.backend.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrWriteFailed, errors.Join(errs...))
	}
	return nil
}

// Keys lists the logical keys currently stored under the namespace.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	prefix := s.physical("")
	keys, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, prefix)
	}
	return keys, nil
}

// Size returns the approximate number of bytes stored under the namespace.
func (s *Store) Size(ctx context.Context) (int, error) {
	keys, err := s.backend.List(ctx, s.physical(""))
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	total := 0
	for _, key := range keys {
		raw, err := s.backend.Read(ctx, key)
		if err != nil {
			continue
		}
		total += len(raw)
	}
	return total, nil
}
