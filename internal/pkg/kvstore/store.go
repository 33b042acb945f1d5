// Package kvstore is the device-local persistent key-value store used by the
// auth engine. Values are JSON encoded and reads go through a short-lived
// in-process cache layered over the backend.
package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Well-known keys.
const (
	AuthPrefix = "auth:"

	KeyUserSession         = AuthPrefix + "userSession"
	KeyPendingRegistration = AuthPrefix + "pendingRegistration"
	KeyProviderSession     = AuthPrefix + "providerSession"
	KeyPKCEVerifier        = AuthPrefix + "pkceVerifier"
	KeyCodeSentPrefix      = AuthPrefix + "codeSent:"

	// Lives outside AuthPrefix so logout never resets it.
	KeyAdminSetupComplete = "app:adminSetupComplete"
)

const DefaultReadCacheTTL = 10 * time.Second

// Backend is the raw byte storage behind a Store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type readEntry struct {
	value    []byte
	found    bool
	cachedAt time.Time
}

// Store namespaces keys, encodes values and caches reads.
type Store struct {
	backend   Backend
	namespace string
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu    sync.Mutex
	reads map[string]readEntry
	// epoch changes on every removal, so a backend read that raced a
	// removal is not remembered.
	epoch uint64
}

type Option func(*Store)

// WithNamespace prefixes every key written to the backend.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.namespace = ns }
}

// WithReadCacheTTL overrides DefaultReadCacheTTL. Zero disables the read cache.
func WithReadCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock is used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		ttl:     DefaultReadCacheTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
		reads:   make(map[string]readEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) fullKey(key string) string {
	return s.namespace + key
}

// Get decodes the value stored under key into dst. It reports false when the
// key is absent.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, found, err := s.getRaw(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) getRaw(ctx context.Context, key string) ([]byte, bool, error) {
	if entry, ok := s.cached(key); ok {
		return entry.value, entry.found, nil
	}

	epoch := s.currentEpoch()
	raw, found, err := s.backend.Get(ctx, s.fullKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	s.remember(key, raw, found, epoch)
	return raw, found, nil
}

// Set encodes v and writes it under key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	epoch := s.currentEpoch()
	if err := s.backend.Set(ctx, s.fullKey(key), raw); err != nil {
		s.forget(key)
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.remember(key, raw, true, epoch)
	return nil
}

// Remove deletes keys. Missing keys are not an error.
func (s *Store) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
		s.forget(k)
	}
	err := s.backend.Delete(ctx, full...)
	// reads that overlapped the delete may have cached the old value
	s.mu.Lock()
	s.epoch++
	for _, k := range keys {
		delete(s.reads, k)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("remove keys: %w", err)
	}
	return nil
}

// Keys lists keys under prefix, without the namespace.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	full, err := s.backend.Keys(ctx, s.fullKey(prefix))
	if err != nil {
		return nil, fmt.Errorf("list keys %s: %w", prefix, err)
	}
	keys := make([]string, 0, len(full))
	for _, k := range full {
		keys = append(keys, strings.TrimPrefix(k, s.namespace))
	}
	return keys, nil
}

// PurgePrefix removes every key under prefix and returns how many were found.
func (s *Store) PurgePrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	s.epoch++
	for k := range s.reads {
		if strings.HasPrefix(k, prefix) {
			delete(s.reads, k)
		}
	}
	s.mu.Unlock()

	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.Remove(ctx, keys...); err != nil {
		return 0, err
	}
	s.logger.Debug("purged keys", zap.String("prefix", prefix), zap.Int("count", len(keys)))
	return len(keys), nil
}

func (s *Store) cached(key string) (readEntry, bool) {
	if s.ttl <= 0 {
		return readEntry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.reads[key]
	if !ok {
		return readEntry{}, false
	}
	if s.now().Sub(entry.cachedAt) >= s.ttl {
		delete(s.reads, key)
		return readEntry{}, false
	}
	return entry, true
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// remember caches a value read or written at epoch, unless a removal has
// happened since.
func (s *Store) remember(key string, raw []byte, found bool, epoch uint64) {
	if s.ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		delete(s.reads, key)
		return
	}
	s.reads[key] = readEntry{value: raw, found: found, cachedAt: s.now()}
}

func (s *Store) forget(key string) {
	s.mu.Lock()
	s.epoch++
	delete(s.reads, key)
	s.mu.Unlock()
}
