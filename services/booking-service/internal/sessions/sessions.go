// Package sessions keeps in-progress booking wizards between HTTP requests.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/wizard"
)

const DefaultTTL = 30 * time.Minute

type Store interface {
	Create(ctx context.Context, w wizard.Wizard) (string, error)
	Load(ctx context.Context, id string) (wizard.Wizard, error)
	Save(ctx context.Context, id string, w wizard.Wizard) error
	Delete(ctx context.Context, id string) error
}

// RedisStore holds wizard snapshots as JSON under prefix:id with a sliding TTL.
type RedisStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration, prefix string) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "booking:wizard"
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func encode(w wizard.Wizard) ([]byte, error) {
	data, err := json.Marshal(w.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("sessions: marshal wizard: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Create(ctx context.Context, w wizard.Wizard) (string, error) {
	data, err := encode(w)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.rdb.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("sessions: create: %w: %w", model.ErrNetworkError, err)
	}
	return id, nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (wizard.Wizard, error) {
	data, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return wizard.Wizard{}, fmt.Errorf("sessions: wizard %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return wizard.Wizard{}, fmt.Errorf("sessions: load: %w: %w", model.ErrNetworkError, err)
	}
	var snap wizard.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return wizard.Wizard{}, fmt.Errorf("sessions: unmarshal wizard %s: %w: %w", id, model.ErrServerError, err)
	}
	return wizard.Restore(snap)
}

// Save overwrites an existing session and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, id string, w wizard.Wizard) error {
	data, err := encode(w)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetXX(ctx, s.key(id), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("sessions: save: %w: %w", model.ErrNetworkError, err)
	}
	if !ok {
		return fmt.Errorf("sessions: wizard %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("sessions: delete: %w: %w", model.ErrNetworkError, err)
	}
	return nil
}

// MemoryStore is the single-process fallback when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	snap    wizard.Snapshot
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Create(_ context.Context, w wizard.Wizard) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.entries[id] = memoryEntry{snap: w.Snapshot(), expires: s.now().Add(s.ttl)}
	return id, nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (wizard.Wizard, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok && !s.now().Before(e.expires) {
		delete(s.entries, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return wizard.Wizard{}, fmt.Errorf("sessions: wizard %s: %w", id, model.ErrNotFound)
	}
	return wizard.Restore(e.snap)
}

func (s *MemoryStore) Save(_ context.Context, id string, w wizard.Wizard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, id)
		return fmt.Errorf("sessions: wizard %s: %w", id, model.ErrNotFound)
	}
	s.entries[id] = memoryEntry{snap: w.Snapshot(), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// sweep drops expired entries. Caller holds mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, id)
		}
	}
}
