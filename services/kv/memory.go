package kvsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/learnsmart/core"
)

type memoryItem struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is a process-local core.KVStore. Entries are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	cron  *cron.Cron
	now   func() time.Time
}

var _ core.KVStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// StartJanitor periodically purges expired entries following the cron schedule (eg. "@every 1m").
func (s *MemoryStore) StartJanitor(schedule string, logger core.Logger) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if n := s.purge(); n > 0 && logger != nil {
			logger.Debug(fmt.Sprintf("kv janitor: purged %d expired entries", n))
		}
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	return nil
}

// Stop halts the janitor, if running.
func (s *MemoryStore) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *MemoryStore) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			n++
		}
	}
	return n
}

func (it memoryItem) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && now.After(it.expiresAt)
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := memoryItem{value: value}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = it
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(key)
}

func (s *MemoryStore) Take(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	val, err := s.load(key)
	if err != nil {
		return "", err
	}
	delete(s.items, key)
	return val, nil
}

// load must be called with mu held.
func (s *MemoryStore) load(key string) (string, error) {
	it, ok := s.items[key]
	if !ok {
		return "", core.ErrKeyNotFound
	}
	if it.expired(s.now()) {
		delete(s.items, key)
		return "", core.ErrKeyNotFound
	}
	return it.value, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
