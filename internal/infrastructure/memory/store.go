// Package memory holds the in-process Pending-Registration Store.
//
// Entries live in a fixed number of shards, each guarded by its own mutex.
// Every operation on an email takes exactly one shard lock, so lookup,
// expiry check and removal in TryConsume happen as one step and calls for
// emails in different shards never contend. State does not survive a restart
// and is not shared between processes.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-email-verify/internal/domain"
)

const defaultShards = 32

type shard struct {
	mu      sync.Mutex
	entries map[string]domain.PendingRegistration
}

// Store is a lock-striped map from email to pending registration.
type Store struct {
	shards []*shard
	ttl    time.Duration
}

// NewStore returns a Store with n shards whose codes are valid for ttl.
// n <= 0 selects the default shard count.
func NewStore(n int, ttl time.Duration) *Store {
	if n <= 0 {
		n = defaultShards
	}
	s := &Store{shards: make([]*shard, n), ttl: ttl}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]domain.PendingRegistration)}
	}
	return s
}

func (s *Store) shardFor(email string) *shard {
	return s.shards[xxhash.Sum64String(email)%uint64(len(s.shards))]
}

// Put inserts or replaces the entry for reg.Email. It never fails.
func (s *Store) Put(_ context.Context, reg *domain.PendingRegistration) error {
	sh := s.shardFor(reg.Email)
	sh.mu.Lock()
	sh.entries[reg.Email] = *reg
	sh.mu.Unlock()
	return nil
}

// TryConsume checks code against the entry for email and removes the entry
// on a match or when it has expired. A mismatch leaves the entry in place.
func (s *Store) TryConsume(_ context.Context, email, code string, now time.Time) (*domain.PendingRegistration, error) {
	sh := s.shardFor(email)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	reg, ok := sh.entries[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if reg.Expired(now, s.ttl) {
		delete(sh.entries, email)
		return nil, domain.ErrExpired
	}
	if reg.Code != code {
		return nil, domain.ErrCodeMismatch
	}
	delete(sh.entries, email)
	return &reg, nil
}

// Sweep evicts every expired entry and returns how many were removed.
// Each shard is swept under its own lock, the same one TryConsume takes.
func (s *Store) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for email, reg := range sh.entries {
			if reg.Expired(now, s.ttl) {
				delete(sh.entries, email)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of entries currently held, expired or not.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}
