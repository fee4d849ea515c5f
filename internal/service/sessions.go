package service

import (
	"context"
	"sync"
	"time"

	"github.com/abgdnv/storefront/internal/commerce"
	"github.com/abgdnv/storefront/internal/reporter"
	"golang.org/x/sync/singleflight"
)

// Sessions hands out one commerce.Store per session key, rehydrating it from
// storage on first use. Stores idle longer than the sweep threshold are
// dropped once their cart and wishlist are safely in storage.
type Sessions struct {
	mu       sync.Mutex
	stores   map[string]*entry
	group    singleflight.Group
	storage  commerce.Storage
	reporter reporter.Reporter
	prefix   string
	timeout  time.Duration
	now      func() time.Time
}

type entry struct {
	store    *commerce.Store
	lastUsed time.Time
}

// NewSessions creates a registry whose snapshot keys are "<namespace>:<session>".
func NewSessions(storage commerce.Storage, rep reporter.Reporter, namespace string, timeout time.Duration) *Sessions {
	return &Sessions{
		stores:   make(map[string]*entry),
		storage:  storage,
		reporter: rep,
		prefix:   namespace + ":",
		timeout:  timeout,
		now:      time.Now,
	}
}

// Get returns the store for session, opening it on first use. Concurrent
// first requests for one session share a single load.
func (s *Sessions) Get(ctx context.Context, session string) *commerce.Store {
	s.mu.Lock()
	if e, ok := s.stores[session]; ok {
		e.lastUsed = s.now()
		s.mu.Unlock()
		return e.store
	}
	s.mu.Unlock()

	v, _, _ := s.group.Do(session, func() (any, error) {
		s.mu.Lock()
		if e, ok := s.stores[session]; ok {
			s.mu.Unlock()
			return e.store, nil
		}
		s.mu.Unlock()

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		store := commerce.Open(loadCtx,
			commerce.WithStorage(s.storage, s.prefix+session),
			commerce.WithReporter(s.reporter),
			commerce.WithSaveTimeout(s.timeout),
		)

		s.mu.Lock()
		s.stores[session] = &entry{store: store, lastUsed: s.now()}
		s.mu.Unlock()
		return store, nil
	})
	return v.(*commerce.Store)
}

// Sweep drops stores unused for longer than idle and returns how many it
// dropped. A store whose last write failed gets one more write first and stays
// in memory if that fails too, since it holds the only copy of its cart.
func (s *Sessions) Sweep(ctx context.Context, idle time.Duration) int {
	s.mu.Lock()
	cutoff := s.now().Add(-idle)
	idleEntries := make(map[string]*entry)
	for key, e := range s.stores {
		if e.lastUsed.Before(cutoff) {
			idleEntries[key] = e
		}
	}
	s.mu.Unlock()

	for key, e := range idleEntries {
		if !e.store.Flush(ctx) {
			delete(idleEntries, key)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	dropped := 0
	for key, e := range idleEntries {
		// Skip entries touched or re-dirtied while flushing.
		if s.stores[key] != e || !e.lastUsed.Before(cutoff) || e.store.Unsaved() {
			continue
		}
		delete(s.stores, key)
		dropped++
	}
	return dropped
}

// Len is the number of stores held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stores)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval, idle time.Duration, onSweep func(dropped int)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(ctx, idle); onSweep != nil {
				onSweep(n)
			}
		}
	}
}
