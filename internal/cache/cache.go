// Package cache keeps recently read Criteria in memory in front of a
// CriteriaStore. Entries expire after a TTL. Writes made through the cache
// invalidate their key at once; writes made by other processes are picked up
// from the event bus by Run, or at the latest when the TTL lapses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alfredjeanlab/eligibility/internal/events"
	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// entry is a cached read. found is false for a cached miss.
type entry struct {
	c     *model.Criteria
	found bool
}

// CriteriaStore is a read-through cache implementing store.CriteriaStore.
type CriteriaStore struct {
	next   store.CriteriaStore
	lru    *expirable.LRU[string, entry]
	logger *slog.Logger

	hits   prometheus.Counter
	misses prometheus.Counter

	// epoch advances on every invalidation. A read-through fill is only
	// stored if no invalidation happened while it was loading.
	mu    sync.Mutex
	epoch uint64
}

var _ store.CriteriaStore = (*CriteriaStore)(nil)

type options struct {
	logger   *slog.Logger
	registry prometheus.Registerer
}

// Option configures a CriteriaStore.
type Option func(*options)

// WithLogger sets the logger used by Run.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the hit and miss counters with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registry = r }
}

// New wraps next with a cache of at most size keys, each kept for ttl.
func New(next store.CriteriaStore, size int, ttl time.Duration, opts ...Option) *CriteriaStore {
	o := options{logger: slog.Default(), registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(&o)
	}
	f := promauto.With(o.registry)
	requests := f.NewCounterVec(prometheus.CounterOpts{
		Name: "eligibility_criteria_cache_requests_total",
		Help: "Criteria reads served by the cache, partitioned by hit or miss.",
	}, []string{"result"})
	return &CriteriaStore{
		next:   next,
		lru:    expirable.NewLRU[string, entry](size, nil, ttl),
		logger: o.logger,
		hits:   requests.WithLabelValues("hit"),
		misses: requests.WithLabelValues("miss"),
	}
}

// GetCriteria serves key from the cache, reading through on a miss. Absent
// keys are cached too, so repeated reads of owners without criteria stay
// off the backend. Callers get their own copy.
func (s *CriteriaStore) GetCriteria(ctx context.Context, key string) (*model.Criteria, error) {
	if e, ok := s.lru.Get(key); ok {
		s.hits.Inc()
		if !e.found {
			return nil, store.ErrNotFound
		}
		return e.c.Clone(), nil
	}
	s.misses.Inc()

	start := s.currentEpoch()
	c, err := s.next.GetCriteria(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		s.fill(start, key, entry{})
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.fill(start, key, entry{c: c.Clone(), found: true})
	return c, nil
}

func (s *CriteriaStore) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// fill caches e unless an invalidation happened since start.
func (s *CriteriaStore) fill(start uint64, key string, e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == start {
		s.lru.Add(key, e)
	}
}

// invalidate drops key, or every key when key is empty.
func (s *CriteriaStore) invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	if key == "" {
		s.lru.Purge()
		return
	}
	s.lru.Remove(key)
}

// PutCriteria writes through and invalidates the key.
func (s *CriteriaStore) PutCriteria(ctx context.Context, c *model.Criteria) error {
	defer s.invalidate(c.Key())
	return s.next.PutCriteria(ctx, c)
}

// DeleteCriteria deletes through and invalidates the key.
func (s *CriteriaStore) DeleteCriteria(ctx context.Context, key string) error {
	defer s.invalidate(key)
	return s.next.DeleteCriteria(ctx, key)
}

// ListCriteria is not cached.
func (s *CriteriaStore) ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error) {
	return s.next.ListCriteria(ctx, prefix)
}

// Invalidate drops key from the cache.
func (s *CriteriaStore) Invalidate(key string) {
	if key == "" {
		return
	}
	s.invalidate(key)
}

// Len returns the number of cached keys, including cached misses.
func (s *CriteriaStore) Len() int {
	return s.lru.Len()
}

// keyEvent is the part of a criteria event the cache needs.
type keyEvent struct {
	Key string `json:"key"`
}

// Run listens for criteria change events and invalidates the affected keys.
// A reconnect may have dropped events, so reconnect should receive a value
// after every reconnect; the whole cache is then flushed. It blocks until
// ctx is cancelled.
func (s *CriteriaStore) Run(ctx context.Context, sub events.Subscriber, reconnect <-chan struct{}) error {
	ch, cancel, err := sub.Subscribe(events.TopicCriteria)
	if err != nil {
		return fmt.Errorf("cache: subscribe: %w", err)
	}
	defer cancel()

	s.logger.Debug("cache: invalidation subscriber started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-reconnect:
			s.invalidate("")
			s.logger.Info("cache: flushed after reconnect")
		case raw, ok := <-ch:
			if !ok {
				s.logger.Info("cache: subscription channel closed")
				return nil
			}
			var ev keyEvent
			if err := json.Unmarshal(raw, &ev); err != nil || ev.Key == "" {
				s.logger.Warn("cache: bad event payload", "err", err)
				continue
			}
			s.invalidate(ev.Key)
		}
	}
}
