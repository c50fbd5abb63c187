// Package service owns the criteria-bearing records of an app: it persists
// each owner alongside its separately stored Criteria, publishes change
// events and answers eligibility reads for a client context.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/events"
	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// Service coordinates owner persistence, criteria association and events.
type Service struct {
	store     store.Store
	assoc     *criteria.Association
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
	metrics   *metrics
}

type options struct {
	logger     *slog.Logger
	registerer prometheus.Registerer
	now        func() time.Time
}

// Option configures a Service.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the service's metrics with r. Without it the
// metrics live in a private registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithClock overrides the time source used for CreatedOn/ModifiedOn.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns a Service. A nil publisher disables events.
func New(s store.Store, cs store.CriteriaStore, p events.Publisher, opts ...Option) *Service {
	o := options{
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		o.registerer = prometheus.NewRegistry()
	}
	if p == nil {
		p = &events.NoopPublisher{}
	}
	m := newMetrics(o.registerer)
	return &Service{
		store: s,
		assoc: criteria.NewAssociation(cs,
			criteria.WithLogger(o.logger),
			criteria.WithPurgeFailureCounter(m.purgeFailures),
		),
		publisher: p,
		logger:    o.logger,
		now:       o.now,
		metrics:   m,
	}
}

// Association exposes the criteria association used by the service.
func (s *Service) Association() *criteria.Association { return s.assoc }

// publish emits an event. It is best-effort; failures are logged but do
// not fail the caller.
func (s *Service) publish(ctx context.Context, topic, id string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "id", id, "error", err)
	}
}

func (s *Service) publishOwner(ctx context.Context, kind, action, appID, guid string, version int64) {
	s.publish(ctx, events.OwnerTopic(kind, action), guid, events.OwnerChanged{
		Kind:    kind,
		Action:  action,
		AppID:   appID,
		GUID:    guid,
		Version: version,
	})
}

func (s *Service) publishPurged(ctx context.Context, keys ...string) {
	for _, key := range keys {
		s.publish(ctx, events.TopicCriteriaPurged, key, events.CriteriaPurged{Key: key})
	}
}

// InputError indicates invalid caller input, including validation failures.
type InputError string

func (e InputError) Error() string { return string(e) }

func requireIDs(appID, guid string) error {
	if appID == "" {
		return InputError("appId is required")
	}
	if guid == "" {
		return InputError("guid is required")
	}
	return nil
}

// saveCriteria writes c under key and announces it.
func (s *Service) saveCriteria(ctx context.Context, key string, c *model.Criteria) error {
	if err := s.assoc.Save(ctx, key, c); err != nil {
		return err
	}
	if c != nil {
		s.publish(ctx, events.TopicCriteriaSaved, key, events.CriteriaSaved{Key: key, Criteria: c})
	}
	return nil
}

// purgeCriteria removes the Criteria under key, announcing it on success.
func (s *Service) purgeCriteria(ctx context.Context, key string) {
	if s.assoc.Purge(ctx, key) {
		s.publishPurged(ctx, key)
	}
}

func cloneOrEmpty(c *model.Criteria) *model.Criteria {
	if c == nil {
		return model.NewCriteria()
	}
	return c.Clone()
}
