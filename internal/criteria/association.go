package criteria

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// Counter is incremented once per failed best-effort deletion.
// prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// Association persists Criteria under keys derived from their owners. Writes
// are not transactional with the owner's own write; a read miss yields an
// empty Criteria so callers never see nil.
type Association struct {
	store         store.CriteriaStore
	logger        *slog.Logger
	purgeFailures Counter
}

// AssociationOption configures an Association.
type AssociationOption func(*Association)

// WithLogger sets the logger used to report purge failures.
func WithLogger(l *slog.Logger) AssociationOption {
	return func(a *Association) { a.logger = l }
}

// WithPurgeFailureCounter sets the counter incremented on each failed purge.
func WithPurgeFailureCounter(c Counter) AssociationOption {
	return func(a *Association) { a.purgeFailures = c }
}

// NewAssociation returns an Association backed by cs.
func NewAssociation(cs store.CriteriaStore, opts ...AssociationOption) *Association {
	a := &Association{store: cs, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Save writes a copy of c under key, replacing whatever was stored. c itself
// is not modified. A nil Criteria is a no-op: the previously stored value, if
// any, stays in place.
func (a *Association) Save(ctx context.Context, key string, c *model.Criteria) error {
	if c == nil {
		return nil
	}
	stored := c.Clone()
	stored.SetKey(key)
	if err := a.store.PutCriteria(ctx, stored); err != nil {
		return fmt.Errorf("save criteria %s: %w", key, err)
	}
	return nil
}

// SaveIndexed writes each non-nil entry of list under its indexed key.
func (a *Association) SaveIndexed(ctx context.Context, kind OwnerKind, id string, list []*model.Criteria) error {
	for i, c := range list {
		if err := a.Save(ctx, IndexedKey(kind, id, i), c); err != nil {
			return err
		}
	}
	return nil
}

// Load returns the Criteria stored under key, or an empty Criteria carrying
// key when nothing is stored. Only storage failures are returned as errors.
func (a *Association) Load(ctx context.Context, key string) (*model.Criteria, error) {
	c, err := a.store.GetCriteria(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return model.EmptyCriteria(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load criteria %s: %w", key, err)
	}
	if c.Key() == "" {
		c.SetKey(key)
	}
	return c, nil
}

// Purge deletes the Criteria under key. It is best-effort: a failure is
// logged and counted but never returned, so it cannot block deletion of the
// owner. Absent keys are not failures. It reports whether the delete succeeded.
func (a *Association) Purge(ctx context.Context, key string) bool {
	if err := a.store.DeleteCriteria(ctx, key); err != nil {
		a.logger.Warn("failed to purge criteria", "key", key, "error", err)
		if a.purgeFailures != nil {
			a.purgeFailures.Inc()
		}
		return false
	}
	return true
}

// PurgeIndexed deletes every indexed Criteria of an owner: indices below n,
// plus any other key stored under the owner's prefix, so entries left over
// from a longer list are not orphaned. Best-effort like Purge. It returns
// the keys that were deleted.
func (a *Association) PurgeIndexed(ctx context.Context, kind OwnerKind, id string, n int) []string {
	keys := make(map[string]struct{}, n)
	for i := range n {
		keys[IndexedKey(kind, id, i)] = struct{}{}
	}
	stored, err := a.store.ListCriteria(ctx, Prefix(kind, id))
	if err != nil {
		a.logger.Warn("failed to list criteria for purge", "prefix", Prefix(kind, id), "error", err)
	}
	for _, c := range stored {
		keys[c.Key()] = struct{}{}
	}

	var purged []string
	for i := range n {
		key := IndexedKey(kind, id, i)
		delete(keys, key)
		if a.Purge(ctx, key) {
			purged = append(purged, key)
		}
	}
	for _, key := range slices.Sorted(maps.Keys(keys)) {
		if a.Purge(ctx, key) {
			purged = append(purged, key)
		}
	}
	return purged
}
