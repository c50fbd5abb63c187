package service

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/model"
)

// Criteria returns the Criteria stored under key, or an empty one carrying
// key when nothing is stored.
func (s *Service) Criteria(ctx context.Context, key string) (*model.Criteria, error) {
	if _, err := criteria.ParseKey(key); err != nil {
		return nil, InputError(err.Error())
	}
	return s.assoc.Load(ctx, key)
}

// PutCriteria validates c and stores it under key, replacing any previous
// value. key must be a derived owner key.
func (s *Service) PutCriteria(ctx context.Context, key string, c *model.Criteria) error {
	if _, err := criteria.ParseKey(key); err != nil {
		return InputError(err.Error())
	}
	if c == nil {
		return InputError("criteria is required")
	}
	if err := model.ValidateCriteria(c); err != nil {
		return InputError("invalid criteria: " + err.Error())
	}
	return s.saveCriteria(ctx, key, c)
}

// PurgeCriteria deletes the Criteria under key. Like owner purges it is
// best-effort; the failure is logged and counted, and reported as an error
// only so interactive callers can tell.
func (s *Service) PurgeCriteria(ctx context.Context, key string) error {
	if _, err := criteria.ParseKey(key); err != nil {
		return InputError(err.Error())
	}
	if !s.assoc.Purge(ctx, key) {
		return fmt.Errorf("purge criteria %s failed", key)
	}
	s.publishPurged(ctx, key)
	return nil
}

// Evaluation is the outcome of matching one stored Criteria.
type Evaluation struct {
	Key        string              `json:"key"`
	Matched    bool                `json:"matched"`
	Mismatches []criteria.Mismatch `json:"mismatches,omitempty"`
}

// Evaluate matches the Criteria under key against cc and reports every
// check that failed.
func (s *Service) Evaluate(ctx context.Context, key string, cc model.ClientContext) (*Evaluation, error) {
	c, err := s.Criteria(ctx, key)
	if err != nil {
		return nil, err
	}
	ev := &Evaluation{Key: key, Mismatches: criteria.Explain(c, cc)}
	ev.Matched = len(ev.Mismatches) == 0
	pk, _ := criteria.ParseKey(key)
	s.metrics.observe(ownerLabel(pk.Kind), ev.Matched)
	return ev, nil
}
