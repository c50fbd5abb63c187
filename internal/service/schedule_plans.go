package service

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/events"
	"github.com/alfredjeanlab/eligibility/internal/idgen"
	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// CreateSchedulePlan validates the plan, assigns its GUID, timestamps and
// first version, and stores it with one Criteria per strategy entry. Nil
// entries are stored as empty Criteria.
func (s *Service) CreateSchedulePlan(ctx context.Context, sp *model.SchedulePlan) (*model.SchedulePlan, error) {
	if sp.AppID == "" {
		return nil, InputError("appId is required")
	}
	if err := model.ValidateSchedulePlan(sp); err != nil {
		return nil, InputError("invalid schedule plan: " + err.Error())
	}
	guid, err := idgen.New(idgen.PrefixSchedulePlan)
	if err != nil {
		return nil, fmt.Errorf("failed to generate guid: %w", err)
	}

	now := s.now()
	out := copyPlan(sp)
	out.GUID = guid
	out.CreatedOn = now
	out.ModifiedOn = now
	out.Version = 1
	out.Deleted = false
	out.Strategy.Type = model.StrategyType
	for i := range out.Strategy.ScheduleCriteria {
		if out.Strategy.ScheduleCriteria[i].Criteria == nil {
			out.Strategy.ScheduleCriteria[i].Criteria = model.NewCriteria()
		}
	}

	if err := s.store.CreateSchedulePlan(ctx, out); err != nil {
		return nil, fmt.Errorf("failed to create schedule plan: %w", err)
	}
	if err := s.saveEntries(ctx, out); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindSchedulePlan, events.ActionCreated, out.AppID, guid, out.Version)
	return out, nil
}

// GetSchedulePlan returns the plan with every entry's Criteria attached.
func (s *Service) GetSchedulePlan(ctx context.Context, appID, guid string) (*model.SchedulePlan, error) {
	sp, err := s.store.GetSchedulePlan(ctx, appID, guid)
	if err != nil {
		return nil, err
	}
	if err := s.loadEntries(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

// ListSchedulePlans returns the app's plans in creation order.
func (s *Service) ListSchedulePlans(ctx context.Context, appID string, includeDeleted bool) ([]*model.SchedulePlan, error) {
	plans, err := s.store.ListSchedulePlans(ctx, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	for _, sp := range plans {
		if err := s.loadEntries(ctx, sp); err != nil {
			return nil, err
		}
	}
	return plans, nil
}

// UpdateSchedulePlan replaces the stored plan. Entries that carry a
// Criteria replace the one stored at their index; entries without one keep
// it. Criteria stored beyond the new strategy length stay until the plan is
// deleted permanently.
func (s *Service) UpdateSchedulePlan(ctx context.Context, sp *model.SchedulePlan) (*model.SchedulePlan, error) {
	if err := requireIDs(sp.AppID, sp.GUID); err != nil {
		return nil, err
	}
	if err := model.ValidateSchedulePlan(sp); err != nil {
		return nil, InputError("invalid schedule plan: " + err.Error())
	}
	existing, err := s.store.GetSchedulePlan(ctx, sp.AppID, sp.GUID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, fmt.Errorf("schedule plan %s is deleted: %w", sp.GUID, store.ErrNotFound)
	}

	out := copyPlan(sp)
	out.CreatedOn = existing.CreatedOn
	out.ModifiedOn = s.now()
	out.Deleted = false
	out.Strategy.Type = model.StrategyType
	if err := s.store.UpdateSchedulePlan(ctx, out); err != nil {
		return nil, err
	}

	if err := s.saveEntries(ctx, out); err != nil {
		return nil, err
	}
	if err := s.loadEntries(ctx, out); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindSchedulePlan, events.ActionUpdated, out.AppID, out.GUID, out.Version)
	return out, nil
}

// DeleteSchedulePlan marks the plan deleted. Its Criteria are kept.
func (s *Service) DeleteSchedulePlan(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	var version int64
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		sp, err := tx.GetSchedulePlan(ctx, appID, guid)
		if err != nil {
			return err
		}
		if sp.Deleted {
			return fmt.Errorf("schedule plan %s is already deleted: %w", guid, store.ErrNotFound)
		}
		sp.Deleted = true
		sp.ModifiedOn = s.now()
		if err := tx.UpdateSchedulePlan(ctx, sp); err != nil {
			return err
		}
		version = sp.Version
		return nil
	})
	if err != nil {
		return err
	}
	s.publishOwner(ctx, events.KindSchedulePlan, events.ActionDeleted, appID, guid, version)
	return nil
}

// DeleteSchedulePlanPermanently removes the plan, then purges the Criteria
// of every entry, including any left over from a longer earlier strategy.
func (s *Service) DeleteSchedulePlanPermanently(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	sp, err := s.store.GetSchedulePlan(ctx, appID, guid)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSchedulePlan(ctx, appID, guid); err != nil {
		return err
	}
	n := len(sp.Strategy.ScheduleCriteria)
	s.publishPurged(ctx, s.assoc.PurgeIndexed(ctx, criteria.KindScheduleCriteria, guid, n)...)
	s.publishOwner(ctx, events.KindSchedulePlan, events.ActionPurged, appID, guid, 0)
	return nil
}

// saveEntries writes the Criteria of every entry that carries one.
func (s *Service) saveEntries(ctx context.Context, sp *model.SchedulePlan) error {
	for i, sc := range sp.Strategy.ScheduleCriteria {
		if err := s.saveCriteria(ctx, criteria.ScheduleCriteriaKey(sp.GUID, i), sc.Criteria); err != nil {
			return err
		}
	}
	return nil
}

// loadEntries attaches the stored Criteria to every entry that lacks one.
func (s *Service) loadEntries(ctx context.Context, sp *model.SchedulePlan) error {
	for i := range sp.Strategy.ScheduleCriteria {
		sc := &sp.Strategy.ScheduleCriteria[i]
		if sc.Criteria != nil {
			continue
		}
		c, err := s.assoc.Load(ctx, criteria.ScheduleCriteriaKey(sp.GUID, i))
		if err != nil {
			return err
		}
		sc.Criteria = c
	}
	return nil
}

// copyPlan copies the plan and its entry slice so the caller's value is not
// modified. Entry Criteria are cloned.
func copyPlan(sp *model.SchedulePlan) *model.SchedulePlan {
	out := *sp
	out.Strategy.ScheduleCriteria = make([]model.ScheduleCriteria, len(sp.Strategy.ScheduleCriteria))
	for i, sc := range sp.Strategy.ScheduleCriteria {
		if sc.Criteria != nil {
			sc.Criteria = sc.Criteria.Clone()
		}
		out.Strategy.ScheduleCriteria[i] = sc
	}
	return &out
}

// planStrategy builds the ordered selection strategy of a loaded plan.
func planStrategy(sp *model.SchedulePlan) *criteria.Strategy[model.Schedule] {
	candidates := make([]criteria.Candidate[model.Schedule], len(sp.Strategy.ScheduleCriteria))
	for i, sc := range sp.Strategy.ScheduleCriteria {
		candidates[i] = criteria.Candidate[model.Schedule]{Payload: sc.Schedule, Criteria: sc.Criteria}
	}
	return criteria.NewStrategy(candidates...)
}
