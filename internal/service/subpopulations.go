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

// CreateSubpopulation validates sp, assigns its GUID, timestamps and first
// version, and stores it with its Criteria. A nil Criteria is stored as
// an empty one. The caller's value is not modified.
func (s *Service) CreateSubpopulation(ctx context.Context, sp *model.Subpopulation) (*model.Subpopulation, error) {
	if sp.AppID == "" {
		return nil, InputError("appId is required")
	}
	if err := model.ValidateSubpopulation(sp); err != nil {
		return nil, InputError("invalid subpopulation: " + err.Error())
	}
	guid, err := idgen.New(idgen.PrefixSubpopulation)
	if err != nil {
		return nil, fmt.Errorf("failed to generate guid: %w", err)
	}

	now := s.now()
	out := *sp
	out.GUID = guid
	out.CreatedOn = now
	out.ModifiedOn = now
	out.Version = 1
	out.Deleted = false
	out.Criteria = cloneOrEmpty(sp.Criteria)

	if err := s.store.CreateSubpopulation(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to create subpopulation: %w", err)
	}
	if err := s.saveCriteria(ctx, criteria.SubpopulationKey(guid), out.Criteria); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindSubpopulation, events.ActionCreated, out.AppID, guid, out.Version)
	return &out, nil
}

// GetSubpopulation returns the subpopulation with its Criteria attached. Logically
// deleted records are returned too.
func (s *Service) GetSubpopulation(ctx context.Context, appID, guid string) (*model.Subpopulation, error) {
	sp, err := s.store.GetSubpopulation(ctx, appID, guid)
	if err != nil {
		return nil, err
	}
	if sp.Criteria, err = s.assoc.Load(ctx, criteria.SubpopulationKey(guid)); err != nil {
		return nil, err
	}
	return sp, nil
}

// ListSubpopulations returns the app's subpopulations in creation order.
func (s *Service) ListSubpopulations(ctx context.Context, appID string, includeDeleted bool) ([]*model.Subpopulation, error) {
	subpops, err := s.store.ListSubpopulations(ctx, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	for _, sp := range subpops {
		if sp.Criteria, err = s.assoc.Load(ctx, criteria.SubpopulationKey(sp.GUID)); err != nil {
			return nil, err
		}
	}
	return subpops, nil
}

// UpdateSubpopulation replaces the stored subpopulation. sp.Version must equal the
// stored version. The stored Criteria is replaced only when sp carries one.
func (s *Service) UpdateSubpopulation(ctx context.Context, sp *model.Subpopulation) (*model.Subpopulation, error) {
	if err := requireIDs(sp.AppID, sp.GUID); err != nil {
		return nil, err
	}
	if err := model.ValidateSubpopulation(sp); err != nil {
		return nil, InputError("invalid subpopulation: " + err.Error())
	}
	existing, err := s.store.GetSubpopulation(ctx, sp.AppID, sp.GUID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, fmt.Errorf("subpopulation %s is deleted: %w", sp.GUID, store.ErrNotFound)
	}

	out := *sp
	out.CreatedOn = existing.CreatedOn
	out.ModifiedOn = s.now()
	out.Deleted = false
	if err := s.store.UpdateSubpopulation(ctx, &out); err != nil {
		return nil, err
	}

	key := criteria.SubpopulationKey(out.GUID)
	if sp.Criteria != nil {
		out.Criteria = sp.Criteria.Clone()
		if err := s.saveCriteria(ctx, key, out.Criteria); err != nil {
			return nil, err
		}
	} else if out.Criteria, err = s.assoc.Load(ctx, key); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindSubpopulation, events.ActionUpdated, out.AppID, out.GUID, out.Version)
	return &out, nil
}

// DeleteSubpopulation marks the subpopulation deleted. Its Criteria is kept.
// Required subpopulations cannot be logically deleted.
func (s *Service) DeleteSubpopulation(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	var version int64
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		sp, err := tx.GetSubpopulation(ctx, appID, guid)
		if err != nil {
			return err
		}
		if sp.Deleted {
			return fmt.Errorf("subpopulation %s is already deleted: %w", guid, store.ErrNotFound)
		}
		if sp.Required {
			return InputError("cannot delete a required subpopulation")
		}
		sp.Deleted = true
		sp.ModifiedOn = s.now()
		if err := tx.UpdateSubpopulation(ctx, sp); err != nil {
			return err
		}
		version = sp.Version
		return nil
	})
	if err != nil {
		return err
	}
	s.publishOwner(ctx, events.KindSubpopulation, events.ActionDeleted, appID, guid, version)
	return nil
}

// DeleteSubpopulationPermanently removes the subpopulation, then purges its
// Criteria. The purge is best-effort and never fails the delete.
func (s *Service) DeleteSubpopulationPermanently(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	if err := s.store.DeleteSubpopulation(ctx, appID, guid); err != nil {
		return err
	}
	s.purgeCriteria(ctx, criteria.SubpopulationKey(guid))
	s.publishOwner(ctx, events.KindSubpopulation, events.ActionPurged, appID, guid, 0)
	return nil
}
