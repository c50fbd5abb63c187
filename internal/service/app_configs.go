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

// CreateAppConfig validates ac, assigns its GUID, timestamps and first
// version, and stores it with its Criteria. A nil Criteria is stored as
// an empty one. The caller's value is not modified.
func (s *Service) CreateAppConfig(ctx context.Context, ac *model.AppConfig) (*model.AppConfig, error) {
	if ac.AppID == "" {
		return nil, InputError("appId is required")
	}
	if err := model.ValidateAppConfig(ac); err != nil {
		return nil, InputError("invalid app config: " + err.Error())
	}
	guid, err := idgen.New(idgen.PrefixAppConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate guid: %w", err)
	}

	now := s.now()
	out := *ac
	out.GUID = guid
	out.CreatedOn = now
	out.ModifiedOn = now
	out.Version = 1
	out.Deleted = false
	out.Criteria = cloneOrEmpty(ac.Criteria)

	if err := s.store.CreateAppConfig(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to create app config: %w", err)
	}
	if err := s.saveCriteria(ctx, criteria.AppConfigKey(guid), out.Criteria); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindAppConfig, events.ActionCreated, out.AppID, guid, out.Version)
	return &out, nil
}

// GetAppConfig returns the app config with its Criteria attached. Logically
// deleted records are returned too.
func (s *Service) GetAppConfig(ctx context.Context, appID, guid string) (*model.AppConfig, error) {
	ac, err := s.store.GetAppConfig(ctx, appID, guid)
	if err != nil {
		return nil, err
	}
	if ac.Criteria, err = s.assoc.Load(ctx, criteria.AppConfigKey(guid)); err != nil {
		return nil, err
	}
	return ac, nil
}

// ListAppConfigs returns the app's configs in creation order.
func (s *Service) ListAppConfigs(ctx context.Context, appID string, includeDeleted bool) ([]*model.AppConfig, error) {
	configs, err := s.store.ListAppConfigs(ctx, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	for _, ac := range configs {
		if ac.Criteria, err = s.assoc.Load(ctx, criteria.AppConfigKey(ac.GUID)); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

// UpdateAppConfig replaces the stored app config. ac.Version must equal the
// stored version. The stored Criteria is replaced only when ac carries one.
func (s *Service) UpdateAppConfig(ctx context.Context, ac *model.AppConfig) (*model.AppConfig, error) {
	if err := requireIDs(ac.AppID, ac.GUID); err != nil {
		return nil, err
	}
	if err := model.ValidateAppConfig(ac); err != nil {
		return nil, InputError("invalid app config: " + err.Error())
	}
	existing, err := s.store.GetAppConfig(ctx, ac.AppID, ac.GUID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, fmt.Errorf("app config %s is deleted: %w", ac.GUID, store.ErrNotFound)
	}

	out := *ac
	out.CreatedOn = existing.CreatedOn
	out.ModifiedOn = s.now()
	out.Deleted = false
	if err := s.store.UpdateAppConfig(ctx, &out); err != nil {
		return nil, err
	}

	key := criteria.AppConfigKey(out.GUID)
	if ac.Criteria != nil {
		out.Criteria = ac.Criteria.Clone()
		if err := s.saveCriteria(ctx, key, out.Criteria); err != nil {
			return nil, err
		}
	} else if out.Criteria, err = s.assoc.Load(ctx, key); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindAppConfig, events.ActionUpdated, out.AppID, out.GUID, out.Version)
	return &out, nil
}

// DeleteAppConfig marks the app config deleted. Its Criteria is kept.
func (s *Service) DeleteAppConfig(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	var version int64
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		ac, err := tx.GetAppConfig(ctx, appID, guid)
		if err != nil {
			return err
		}
		if ac.Deleted {
			return fmt.Errorf("app config %s is already deleted: %w", guid, store.ErrNotFound)
		}
		ac.Deleted = true
		ac.ModifiedOn = s.now()
		if err := tx.UpdateAppConfig(ctx, ac); err != nil {
			return err
		}
		version = ac.Version
		return nil
	})
	if err != nil {
		return err
	}
	s.publishOwner(ctx, events.KindAppConfig, events.ActionDeleted, appID, guid, version)
	return nil
}

// DeleteAppConfigPermanently removes the app config, then purges its
// Criteria. The purge is best-effort and never fails the delete.
func (s *Service) DeleteAppConfigPermanently(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	if err := s.store.DeleteAppConfig(ctx, appID, guid); err != nil {
		return err
	}
	s.purgeCriteria(ctx, criteria.AppConfigKey(guid))
	s.publishOwner(ctx, events.KindAppConfig, events.ActionPurged, appID, guid, 0)
	return nil
}
