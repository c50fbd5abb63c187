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

// CreateNotificationTopic validates nt, assigns its GUID, timestamps and first
// version, and stores it with its Criteria. A nil Criteria is stored as
// an empty one. The caller's value is not modified.
func (s *Service) CreateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) (*model.NotificationTopic, error) {
	if nt.AppID == "" {
		return nil, InputError("appId is required")
	}
	if err := model.ValidateNotificationTopic(nt); err != nil {
		return nil, InputError("invalid notification topic: " + err.Error())
	}
	guid, err := idgen.New(idgen.PrefixNotificationTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to generate guid: %w", err)
	}

	now := s.now()
	out := *nt
	out.GUID = guid
	out.CreatedOn = now
	out.ModifiedOn = now
	out.Version = 1
	out.Deleted = false
	out.Criteria = cloneOrEmpty(nt.Criteria)

	if err := s.store.CreateNotificationTopic(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to create notification topic: %w", err)
	}
	if err := s.saveCriteria(ctx, criteria.TopicKey(guid), out.Criteria); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindNotificationTopic, events.ActionCreated, out.AppID, guid, out.Version)
	return &out, nil
}

// GetNotificationTopic returns the notification topic with its Criteria attached. Logically
// deleted records are returned too.
func (s *Service) GetNotificationTopic(ctx context.Context, appID, guid string) (*model.NotificationTopic, error) {
	nt, err := s.store.GetNotificationTopic(ctx, appID, guid)
	if err != nil {
		return nil, err
	}
	if nt.Criteria, err = s.assoc.Load(ctx, criteria.TopicKey(guid)); err != nil {
		return nil, err
	}
	return nt, nil
}

// ListNotificationTopics returns the app's topics in creation order.
func (s *Service) ListNotificationTopics(ctx context.Context, appID string, includeDeleted bool) ([]*model.NotificationTopic, error) {
	topics, err := s.store.ListNotificationTopics(ctx, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	for _, nt := range topics {
		if nt.Criteria, err = s.assoc.Load(ctx, criteria.TopicKey(nt.GUID)); err != nil {
			return nil, err
		}
	}
	return topics, nil
}

// UpdateNotificationTopic replaces the stored notification topic. nt.Version must equal the
// stored version. The stored Criteria is replaced only when nt carries one.
func (s *Service) UpdateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) (*model.NotificationTopic, error) {
	if err := requireIDs(nt.AppID, nt.GUID); err != nil {
		return nil, err
	}
	if err := model.ValidateNotificationTopic(nt); err != nil {
		return nil, InputError("invalid notification topic: " + err.Error())
	}
	existing, err := s.store.GetNotificationTopic(ctx, nt.AppID, nt.GUID)
	if err != nil {
		return nil, err
	}
	if existing.Deleted {
		return nil, fmt.Errorf("notification topic %s is deleted: %w", nt.GUID, store.ErrNotFound)
	}

	out := *nt
	out.CreatedOn = existing.CreatedOn
	out.ModifiedOn = s.now()
	out.Deleted = false
	if err := s.store.UpdateNotificationTopic(ctx, &out); err != nil {
		return nil, err
	}

	key := criteria.TopicKey(out.GUID)
	if nt.Criteria != nil {
		out.Criteria = nt.Criteria.Clone()
		if err := s.saveCriteria(ctx, key, out.Criteria); err != nil {
			return nil, err
		}
	} else if out.Criteria, err = s.assoc.Load(ctx, key); err != nil {
		return nil, err
	}
	s.publishOwner(ctx, events.KindNotificationTopic, events.ActionUpdated, out.AppID, out.GUID, out.Version)
	return &out, nil
}

// DeleteNotificationTopic marks the notification topic deleted. Its Criteria is kept.
func (s *Service) DeleteNotificationTopic(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	var version int64
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		nt, err := tx.GetNotificationTopic(ctx, appID, guid)
		if err != nil {
			return err
		}
		if nt.Deleted {
			return fmt.Errorf("notification topic %s is already deleted: %w", guid, store.ErrNotFound)
		}
		nt.Deleted = true
		nt.ModifiedOn = s.now()
		if err := tx.UpdateNotificationTopic(ctx, nt); err != nil {
			return err
		}
		version = nt.Version
		return nil
	})
	if err != nil {
		return err
	}
	s.publishOwner(ctx, events.KindNotificationTopic, events.ActionDeleted, appID, guid, version)
	return nil
}

// DeleteNotificationTopicPermanently removes the notification topic, then purges its
// Criteria. The purge is best-effort and never fails the delete.
func (s *Service) DeleteNotificationTopicPermanently(ctx context.Context, appID, guid string) error {
	if err := requireIDs(appID, guid); err != nil {
		return err
	}
	if err := s.store.DeleteNotificationTopic(ctx, appID, guid); err != nil {
		return err
	}
	s.purgeCriteria(ctx, criteria.TopicKey(guid))
	s.publishOwner(ctx, events.KindNotificationTopic, events.ActionPurged, appID, guid, 0)
	return nil
}
