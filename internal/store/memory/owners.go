package memory

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

func appConfigs(st *state) *table { return st.appConfigs }
func subpopulations(st *state) *table { return st.subpops }
func topics(st *state) *table { return st.topics }
func schedulePlans(st *state) *table { return st.schedulePlans }

// stripPlan returns a copy of the plan with every entry's Criteria removed.
func stripPlan(sp model.SchedulePlan) model.SchedulePlan {
	entries := make([]model.ScheduleCriteria, len(sp.Strategy.ScheduleCriteria))
	for i, sc := range sp.Strategy.ScheduleCriteria {
		sc.Criteria = nil
		entries[i] = sc
	}
	sp.Strategy.ScheduleCriteria = entries
	return sp
}

func (s *MemoryStore) CreateAppConfig(ctx context.Context, ac *model.AppConfig) error {
	v := *ac
	v.Criteria = nil
	return s.create(appConfigs, "app config", ac.AppID, ac.GUID, ac.Version, ac.Deleted, v)
}

func (s *MemoryStore) GetAppConfig(ctx context.Context, appID, guid string) (*model.AppConfig, error) {
	var ac model.AppConfig
	if err := s.get(appConfigs, "app config", appID, guid, &ac); err != nil {
		return nil, err
	}
	return &ac, nil
}

func (s *MemoryStore) ListAppConfigs(ctx context.Context, appID string, includeDeleted bool) ([]*model.AppConfig, error) {
	return decodeRows[model.AppConfig]("app config", s.listRows(appConfigs, appID, includeDeleted))
}

func (s *MemoryStore) UpdateAppConfig(ctx context.Context, ac *model.AppConfig) error {
	version, err := s.update(appConfigs, "app config", ac.AppID, ac.GUID, ac.Version, ac.Deleted, func(version int64) ([]byte, error) {
		v := *ac
		v.Criteria = nil
		v.Version = version
		return json.Marshal(v)
	})
	if err != nil {
		return err
	}
	ac.Version = version
	return nil
}

func (s *MemoryStore) DeleteAppConfig(ctx context.Context, appID, guid string) error {
	return s.delete(appConfigs, "app config", appID, guid)
}

func (s *MemoryStore) CreateSubpopulation(ctx context.Context, sp *model.Subpopulation) error {
	v := *sp
	v.Criteria = nil
	return s.create(subpopulations, "subpopulation", sp.AppID, sp.GUID, sp.Version, sp.Deleted, v)
}

func (s *MemoryStore) GetSubpopulation(ctx context.Context, appID, guid string) (*model.Subpopulation, error) {
	var sp model.Subpopulation
	if err := s.get(subpopulations, "subpopulation", appID, guid, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *MemoryStore) ListSubpopulations(ctx context.Context, appID string, includeDeleted bool) ([]*model.Subpopulation, error) {
	return decodeRows[model.Subpopulation]("subpopulation", s.listRows(subpopulations, appID, includeDeleted))
}

func (s *MemoryStore) UpdateSubpopulation(ctx context.Context, sp *model.Subpopulation) error {
	version, err := s.update(subpopulations, "subpopulation", sp.AppID, sp.GUID, sp.Version, sp.Deleted, func(version int64) ([]byte, error) {
		v := *sp
		v.Criteria = nil
		v.Version = version
		return json.Marshal(v)
	})
	if err != nil {
		return err
	}
	sp.Version = version
	return nil
}

func (s *MemoryStore) DeleteSubpopulation(ctx context.Context, appID, guid string) error {
	return s.delete(subpopulations, "subpopulation", appID, guid)
}

func (s *MemoryStore) CreateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error {
	v := *nt
	v.Criteria = nil
	return s.create(topics, "notification topic", nt.AppID, nt.GUID, nt.Version, nt.Deleted, v)
}

func (s *MemoryStore) GetNotificationTopic(ctx context.Context, appID, guid string) (*model.NotificationTopic, error) {
	var nt model.NotificationTopic
	if err := s.get(topics, "notification topic", appID, guid, &nt); err != nil {
		return nil, err
	}
	return &nt, nil
}

func (s *MemoryStore) ListNotificationTopics(ctx context.Context, appID string, includeDeleted bool) ([]*model.NotificationTopic, error) {
	return decodeRows[model.NotificationTopic]("notification topic", s.listRows(topics, appID, includeDeleted))
}

func (s *MemoryStore) UpdateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error {
	version, err := s.update(topics, "notification topic", nt.AppID, nt.GUID, nt.Version, nt.Deleted, func(version int64) ([]byte, error) {
		v := *nt
		v.Criteria = nil
		v.Version = version
		return json.Marshal(v)
	})
	if err != nil {
		return err
	}
	nt.Version = version
	return nil
}

func (s *MemoryStore) DeleteNotificationTopic(ctx context.Context, appID, guid string) error {
	return s.delete(topics, "notification topic", appID, guid)
}

func (s *MemoryStore) CreateSchedulePlan(ctx context.Context, sp *model.SchedulePlan) error {
	return s.create(schedulePlans, "schedule plan", sp.AppID, sp.GUID, sp.Version, sp.Deleted, stripPlan(*sp))
}

func (s *MemoryStore) GetSchedulePlan(ctx context.Context, appID, guid string) (*model.SchedulePlan, error) {
	var sp model.SchedulePlan
	if err := s.get(schedulePlans, "schedule plan", appID, guid, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (s *MemoryStore) ListSchedulePlans(ctx context.Context, appID string, includeDeleted bool) ([]*model.SchedulePlan, error) {
	return decodeRows[model.SchedulePlan]("schedule plan", s.listRows(schedulePlans, appID, includeDeleted))
}

func (s *MemoryStore) UpdateSchedulePlan(ctx context.Context, sp *model.SchedulePlan) error {
	version, err := s.update(schedulePlans, "schedule plan", sp.AppID, sp.GUID, sp.Version, sp.Deleted, func(version int64) ([]byte, error) {
		v := stripPlan(*sp)
		v.Version = version
		return json.Marshal(v)
	})
	if err != nil {
		return err
	}
	sp.Version = version
	return nil
}

func (s *MemoryStore) DeleteSchedulePlan(ctx context.Context, appID, guid string) error {
	return s.delete(schedulePlans, "schedule plan", appID, guid)
}
