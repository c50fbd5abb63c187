package service

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/events"
	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// AppConfigForClient returns the first app config, in creation order, whose
// Criteria matches cc. It returns store.ErrNotFound when none does.
func (s *Service) AppConfigForClient(ctx context.Context, appID string, cc model.ClientContext) (*model.AppConfig, error) {
	configs, err := s.ListAppConfigs(ctx, appID, false)
	if err != nil {
		return nil, err
	}
	candidates := make([]criteria.Candidate[*model.AppConfig], len(configs))
	for i, ac := range configs {
		candidates[i] = criteria.Candidate[*model.AppConfig]{Payload: ac, Criteria: ac.Criteria}
	}
	ac, ok := criteria.SelectFirst(candidates, cc)
	s.metrics.observe(events.KindAppConfig, ok)
	if !ok {
		return nil, fmt.Errorf("no app config in %s matches the client: %w", appID, store.ErrNotFound)
	}
	return ac, nil
}

// SubpopulationsForClient returns every active subpopulation whose Criteria
// matches cc, in creation order.
func (s *Service) SubpopulationsForClient(ctx context.Context, appID string, cc model.ClientContext) ([]*model.Subpopulation, error) {
	subpops, err := s.ListSubpopulations(ctx, appID, false)
	if err != nil {
		return nil, err
	}
	candidates := make([]criteria.Candidate[*model.Subpopulation], len(subpops))
	for i, sp := range subpops {
		candidates[i] = criteria.Candidate[*model.Subpopulation]{Payload: sp, Criteria: sp.Criteria}
	}
	matched := criteria.MatchAll(candidates, cc)
	s.metrics.observe(events.KindSubpopulation, len(matched) > 0)
	return matched, nil
}

// TopicsForClient returns every active notification topic whose Criteria
// matches cc, in creation order.
func (s *Service) TopicsForClient(ctx context.Context, appID string, cc model.ClientContext) ([]*model.NotificationTopic, error) {
	topics, err := s.ListNotificationTopics(ctx, appID, false)
	if err != nil {
		return nil, err
	}
	candidates := make([]criteria.Candidate[*model.NotificationTopic], len(topics))
	for i, nt := range topics {
		candidates[i] = criteria.Candidate[*model.NotificationTopic]{Payload: nt, Criteria: nt.Criteria}
	}
	matched := criteria.MatchAll(candidates, cc)
	s.metrics.observe(events.KindNotificationTopic, len(matched) > 0)
	return matched, nil
}

// ScheduleForClient runs the plan's strategy and returns the first
// schedule whose Criteria matches cc. The boolean is false when no entry
// matches. Deleted plans are reported as store.ErrNotFound.
func (s *Service) ScheduleForClient(ctx context.Context, appID, planGUID string, cc model.ClientContext) (*model.Schedule, bool, error) {
	sp, err := s.GetSchedulePlan(ctx, appID, planGUID)
	if err != nil {
		return nil, false, err
	}
	if sp.Deleted {
		return nil, false, fmt.Errorf("schedule plan %s is deleted: %w", planGUID, store.ErrNotFound)
	}
	schedule, ok := planStrategy(sp).Select(cc)
	s.metrics.observe(events.KindSchedulePlan, ok)
	if !ok {
		return nil, false, nil
	}
	return &schedule, true, nil
}

// PlanSchedule is the schedule a plan selected for a client.
type PlanSchedule struct {
	PlanGUID string         `json:"planGuid"`
	Schedule model.Schedule `json:"schedule"`
}

// SchedulesForClient runs every active plan of the app and returns the
// schedule each one selected. Plans with no matching entry are skipped.
func (s *Service) SchedulesForClient(ctx context.Context, appID string, cc model.ClientContext) ([]PlanSchedule, error) {
	plans, err := s.ListSchedulePlans(ctx, appID, false)
	if err != nil {
		return nil, err
	}
	var out []PlanSchedule
	for _, sp := range plans {
		schedule, ok := planStrategy(sp).Select(cc)
		s.metrics.observe(events.KindSchedulePlan, ok)
		if ok {
			out = append(out, PlanSchedule{PlanGUID: sp.GUID, Schedule: schedule})
		}
	}
	return out, nil
}
