package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
	"github.com/alfredjeanlab/eligibility/internal/store/memory"
)

// brokenCriteriaStore fails every list.
type brokenCriteriaStore struct {
	store.CriteriaStore
}

func (brokenCriteriaStore) ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error) {
	return nil, errors.New("table unavailable")
}

// seedStore returns a memory store holding one owner of each kind for app
// "api", one app config for app "other", and their criteria.
func seedStore(t *testing.T) *memory.MemoryStore {
	t.Helper()
	ctx := context.Background()
	ms := memory.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mustDo := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seeding store: %v", err)
		}
	}
	mustDo(ms.CreateAppConfig(ctx, &model.AppConfig{AppID: "api", GUID: "cfg-2", Label: "b", Version: 1, CreatedOn: now}))
	mustDo(ms.CreateAppConfig(ctx, &model.AppConfig{AppID: "api", GUID: "cfg-1", Label: "a", Version: 1, CreatedOn: now, Deleted: true}))
	mustDo(ms.CreateAppConfig(ctx, &model.AppConfig{AppID: "other", GUID: "cfg-9", Label: "o", Version: 1, CreatedOn: now}))
	mustDo(ms.CreateSubpopulation(ctx, &model.Subpopulation{AppID: "api", GUID: "sub-1", Name: "Main", Version: 1, CreatedOn: now}))
	mustDo(ms.CreateNotificationTopic(ctx, &model.NotificationTopic{AppID: "api", GUID: "top-1", Name: "News", Version: 1, CreatedOn: now}))
	mustDo(ms.CreateSchedulePlan(ctx, &model.SchedulePlan{
		AppID: "api", GUID: "plan-1", Label: "Plan", Version: 1, CreatedOn: now,
		Strategy: model.CriteriaScheduleStrategy{
			Type: model.StrategyType,
			ScheduleCriteria: []model.ScheduleCriteria{
				{Schedule: model.Schedule{Label: "s", ScheduleType: model.ScheduleOnce}},
			},
		},
	}))

	beta := model.EmptyCriteria("appconfig:cfg-2")
	beta.SetAllOfGroups([]string{"beta"})
	mustDo(ms.PutCriteria(ctx, beta))
	ios := model.EmptyCriteria("scheduleCriteria:plan-1:0")
	ios.SetMinAppVersion(model.IOS, 4)
	mustDo(ms.PutCriteria(ctx, ios))
	mustDo(ms.PutCriteria(ctx, model.EmptyCriteria("appconfig:cfg-1")))
	return ms
}

func nonEmptyLines(s string) []string {
	var result []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			result = append(result, line)
		}
	}
	return result
}
