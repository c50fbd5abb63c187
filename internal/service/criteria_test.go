package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/events"
	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
	"github.com/alfredjeanlab/eligibility/internal/store/memory"
)

func TestCriteria_PutGetPurge(t *testing.T) {
	ctx := context.Background()
	svc, ms, pub := newTestService(t)
	key := criteria.TopicKey("top-1")

	got, err := svc.Criteria(ctx, key)
	if err != nil {
		t.Fatalf("Criteria: %v", err)
	}
	if !got.IsEmpty() || got.Key() != key {
		t.Errorf("miss should yield an empty criteria carrying the key, got %q", got.Key())
	}

	c := model.NewCriteria()
	c.SetLanguage("de")
	if err := svc.PutCriteria(ctx, key, c); err != nil {
		t.Fatalf("PutCriteria: %v", err)
	}
	if c.Key() != "" {
		t.Errorf("PutCriteria changed the caller's criteria key to %q", c.Key())
	}
	got, _ = svc.Criteria(ctx, key)
	if got.Language() != "de" {
		t.Errorf("language = %q", got.Language())
	}

	if err := svc.PurgeCriteria(ctx, key); err != nil {
		t.Fatalf("PurgeCriteria: %v", err)
	}
	if _, err := ms.GetCriteria(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected criteria gone, got %v", err)
	}
	if !slices.Equal(pub.topics, []string{events.TopicCriteriaSaved, events.TopicCriteriaPurged}) {
		t.Errorf("topics = %v", pub.topics)
	}
}

func TestCriteria_InputErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	overlap := model.NewCriteria()
	overlap.SetAllOfGroups([]string{"a"})
	overlap.SetNoneOfGroups([]string{"a"})

	for _, tc := range []struct {
		name string
		err  error
	}{
		{"bad key on put", svc.PutCriteria(ctx, "nokind", model.NewCriteria())},
		{"unknown kind", svc.PutCriteria(ctx, "widget:1", model.NewCriteria())},
		{"nil criteria", svc.PutCriteria(ctx, "appconfig:g1", nil)},
		{"invalid criteria", svc.PutCriteria(ctx, "appconfig:g1", overlap)},
		{"bad key on purge", svc.PurgeCriteria(ctx, "")},
	} {
		var ie InputError
		if !errors.As(tc.err, &ie) {
			t.Errorf("%s: expected InputError, got %v", tc.name, tc.err)
		}
	}
}

func TestPurgeCriteria_Failure(t *testing.T) {
	ms := memory.New()
	svc := New(ms, failingDeletes{ms}, nil)
	if err := svc.PurgeCriteria(context.Background(), "appconfig:g1"); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(svc.metrics.purgeFailures); got != 1 {
		t.Errorf("purge failures = %v, want 1", got)
	}
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	key := criteria.SubpopulationKey("sub-1")

	c := model.NewCriteria()
	c.SetMinAppVersion(model.IOS, 10)
	c.SetAllOfGroups([]string{"beta"})
	if err := svc.PutCriteria(ctx, key, c); err != nil {
		t.Fatal(err)
	}

	ev, err := svc.Evaluate(ctx, key, iosContext(3))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ev.Matched || len(ev.Mismatches) != 2 {
		t.Fatalf("expected two failed checks, got %+v", ev)
	}
	if ev.Mismatches[0].Check != criteria.CheckAppVersion || ev.Mismatches[1].Check != criteria.CheckAllOfGroups {
		t.Errorf("checks = %v", ev.Mismatches)
	}

	ev, _ = svc.Evaluate(ctx, key, iosContext(12, "beta"))
	if !ev.Matched {
		t.Errorf("expected match, got %+v", ev)
	}
	if got := testutil.ToFloat64(svc.metrics.evaluations.WithLabelValues(string(criteria.KindSubpopulation), resultMatch)); got != 1 {
		t.Errorf("match evaluations = %v", got)
	}
}

func TestEvaluate_ScheduleEntriesCountUnderPlan(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	plan, err := svc.CreateSchedulePlan(ctx, &model.SchedulePlan{
		AppID: "api",
		Label: "Plan",
		Strategy: model.CriteriaScheduleStrategy{ScheduleCriteria: []model.ScheduleCriteria{
			{Schedule: schedule("beta"), Criteria: groupCriteria("beta")},
		}},
	})
	if err != nil {
		t.Fatalf("CreateSchedulePlan: %v", err)
	}
	if _, err := svc.Evaluate(ctx, criteria.ScheduleCriteriaKey(plan.GUID, 0), iosContext(1, "beta")); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if _, _, err := svc.ScheduleForClient(ctx, "api", plan.GUID, iosContext(1, "beta")); err != nil {
		t.Fatalf("ScheduleForClient: %v", err)
	}

	if got := testutil.ToFloat64(svc.metrics.evaluations.WithLabelValues(events.KindSchedulePlan, resultMatch)); got != 2 {
		t.Errorf("schedule plan evaluations = %v, want 2", got)
	}
	if got := testutil.ToFloat64(svc.metrics.evaluations.WithLabelValues(string(criteria.KindScheduleCriteria), resultMatch)); got != 0 {
		t.Errorf("evaluations labelled by key kind = %v, want 0", got)
	}
}
