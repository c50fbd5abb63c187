package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

// criteriaRowColumns is the column list for scanCriteria results.
var criteriaRowColumns = []string{
	"key", "language", "min_app_versions", "max_app_versions",
	"all_of_groups", "none_of_groups", "all_of_substudy_ids", "none_of_substudy_ids",
}

// ownerRowColumns is the column list for scanOwnerRow results.
var ownerRowColumns = []string{"app_id", "guid", "version", "deleted", "created_on", "modified_on", "data"}

// jsonWithout matches a JSON document argument that does not contain field.
type jsonWithout struct{ field string }

func (m jsonWithout) Match(v driver.Value) bool {
	b, ok := v.([]byte)
	if !ok || !json.Valid(b) {
		return false
	}
	return !strings.Contains(string(b), `"`+m.field+`"`)
}

func TestScanHelpers(t *testing.T) {
	if nullString("").Valid {
		t.Error("nullString(\"\") should be invalid")
	}
	if ns := nullString("en"); !ns.Valid || ns.String != "en" {
		t.Errorf("nullString(\"en\") = %v", ns)
	}

	for _, tc := range []struct {
		in, want string
	}{
		{"appconfig:", "appconfig:"},
		{"scheduleCriteria:p_1:", `scheduleCriteria:p\_1:`},
		{"50%", `50\%`},
		{`a\b`, `a\\b`},
	} {
		if got := likeEscaper.Replace(tc.in); got != tc.want {
			t.Errorf("likeEscaper(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQueryPutCriteria(t *testing.T) {
	db, mock := newMockDB(t)
	c := model.EmptyCriteria("appconfig:g1")
	c.SetLanguage("fr")
	c.SetMinAppVersion(model.IOS, 2)
	c.SetAllOfGroups([]string{"b", "a"})

	mock.ExpectExec("INSERT INTO criteria .+ ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs(
			"appconfig:g1",
			"fr",
			[]byte(`{"iPhone OS":2}`),
			[]byte(`{}`),
			pq.Array([]string{"a", "b"}),
			pq.Array([]string{}),
			pq.Array([]string{}),
			pq.Array([]string{}),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryPutCriteria(context.Background(), db, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryPutCriteria_NoLanguage(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO criteria").
		WithArgs("topic:t", nil, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryPutCriteria(context.Background(), db, model.EmptyCriteria("topic:t")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryPutCriteria_NoKey(t *testing.T) {
	db, _ := newMockDB(t)
	if err := queryPutCriteria(context.Background(), db, model.NewCriteria()); err == nil {
		t.Fatal("expected error for criteria without key")
	}
}

func TestQueryGetCriteria(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM criteria WHERE key = \\$1").WithArgs("subpopulation:s1").
		WillReturnRows(sqlmock.NewRows(criteriaRowColumns).AddRow(
			"subpopulation:s1", nil,
			[]byte(`{"Android":4}`), []byte(`{"Android":9,"iPhone OS":20}`),
			"{a,b}", "{}", `{"study one"}`, "{}",
		))

	c, err := queryGetCriteria(context.Background(), db, "subpopulation:s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Key() != "subpopulation:s1" {
		t.Errorf("key = %q", c.Key())
	}
	if c.Language() != "" {
		t.Errorf("language = %q, want empty", c.Language())
	}
	if v, ok := c.MinAppVersion(model.Android); !ok || v != 4 {
		t.Errorf("min Android = %d, %v", v, ok)
	}
	if v, ok := c.MaxAppVersion(model.IOS); !ok || v != 20 {
		t.Errorf("max iOS = %d, %v", v, ok)
	}
	if g := c.AllOfGroups(); len(g) != 2 || g[0] != "a" || g[1] != "b" {
		t.Errorf("allOfGroups = %v", g)
	}
	if s := c.AllOfSubstudyIDs(); len(s) != 1 || s[0] != "study one" {
		t.Errorf("allOfSubstudyIds = %v", s)
	}
	if n := c.NoneOfGroups(); n == nil || len(n) != 0 {
		t.Errorf("noneOfGroups = %#v, want empty", n)
	}
}

func TestQueryGetCriteria_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM criteria WHERE key = \\$1").WithArgs("appconfig:missing").
		WillReturnRows(sqlmock.NewRows(criteriaRowColumns))

	if _, err := queryGetCriteria(context.Background(), db, "appconfig:missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryGetCriteria_BadVersions(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM criteria").WithArgs("appconfig:x").
		WillReturnRows(sqlmock.NewRows(criteriaRowColumns).AddRow(
			"appconfig:x", nil, []byte(`[1,2]`), []byte(`{}`), "{}", "{}", "{}", "{}",
		))

	if _, err := queryGetCriteria(context.Background(), db, "appconfig:x"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestQueryDeleteCriteria_Absent(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM criteria WHERE key = \\$1").WithArgs("appconfig:ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryDeleteCriteria(context.Background(), db, "appconfig:ghost"); err != nil {
		t.Fatalf("deleting an absent key should not fail, got %v", err)
	}
}

func TestQueryListCriteria(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM criteria WHERE key LIKE .+ ORDER BY key").
		WithArgs(`scheduleCriteria:plan\_1:`).
		WillReturnRows(sqlmock.NewRows(criteriaRowColumns).
			AddRow("scheduleCriteria:plan_1:0", "en", []byte(`{}`), []byte(`{}`), "{}", "{}", "{}", "{}").
			AddRow("scheduleCriteria:plan_1:1", nil, []byte(`{}`), []byte(`{}`), "{x}", "{}", "{}", "{}"))

	list, err := queryListCriteria(context.Background(), db, "scheduleCriteria:plan_1:")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 criteria, got %d", len(list))
	}
	if list[0].Language() != "en" || list[1].Key() != "scheduleCriteria:plan_1:1" {
		t.Errorf("unexpected rows: %q %q", list[0].Language(), list[1].Key())
	}
}

func TestCreateAppConfig_StripsCriteria(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	c := model.NewCriteria()
	c.SetAllOfGroups([]string{"a"})
	ac := &model.AppConfig{
		AppID: "api", GUID: "g1", Label: "default", Criteria: c,
		CreatedOn: now, ModifiedOn: now, Version: 1,
	}
	mock.ExpectExec("INSERT INTO app_configs").
		WithArgs("api", "g1", int64(1), false, now, now, jsonWithout{"criteria"}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := createAppConfig(context.Background(), db, ac); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.Criteria == nil {
		t.Error("create should not modify the caller's record")
	}
}

func TestGetAppConfig_ColumnsWin(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	data := []byte(`{"appId":"api","guid":"g1","label":"default","version":1,"deleted":false}`)
	mock.ExpectQuery("SELECT .+ FROM app_configs WHERE app_id = \\$1 AND guid = \\$2").WithArgs("api", "g1").
		WillReturnRows(sqlmock.NewRows(ownerRowColumns).AddRow("api", "g1", int64(3), true, now, now, data))

	ac, err := getAppConfig(context.Background(), db, "api", "g1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.Label != "default" {
		t.Errorf("label = %q", ac.Label)
	}
	if ac.Version != 3 || !ac.Deleted {
		t.Errorf("columns should override the payload: version=%d deleted=%v", ac.Version, ac.Deleted)
	}
	if ac.Criteria != nil {
		t.Error("criteria should not be loaded by the owner store")
	}
}

func TestGetOwner_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM subpopulations").WithArgs("api", "nope").
		WillReturnRows(sqlmock.NewRows(ownerRowColumns))

	if _, err := getSubpopulation(context.Background(), db, "api", "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestListSubpopulations(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM subpopulations WHERE app_id = \\$1 AND NOT deleted ORDER BY created_on, guid").
		WithArgs("api").
		WillReturnRows(sqlmock.NewRows(ownerRowColumns).
			AddRow("api", "s1", int64(1), false, now, now, []byte(`{"name":"First"}`)).
			AddRow("api", "s2", int64(2), false, now.Add(time.Second), now, []byte(`{"name":"Second","required":true}`)))

	list, err := listSubpopulations(context.Background(), db, "api", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2, got %d", len(list))
	}
	if list[0].GUID != "s1" || list[1].Name != "Second" || !list[1].Required {
		t.Errorf("unexpected rows: %+v %+v", list[0], list[1])
	}
}

func TestListNotificationTopics_IncludeDeleted(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM notification_topics WHERE app_id = \\$1 ORDER BY").
		WithArgs("api").
		WillReturnRows(sqlmock.NewRows(ownerRowColumns))

	list, err := listTopics(context.Background(), db, "api", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestUpdateTopic(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()
	nt := &model.NotificationTopic{AppID: "api", GUID: "t1", Name: "News", ModifiedOn: now, Version: 2}
	mock.ExpectQuery("UPDATE notification_topics SET .+ WHERE app_id = \\$4 AND guid = \\$5 AND version = \\$6 RETURNING version").
		WithArgs(false, now, sqlmock.AnyArg(), "api", "t1", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))

	if err := updateTopic(context.Background(), db, nt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nt.Version != 3 {
		t.Errorf("version = %d, want 3", nt.Version)
	}
}

func TestUpdateOwner_VersionConflict(t *testing.T) {
	db, mock := newMockDB(t)
	sp := &model.Subpopulation{AppID: "api", GUID: "s1", Name: "n", Version: 1}
	mock.ExpectQuery("UPDATE subpopulations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectQuery("SELECT version FROM subpopulations WHERE app_id = \\$1 AND guid = \\$2").WithArgs("api", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))

	err := updateSubpopulation(context.Background(), db, sp)
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected store.ErrVersionConflict, got %v", err)
	}
	if sp.Version != 1 {
		t.Errorf("version should be unchanged on conflict, got %d", sp.Version)
	}
}

func TestUpdateOwner_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("UPDATE schedule_plans").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectQuery("SELECT version FROM schedule_plans").WithArgs("api", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	err := updateSchedulePlan(context.Background(), db, &model.SchedulePlan{AppID: "api", GUID: "p1"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestDeleteOwner(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM app_configs WHERE app_id = \\$1 AND guid = \\$2").WithArgs("api", "g1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM app_configs WHERE app_id = \\$1 AND guid = \\$2").WithArgs("api", "g1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := queryDeleteOwner(context.Background(), db, tableAppConfigs, "api", "g1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := queryDeleteOwner(context.Background(), db, tableAppConfigs, "api", "g1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestSchedulePlanRow_StripsEntryCriteria(t *testing.T) {
	c := model.NewCriteria()
	c.SetLanguage("en")
	sp := &model.SchedulePlan{
		AppID: "api",
		GUID:  "p1",
		Label: "plan",
		Strategy: model.CriteriaScheduleStrategy{
			Type: model.StrategyType,
			ScheduleCriteria: []model.ScheduleCriteria{
				{Schedule: model.Schedule{Label: "a"}, Criteria: c},
				{Schedule: model.Schedule{Label: "b"}},
			},
		},
	}
	r, err := schedulePlanRow(sp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(r.Data), `"criteria"`) {
		t.Errorf("stored plan contains criteria: %s", r.Data)
	}
	if sp.Strategy.ScheduleCriteria[0].Criteria == nil {
		t.Error("caller's plan should be untouched")
	}

	got, err := decodeRow(r, applySchedulePlan)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Strategy.ScheduleCriteria) != 2 || got.Strategy.ScheduleCriteria[1].Schedule.Label != "b" {
		t.Errorf("entries not preserved: %+v", got.Strategy)
	}
}

func TestRunInTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notification_topics").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return tx.CreateNotificationTopic(context.Background(), &model.NotificationTopic{
			AppID: "api", GUID: "t1", Name: "News", CreatedOn: now, ModifiedOn: now, Version: 1,
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransaction_Rollback(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
