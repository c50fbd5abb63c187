package model

import (
	"encoding/json"
	"strings"
	"testing"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateCriteria_Valid(t *testing.T) {
	c := NewCriteria()
	c.SetMinAppVersion(IOS, 2)
	c.SetMaxAppVersion(IOS, 10)
	c.SetMinAppVersion(Android, 5)
	c.SetAllOfGroups([]string{"a"})
	c.SetNoneOfGroups([]string{"b"})
	c.SetLanguage("en")
	if err := ValidateCriteria(c); err != nil {
		t.Fatalf("expected valid criteria, got: %v", err)
	}
}

func TestValidateCriteria_Nil(t *testing.T) {
	if err := ValidateCriteria(nil); err != nil {
		t.Fatalf("nil criteria should be valid, got: %v", err)
	}
}

func TestValidateCriteria_Violations(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(c *Criteria)
		field string
	}{
		{
			name:  "negative min",
			setup: func(c *Criteria) { c.SetMinAppVersion(IOS, -1) },
			field: "minAppVersions.iPhone OS",
		},
		{
			name:  "negative max",
			setup: func(c *Criteria) { c.SetMaxAppVersion(Android, -3) },
			field: "maxAppVersions.Android",
		},
		{
			name: "min above max",
			setup: func(c *Criteria) {
				c.SetMinAppVersion(Android, 10)
				c.SetMaxAppVersion(Android, 4)
			},
			field: "maxAppVersions.Android",
		},
		{
			name:  "unknown platform",
			setup: func(c *Criteria) { c.SetMinAppVersion("Windows Phone", 1) },
			field: "appVersions",
		},
		{
			name: "group in both sets",
			setup: func(c *Criteria) {
				c.SetAllOfGroups([]string{"x", "y"})
				c.SetNoneOfGroups([]string{"y"})
			},
			field: "allOfGroups",
		},
		{
			name: "substudy in both sets",
			setup: func(c *Criteria) {
				c.SetAllOfSubstudyIDs([]string{"s1"})
				c.SetNoneOfSubstudyIDs([]string{"s1"})
			},
			field: "allOfSubstudyIds",
		},
		{
			name:  "blank language",
			setup: func(c *Criteria) { c.SetLanguage("   ") },
			field: "language",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCriteria()
			tc.setup(c)
			errs := fieldErrors(t, ValidateCriteria(c))
			if !hasFieldError(errs, tc.field) {
				t.Errorf("expected error on field %q, got %+v", tc.field, errs)
			}
		})
	}
}

func TestValidateCriteria_EqualBoundsAllowed(t *testing.T) {
	c := NewCriteria()
	c.SetMinAppVersion(IOS, 7)
	c.SetMaxAppVersion(IOS, 7)
	if err := ValidateCriteria(c); err != nil {
		t.Fatalf("min == max should be valid, got: %v", err)
	}
}

func TestValidationError_Message(t *testing.T) {
	c := NewCriteria()
	c.SetMinAppVersion(IOS, -1)
	c.SetLanguage(" ")
	err := ValidateCriteria(c)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "validation failed: ") {
		t.Errorf("unexpected prefix: %q", msg)
	}
	if !strings.Contains(msg, "; ") {
		t.Errorf("expected multiple errors joined by '; ', got %q", msg)
	}
}

func TestValidateAppConfig(t *testing.T) {
	bad := NewCriteria()
	bad.SetMaxAppVersion(IOS, -1)

	for _, tc := range []struct {
		name  string
		ac    AppConfig
		field string
	}{
		{name: "valid", ac: AppConfig{Label: "default", ClientData: json.RawMessage(`{"a":1}`)}},
		{name: "missing label", ac: AppConfig{Label: " "}, field: "label"},
		{name: "bad client data", ac: AppConfig{Label: "x", ClientData: json.RawMessage(`{`)}, field: "clientData"},
		{name: "bad criteria", ac: AppConfig{Label: "x", Criteria: bad}, field: "criteria.maxAppVersions.iPhone OS"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAppConfig(&tc.ac)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("expected valid, got: %v", err)
				}
				return
			}
			if !hasFieldError(fieldErrors(t, err), tc.field) {
				t.Errorf("expected error on field %q, got: %v", tc.field, err)
			}
		})
	}
}

func TestValidateSubpopulation(t *testing.T) {
	if err := ValidateSubpopulation(&Subpopulation{Name: "Main"}); err != nil {
		t.Fatalf("expected valid, got: %v", err)
	}
	errs := fieldErrors(t, ValidateSubpopulation(&Subpopulation{}))
	if !hasFieldError(errs, "name") {
		t.Error("expected error on field 'name'")
	}
}

func TestValidateNotificationTopic(t *testing.T) {
	if err := ValidateNotificationTopic(&NotificationTopic{Name: "News", ShortName: "news"}); err != nil {
		t.Fatalf("expected valid, got: %v", err)
	}
	errs := fieldErrors(t, ValidateNotificationTopic(&NotificationTopic{Name: "News", ShortName: "much-too-long"}))
	if !hasFieldError(errs, "shortName") {
		t.Error("expected error on field 'shortName'")
	}
}

func TestValidateSchedulePlan(t *testing.T) {
	good := ScheduleCriteria{
		Schedule: Schedule{
			Label:        "Daily",
			ScheduleType: ScheduleRecurring,
			Activities:   []Activity{{Label: "Tapping"}},
		},
	}
	sp := SchedulePlan{
		Label:    "Plan",
		Strategy: CriteriaScheduleStrategy{Type: StrategyType, ScheduleCriteria: []ScheduleCriteria{good}},
	}
	if err := ValidateSchedulePlan(&sp); err != nil {
		t.Fatalf("expected valid, got: %v", err)
	}

	overlap := NewCriteria()
	overlap.SetAllOfGroups([]string{"g"})
	overlap.SetNoneOfGroups([]string{"g"})
	sp.Strategy.ScheduleCriteria = append(sp.Strategy.ScheduleCriteria, ScheduleCriteria{
		Schedule: Schedule{ScheduleType: "sometimes"},
		Criteria: overlap,
	})
	errs := fieldErrors(t, ValidateSchedulePlan(&sp))
	for _, field := range []string{
		"strategy.scheduleCriteria[1].schedule.label",
		"strategy.scheduleCriteria[1].schedule.scheduleType",
		"strategy.scheduleCriteria[1].schedule.activities",
		"strategy.scheduleCriteria[1].criteria.allOfGroups",
	} {
		if !hasFieldError(errs, field) {
			t.Errorf("expected error on field %q", field)
		}
	}
	if hasFieldError(errs, "strategy.scheduleCriteria[0].schedule.label") {
		t.Error("first entry should be valid")
	}

	empty := SchedulePlan{Label: "Empty"}
	if !hasFieldError(fieldErrors(t, ValidateSchedulePlan(&empty)), "strategy.scheduleCriteria") {
		t.Error("expected error for plan without schedules")
	}
}
