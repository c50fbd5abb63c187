package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) result() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// ValidateCriteria checks a Criteria for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the criteria is valid.
func ValidateCriteria(c *Criteria) error {
	var ve ValidationError
	validateCriteria(&ve, "", c)
	return ve.result()
}

// validateCriteria appends violations to ve, prefixing field names with prefix.
func validateCriteria(ve *ValidationError, prefix string, c *Criteria) {
	if c == nil {
		return
	}
	field := func(name string) string { return prefix + name }

	mins, maxes := c.MinAppVersions(), c.MaxAppVersions()
	for _, os := range c.VersionedPlatforms() {
		if !os.IsValid() {
			ve.add(field("appVersions"), fmt.Sprintf("unrecognized operating system %q", os))
			continue
		}
		minV, hasMin := mins[os]
		maxV, hasMax := maxes[os]
		if hasMin && minV < 0 {
			ve.add(field("minAppVersions."+os.String()), "cannot be negative")
		}
		if hasMax && maxV < 0 {
			ve.add(field("maxAppVersions."+os.String()), "cannot be negative")
		}
		if hasMin && hasMax && minV > maxV {
			ve.add(field("maxAppVersions."+os.String()), fmt.Sprintf("must be greater than or equal to minAppVersions (%d)", minV))
		}
	}

	for _, g := range c.AllOfGroups() {
		if slices.Contains(c.NoneOfGroups(), g) {
			ve.add(field("allOfGroups"), fmt.Sprintf("includes %q, which is also in noneOfGroups", g))
		}
	}
	for _, id := range c.AllOfSubstudyIDs() {
		if slices.Contains(c.NoneOfSubstudyIDs(), id) {
			ve.add(field("allOfSubstudyIds"), fmt.Sprintf("includes %q, which is also in noneOfSubstudyIds", id))
		}
	}

	if c.Language() != "" && strings.TrimSpace(c.Language()) == "" {
		ve.add(field("language"), "cannot be blank")
	}
}

// ValidateAppConfig checks an AppConfig before it is written.
func ValidateAppConfig(ac *AppConfig) error {
	var ve ValidationError
	if strings.TrimSpace(ac.Label) == "" {
		ve.add("label", "is required")
	}
	if len(ac.ClientData) > 0 && !json.Valid(ac.ClientData) {
		ve.add("clientData", "contains invalid JSON")
	}
	validateCriteria(&ve, "criteria.", ac.Criteria)
	return ve.result()
}

// ValidateSubpopulation checks a Subpopulation before it is written.
func ValidateSubpopulation(sp *Subpopulation) error {
	var ve ValidationError
	if strings.TrimSpace(sp.Name) == "" {
		ve.add("name", "is required")
	}
	validateCriteria(&ve, "criteria.", sp.Criteria)
	return ve.result()
}

// ValidateNotificationTopic checks a NotificationTopic before it is written.
func ValidateNotificationTopic(nt *NotificationTopic) error {
	var ve ValidationError
	if strings.TrimSpace(nt.Name) == "" {
		ve.add("name", "is required")
	}
	if len([]rune(nt.ShortName)) > 10 {
		ve.add("shortName", "must be 10 characters or fewer")
	}
	validateCriteria(&ve, "criteria.", nt.Criteria)
	return ve.result()
}

// ValidateSchedulePlan checks a SchedulePlan and every entry of its strategy.
func ValidateSchedulePlan(sp *SchedulePlan) error {
	var ve ValidationError
	if strings.TrimSpace(sp.Label) == "" {
		ve.add("label", "is required")
	}
	entries := sp.Strategy.ScheduleCriteria
	if len(entries) == 0 {
		ve.add("strategy.scheduleCriteria", "requires at least one schedule")
	}
	for i, sc := range entries {
		prefix := fmt.Sprintf("strategy.scheduleCriteria[%d].", i)
		if strings.TrimSpace(sc.Schedule.Label) == "" {
			ve.add(prefix+"schedule.label", "is required")
		}
		if !sc.Schedule.ScheduleType.IsValid() {
			ve.add(prefix+"schedule.scheduleType", fmt.Sprintf("invalid value %q", sc.Schedule.ScheduleType))
		}
		if len(sc.Schedule.Activities) == 0 {
			ve.add(prefix+"schedule.activities", "requires at least one activity")
		}
		validateCriteria(&ve, prefix+"criteria.", sc.Criteria)
	}
	return ve.result()
}
