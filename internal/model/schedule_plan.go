package model

import "time"

// ScheduleType describes how often a schedule fires.
type ScheduleType string

const (
	ScheduleOnce       ScheduleType = "once"
	ScheduleRecurring  ScheduleType = "recurring"
	SchedulePersistent ScheduleType = "persistent"
)

// IsValid checks whether the schedule type is a known value.
func (t ScheduleType) IsValid() bool {
	switch t {
	case ScheduleOnce, ScheduleRecurring, SchedulePersistent:
		return true
	}
	return false
}

// StrategyType is the type discriminator of CriteriaScheduleStrategy.
const StrategyType = "CriteriaScheduleStrategy"

// Activity is a single task or survey a schedule asks the participant to do.
type Activity struct {
	Label      string `json:"label"`
	TaskID     string `json:"taskId,omitempty"`
	SurveyGUID string `json:"surveyGuid,omitempty"`
}

// Schedule is the payload selected for a participant from a plan.
type Schedule struct {
	Label        string       `json:"label"`
	ScheduleType ScheduleType `json:"scheduleType"`
	CronTrigger  string       `json:"cronTrigger,omitempty"`
	Interval     string       `json:"interval,omitempty"` // ISO 8601 period
	Expires      string       `json:"expires,omitempty"`  // ISO 8601 period
	Activities   []Activity   `json:"activities"`
}

// ScheduleCriteria pairs a schedule with the Criteria that guards it.
type ScheduleCriteria struct {
	Schedule Schedule  `json:"schedule"`
	Criteria *Criteria `json:"criteria,omitempty"`
}

// CriteriaScheduleStrategy is an ordered list of guarded schedules. The
// first entry whose Criteria matches is delivered; order is priority.
type CriteriaScheduleStrategy struct {
	Type             string             `json:"type"`
	ScheduleCriteria []ScheduleCriteria `json:"scheduleCriteria"`
}

// SchedulePlan owns a CriteriaScheduleStrategy. Each entry's Criteria is
// stored under a key derived from the plan GUID and the entry's index.
type SchedulePlan struct {
	AppID      string                   `json:"appId"`
	GUID       string                   `json:"guid"`
	Label      string                   `json:"label"`
	Strategy   CriteriaScheduleStrategy `json:"strategy"`
	CreatedOn  time.Time                `json:"createdOn"`
	ModifiedOn time.Time                `json:"modifiedOn"`
	Deleted    bool                     `json:"deleted"`
	Version    int64                    `json:"version"`
}
