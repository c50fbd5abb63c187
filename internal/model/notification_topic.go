package model

import "time"

// NotificationTopic is a push-notification topic. When it carries Criteria,
// matching participants are subscribed to it automatically.
type NotificationTopic struct {
	AppID       string    `json:"appId"`
	GUID        string    `json:"guid"`
	Name        string    `json:"name"`
	ShortName   string    `json:"shortName,omitempty"`
	Description string    `json:"description,omitempty"`
	Criteria    *Criteria `json:"criteria,omitempty"`
	CreatedOn   time.Time `json:"createdOn"`
	ModifiedOn  time.Time `json:"modifiedOn"`
	Deleted     bool      `json:"deleted"`
	Version     int64     `json:"version"`
}
