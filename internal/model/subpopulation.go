package model

import "time"

// Subpopulation is a consent group. Participants whose context matches its
// Criteria are asked to sign its consent document.
type Subpopulation struct {
	AppID        string `json:"appId"`
	GUID         string `json:"guid"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Required     bool   `json:"required"`
	DefaultGroup bool   `json:"defaultGroup"`

	// DataGroupsAssignedWhileConsented are added to a participant while
	// they are consented to this subpopulation.
	DataGroupsAssignedWhileConsented []string `json:"dataGroupsAssignedWhileConsented,omitempty"`

	Criteria   *Criteria `json:"criteria,omitempty"`
	CreatedOn  time.Time `json:"createdOn"`
	ModifiedOn time.Time `json:"modifiedOn"`
	Deleted    bool      `json:"deleted"`
	Version    int64     `json:"version"`
}
