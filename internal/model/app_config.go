package model

import (
	"encoding/json"
	"time"
)

// AppConfig is a block of client configuration delivered to the first
// matching client. Its Criteria is stored separately, keyed by GUID.
type AppConfig struct {
	AppID      string          `json:"appId"`
	GUID       string          `json:"guid"`
	Label      string          `json:"label"`
	ClientData json.RawMessage `json:"clientData,omitempty"`
	Criteria   *Criteria       `json:"criteria,omitempty"`
	CreatedOn  time.Time       `json:"createdOn"`
	ModifiedOn time.Time       `json:"modifiedOn"`
	Deleted    bool            `json:"deleted"`
	Version    int64           `json:"version"`
}
