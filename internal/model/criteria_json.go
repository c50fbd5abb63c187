package model

import (
	"encoding/json"
	"fmt"
)

// CriteriaType is the fixed type discriminator emitted in the wire format.
const CriteriaType = "Criteria"

// criteriaWire is the JSON shape of a Criteria. The storage key is never
// part of it.
type criteriaWire struct {
	Language          string                  `json:"language,omitempty"`
	MinAppVersions    map[OperatingSystem]int `json:"minAppVersions"`
	MaxAppVersions    map[OperatingSystem]int `json:"maxAppVersions"`
	AllOfGroups       []string                `json:"allOfGroups"`
	NoneOfGroups      []string                `json:"noneOfGroups"`
	AllOfSubstudyIDs  []string                `json:"allOfSubstudyIds"`
	NoneOfSubstudyIDs []string                `json:"noneOfSubstudyIds"`
	Type              string                  `json:"type"`
}

// criteriaInput accepts both the current maps and the deprecated
// platform-less version fields.
type criteriaInput struct {
	Language          string                  `json:"language"`
	MinAppVersions    map[OperatingSystem]int `json:"minAppVersions"`
	MaxAppVersions    map[OperatingSystem]int `json:"maxAppVersions"`
	MinAppVersion     *int                    `json:"minAppVersion"`
	MaxAppVersion     *int                    `json:"maxAppVersion"`
	AllOfGroups       []string                `json:"allOfGroups"`
	NoneOfGroups      []string                `json:"noneOfGroups"`
	AllOfSubstudyIDs  []string                `json:"allOfSubstudyIds"`
	NoneOfSubstudyIDs []string                `json:"noneOfSubstudyIds"`
}

// MarshalJSON encodes the Criteria in its wire format.
func (c *Criteria) MarshalJSON() ([]byte, error) {
	return json.Marshal(criteriaWire{
		Language:          c.language,
		MinAppVersions:    c.MinAppVersions(),
		MaxAppVersions:    c.MaxAppVersions(),
		AllOfGroups:       c.AllOfGroups(),
		NoneOfGroups:      c.NoneOfGroups(),
		AllOfSubstudyIDs:  c.AllOfSubstudyIDs(),
		NoneOfSubstudyIDs: c.NoneOfSubstudyIDs(),
		Type:              CriteriaType,
	})
}

// UnmarshalJSON decodes either wire variant. Explicit per-platform bounds are
// applied first; the legacy minAppVersion/maxAppVersion values then fill the
// DefaultOS slot only where it is still empty. The key is left untouched.
func (c *Criteria) UnmarshalJSON(data []byte) error {
	var in criteriaInput
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode criteria: %w", err)
	}

	decoded := Criteria{key: c.key, language: in.Language}
	decoded.SetMinAppVersions(in.MinAppVersions)
	decoded.SetMaxAppVersions(in.MaxAppVersions)
	if in.MinAppVersion != nil {
		decoded.ApplyLegacyMinAppVersion(*in.MinAppVersion)
	}
	if in.MaxAppVersion != nil {
		decoded.ApplyLegacyMaxAppVersion(*in.MaxAppVersion)
	}
	decoded.SetAllOfGroups(in.AllOfGroups)
	decoded.SetNoneOfGroups(in.NoneOfGroups)
	decoded.SetAllOfSubstudyIDs(in.AllOfSubstudyIDs)
	decoded.SetNoneOfSubstudyIDs(in.NoneOfSubstudyIDs)

	*c = decoded
	return nil
}
