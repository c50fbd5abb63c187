package model

import (
	"maps"
	"slices"
)

// Criteria is a reusable eligibility rule: per-platform app version bounds,
// required and excluded data groups, required and excluded substudy
// memberships, and an optional language.
//
// Fields are unexported so the collection invariants hold: maps and sets are
// never nil when read, and setting any of them to nil resets it to empty.
// Sets are kept sorted and deduplicated. A Criteria is treated as an immutable
// snapshot once loaded; use Clone before modifying a shared value.
type Criteria struct {
	key               string
	language          string
	minAppVersions    map[OperatingSystem]int
	maxAppVersions    map[OperatingSystem]int
	allOfGroups       []string
	noneOfGroups      []string
	allOfSubstudyIDs  []string
	noneOfSubstudyIDs []string
}

// NewCriteria returns a Criteria with no constraints.
func NewCriteria() *Criteria {
	return &Criteria{}
}

// EmptyCriteria returns an unconstrained Criteria addressed by key. It is the
// value synthesized when no Criteria is stored for an owner.
func EmptyCriteria(key string) *Criteria {
	return &Criteria{key: key}
}

// Key returns the storage key. It is not part of the wire representation.
func (c *Criteria) Key() string { return c.key }

// SetKey sets the storage key.
func (c *Criteria) SetKey(key string) { c.key = key }

// Language returns the required language, or "" when unconstrained.
func (c *Criteria) Language() string { return c.language }

// SetLanguage sets the required language; "" removes the constraint.
func (c *Criteria) SetLanguage(lang string) { c.language = lang }

// MinAppVersion returns the inclusive lower bound for os, if any.
func (c *Criteria) MinAppVersion(os OperatingSystem) (int, bool) {
	v, ok := c.minAppVersions[os]
	return v, ok
}

// MaxAppVersion returns the inclusive upper bound for os, if any.
func (c *Criteria) MaxAppVersion(os OperatingSystem) (int, bool) {
	v, ok := c.maxAppVersions[os]
	return v, ok
}

// SetMinAppVersion sets the inclusive lower bound for os.
func (c *Criteria) SetMinAppVersion(os OperatingSystem, v int) {
	if c.minAppVersions == nil {
		c.minAppVersions = make(map[OperatingSystem]int)
	}
	c.minAppVersions[os] = v
}

// SetMaxAppVersion sets the inclusive upper bound for os.
func (c *Criteria) SetMaxAppVersion(os OperatingSystem, v int) {
	if c.maxAppVersions == nil {
		c.maxAppVersions = make(map[OperatingSystem]int)
	}
	c.maxAppVersions[os] = v
}

// ClearMinAppVersion removes the lower bound for os.
func (c *Criteria) ClearMinAppVersion(os OperatingSystem) { delete(c.minAppVersions, os) }

// ClearMaxAppVersion removes the upper bound for os.
func (c *Criteria) ClearMaxAppVersion(os OperatingSystem) { delete(c.maxAppVersions, os) }

// MinAppVersions returns a copy of the lower bounds keyed by platform. Never nil.
func (c *Criteria) MinAppVersions() map[OperatingSystem]int { return copyVersions(c.minAppVersions) }

// MaxAppVersions returns a copy of the upper bounds keyed by platform. Never nil.
func (c *Criteria) MaxAppVersions() map[OperatingSystem]int { return copyVersions(c.maxAppVersions) }

// SetMinAppVersions replaces all lower bounds. A nil map clears them.
func (c *Criteria) SetMinAppVersions(m map[OperatingSystem]int) { c.minAppVersions = copyVersions(m) }

// SetMaxAppVersions replaces all upper bounds. A nil map clears them.
func (c *Criteria) SetMaxAppVersions(m map[OperatingSystem]int) { c.maxAppVersions = copyVersions(m) }

// ApplyLegacyMinAppVersion applies the deprecated platform-less lower bound.
// It populates the DefaultOS entry only when that entry is absent, so an
// explicit per-platform value always wins.
func (c *Criteria) ApplyLegacyMinAppVersion(v int) {
	if _, ok := c.minAppVersions[DefaultOS]; !ok {
		c.SetMinAppVersion(DefaultOS, v)
	}
}

// ApplyLegacyMaxAppVersion is the upper-bound counterpart of ApplyLegacyMinAppVersion.
func (c *Criteria) ApplyLegacyMaxAppVersion(v int) {
	if _, ok := c.maxAppVersions[DefaultOS]; !ok {
		c.SetMaxAppVersion(DefaultOS, v)
	}
}

// AllOfGroups returns the data groups a client must have. Never nil.
func (c *Criteria) AllOfGroups() []string { return copySet(c.allOfGroups) }

// NoneOfGroups returns the data groups a client must not have. Never nil.
func (c *Criteria) NoneOfGroups() []string { return copySet(c.noneOfGroups) }

// AllOfSubstudyIDs returns the substudies a client must belong to. Never nil.
func (c *Criteria) AllOfSubstudyIDs() []string { return copySet(c.allOfSubstudyIDs) }

// NoneOfSubstudyIDs returns the substudies a client must not belong to. Never nil.
func (c *Criteria) NoneOfSubstudyIDs() []string { return copySet(c.noneOfSubstudyIDs) }

// SetAllOfGroups replaces the required data groups. Nil resets to empty.
func (c *Criteria) SetAllOfGroups(groups []string) { c.allOfGroups = normalizeSet(groups) }

// SetNoneOfGroups replaces the excluded data groups. Nil resets to empty.
func (c *Criteria) SetNoneOfGroups(groups []string) { c.noneOfGroups = normalizeSet(groups) }

// SetAllOfSubstudyIDs replaces the required substudies. Nil resets to empty.
func (c *Criteria) SetAllOfSubstudyIDs(ids []string) { c.allOfSubstudyIDs = normalizeSet(ids) }

// SetNoneOfSubstudyIDs replaces the excluded substudies. Nil resets to empty.
func (c *Criteria) SetNoneOfSubstudyIDs(ids []string) { c.noneOfSubstudyIDs = normalizeSet(ids) }

// HasAppVersionConstraints reports whether any platform has a version bound.
func (c *Criteria) HasAppVersionConstraints() bool {
	return len(c.minAppVersions) > 0 || len(c.maxAppVersions) > 0
}

// IsEmpty reports whether the Criteria constrains nothing.
func (c *Criteria) IsEmpty() bool {
	return c.language == "" &&
		!c.HasAppVersionConstraints() &&
		len(c.allOfGroups) == 0 && len(c.noneOfGroups) == 0 &&
		len(c.allOfSubstudyIDs) == 0 && len(c.noneOfSubstudyIDs) == 0
}

// Clone returns a deep copy, key included.
func (c *Criteria) Clone() *Criteria {
	return &Criteria{
		key:               c.key,
		language:          c.language,
		minAppVersions:    copyVersions(c.minAppVersions),
		maxAppVersions:    copyVersions(c.maxAppVersions),
		allOfGroups:       copySet(c.allOfGroups),
		noneOfGroups:      copySet(c.noneOfGroups),
		allOfSubstudyIDs:  copySet(c.allOfSubstudyIDs),
		noneOfSubstudyIDs: copySet(c.noneOfSubstudyIDs),
	}
}

// Equal reports whether two Criteria impose the same constraints. The storage
// key is ignored.
func (c *Criteria) Equal(other *Criteria) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.language == other.language &&
		maps.Equal(c.MinAppVersions(), other.MinAppVersions()) &&
		maps.Equal(c.MaxAppVersions(), other.MaxAppVersions()) &&
		slices.Equal(c.AllOfGroups(), other.AllOfGroups()) &&
		slices.Equal(c.NoneOfGroups(), other.NoneOfGroups()) &&
		slices.Equal(c.AllOfSubstudyIDs(), other.AllOfSubstudyIDs()) &&
		slices.Equal(c.NoneOfSubstudyIDs(), other.NoneOfSubstudyIDs())
}

// VersionedPlatforms returns, in sorted order, every platform that has a min
// or max bound.
func (c *Criteria) VersionedPlatforms() []OperatingSystem {
	seen := make(map[OperatingSystem]struct{}, len(c.minAppVersions)+len(c.maxAppVersions))
	for os := range c.minAppVersions {
		seen[os] = struct{}{}
	}
	for os := range c.maxAppVersions {
		seen[os] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

func copyVersions(m map[OperatingSystem]int) map[OperatingSystem]int {
	out := make(map[OperatingSystem]int, len(m))
	maps.Copy(out, m)
	return out
}

func copySet(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// normalizeSet returns a sorted, deduplicated copy without empty strings.
func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
