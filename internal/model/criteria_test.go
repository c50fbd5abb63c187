package model

import (
	"slices"
	"testing"
)

func TestCriteria_SetsNormalized(t *testing.T) {
	c := NewCriteria()
	c.SetAllOfGroups([]string{"b", "a", "b", ""})
	got := c.AllOfGroups()
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("AllOfGroups = %v, want [a b]", got)
	}

	c.SetAllOfGroups(nil)
	if got := c.AllOfGroups(); got == nil || len(got) != 0 {
		t.Errorf("nil set should read back as empty non-nil slice, got %#v", got)
	}
}

func TestCriteria_GettersNeverNil(t *testing.T) {
	c := NewCriteria()
	if c.MinAppVersions() == nil || c.MaxAppVersions() == nil {
		t.Error("version maps should never be nil")
	}
	for name, s := range map[string][]string{
		"allOfGroups":       c.AllOfGroups(),
		"noneOfGroups":      c.NoneOfGroups(),
		"allOfSubstudyIds":  c.AllOfSubstudyIDs(),
		"noneOfSubstudyIds": c.NoneOfSubstudyIDs(),
	} {
		if s == nil {
			t.Errorf("%s should never be nil", name)
		}
	}

	c.SetMinAppVersion(IOS, 3)
	c.SetMinAppVersions(nil)
	if m := c.MinAppVersions(); m == nil || len(m) != 0 {
		t.Errorf("SetMinAppVersions(nil) should reset to empty, got %v", m)
	}
}

func TestCriteria_GettersReturnCopies(t *testing.T) {
	c := NewCriteria()
	c.SetNoneOfGroups([]string{"x"})
	c.SetMaxAppVersion(Android, 9)

	groups := c.NoneOfGroups()
	groups[0] = "mutated"
	versions := c.MaxAppVersions()
	versions[Android] = 100

	if c.NoneOfGroups()[0] != "x" {
		t.Error("mutating the returned set changed the criteria")
	}
	if v, _ := c.MaxAppVersion(Android); v != 9 {
		t.Errorf("mutating the returned map changed the criteria, got %d", v)
	}
}

func TestCriteria_LegacyVersionPrecedence(t *testing.T) {
	c := NewCriteria()
	c.SetMinAppVersion(IOS, 5)
	c.ApplyLegacyMinAppVersion(2)
	if v, _ := c.MinAppVersion(IOS); v != 5 {
		t.Errorf("explicit per-platform min should win, got %d", v)
	}

	c.ApplyLegacyMaxAppVersion(8)
	if v, ok := c.MaxAppVersion(DefaultOS); !ok || v != 8 {
		t.Errorf("legacy max should fill the default platform, got %d, %v", v, ok)
	}
	if _, ok := c.MaxAppVersion(Android); ok {
		t.Error("legacy max should not touch other platforms")
	}
}

func TestCriteria_ClearAppVersion(t *testing.T) {
	c := NewCriteria()
	c.SetMinAppVersion(Android, 1)
	c.SetMaxAppVersion(Android, 4)
	c.ClearMinAppVersion(Android)
	if _, ok := c.MinAppVersion(Android); ok {
		t.Error("min bound should be cleared")
	}
	if !c.HasAppVersionConstraints() {
		t.Error("max bound should remain")
	}
	c.ClearMaxAppVersion(Android)
	if c.HasAppVersionConstraints() {
		t.Error("no bounds should remain")
	}
}

func TestCriteria_IsEmpty(t *testing.T) {
	if !EmptyCriteria("appconfig:x").IsEmpty() {
		t.Error("EmptyCriteria should be empty")
	}
	for _, tc := range []struct {
		name  string
		setup func(c *Criteria)
	}{
		{"language", func(c *Criteria) { c.SetLanguage("en") }},
		{"min", func(c *Criteria) { c.SetMinAppVersion(IOS, 1) }},
		{"max", func(c *Criteria) { c.SetMaxAppVersion(IOS, 1) }},
		{"allOfGroups", func(c *Criteria) { c.SetAllOfGroups([]string{"a"}) }},
		{"noneOfGroups", func(c *Criteria) { c.SetNoneOfGroups([]string{"a"}) }},
		{"allOfSubstudyIds", func(c *Criteria) { c.SetAllOfSubstudyIDs([]string{"a"}) }},
		{"noneOfSubstudyIds", func(c *Criteria) { c.SetNoneOfSubstudyIDs([]string{"a"}) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCriteria()
			tc.setup(c)
			if c.IsEmpty() {
				t.Error("expected non-empty criteria")
			}
		})
	}
}

func TestCriteria_CloneIsIndependent(t *testing.T) {
	c := EmptyCriteria("subpopulation:abc")
	c.SetAllOfGroups([]string{"a"})
	c.SetMinAppVersion(IOS, 2)

	clone := c.Clone()
	if clone.Key() != "subpopulation:abc" {
		t.Errorf("clone key = %q", clone.Key())
	}
	if !clone.Equal(c) {
		t.Fatal("clone should equal original")
	}
	clone.SetAllOfGroups([]string{"b"})
	clone.SetMinAppVersion(IOS, 9)
	if c.AllOfGroups()[0] != "a" {
		t.Error("modifying clone changed original groups")
	}
	if v, _ := c.MinAppVersion(IOS); v != 2 {
		t.Error("modifying clone changed original versions")
	}
}

func TestCriteria_EqualIgnoresKey(t *testing.T) {
	a := EmptyCriteria("appconfig:1")
	b := EmptyCriteria("appconfig:2")
	a.SetLanguage("fr")
	b.SetLanguage("fr")
	if !a.Equal(b) {
		t.Error("criteria differing only by key should be equal")
	}
	b.SetNoneOfSubstudyIDs([]string{"s"})
	if a.Equal(b) {
		t.Error("criteria with different substudies should not be equal")
	}

	var nilC *Criteria
	if !nilC.Equal(nil) {
		t.Error("nil should equal nil")
	}
	if a.Equal(nil) {
		t.Error("non-nil should not equal nil")
	}
}

func TestCriteria_VersionedPlatforms(t *testing.T) {
	c := NewCriteria()
	c.SetMaxAppVersion(IOS, 3)
	c.SetMinAppVersion(Android, 1)
	c.SetMaxAppVersion(Android, 2)
	got := c.VersionedPlatforms()
	want := []OperatingSystem{Android, IOS}
	if !slices.Equal(got, want) {
		t.Errorf("VersionedPlatforms = %v, want %v", got, want)
	}
}

func TestParseOperatingSystem(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want OperatingSystem
		ok   bool
	}{
		{"iPhone OS", IOS, true},
		{"ios", IOS, true},
		{" iPadOS ", IOS, true},
		{"Android", Android, true},
		{"ANDROID", Android, true},
		{"Windows", "", false},
		{"", "", false},
	} {
		got, ok := ParseOperatingSystem(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseOperatingSystem(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if OperatingSystem("Symbian").IsValid() {
		t.Error("unknown platform should not be valid")
	}
}
