package idgen

import (
	"regexp"
	"testing"
)

func TestNew_Shape(t *testing.T) {
	for _, prefix := range []string{PrefixAppConfig, PrefixSubpopulation, PrefixNotificationTopic, PrefixSchedulePlan, ""} {
		id, err := New(prefix)
		if err != nil {
			t.Fatalf("New(%q) error: %v", prefix, err)
		}
		if len(id) != len(prefix)+Length {
			t.Errorf("New(%q) length = %d, want %d (id=%q)", prefix, len(id), len(prefix)+Length, id)
		}
		pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `[a-z0-9]+$`)
		if !pattern.MatchString(id) {
			t.Errorf("New(%q) = %q, does not match expected charset pattern", prefix, id)
		}
	}
}

func TestNew_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := New(PrefixAppConfig)
		if err != nil {
			t.Fatalf("New() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate ID after %d generations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}
