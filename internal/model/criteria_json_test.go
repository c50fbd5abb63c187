package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCriteriaJSON_EmptyShape(t *testing.T) {
	data, err := json.Marshal(NewCriteria())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"minAppVersions":{},"maxAppVersions":{},"allOfGroups":[],"noneOfGroups":[],"allOfSubstudyIds":[],"noneOfSubstudyIds":[],"type":"Criteria"}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}
}

func TestCriteriaJSON_KeyNeverEmitted(t *testing.T) {
	c := EmptyCriteria("appconfig:secret-guid")
	c.SetLanguage("en")
	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret-guid") || strings.Contains(string(data), `"key"`) {
		t.Errorf("key leaked into wire format: %s", data)
	}
	if !strings.Contains(string(data), `"language":"en"`) {
		t.Errorf("language missing: %s", data)
	}
}

func TestCriteriaJSON_RoundTrip(t *testing.T) {
	c := NewCriteria()
	c.SetLanguage("de")
	c.SetMinAppVersion(IOS, 2)
	c.SetMaxAppVersion(Android, 40)
	c.SetAllOfGroups([]string{"study", "beta"})
	c.SetNoneOfSubstudyIDs([]string{"pilot"})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Criteria
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Equal(c) {
		t.Errorf("round trip mismatch: %s", data)
	}
}

func TestCriteriaJSON_LegacyFields(t *testing.T) {
	for _, tc := range []struct {
		name    string
		in      string
		wantMin int
		wantMax int
	}{
		{
			name:    "legacy only",
			in:      `{"minAppVersion":2,"maxAppVersion":8}`,
			wantMin: 2,
			wantMax: 8,
		},
		{
			name:    "explicit wins over legacy",
			in:      `{"minAppVersion":2,"minAppVersions":{"iPhone OS":5},"maxAppVersion":8}`,
			wantMin: 5,
			wantMax: 8,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var c Criteria
			if err := json.Unmarshal([]byte(tc.in), &c); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if v, ok := c.MinAppVersion(IOS); !ok || v != tc.wantMin {
				t.Errorf("min = %d, %v; want %d", v, ok, tc.wantMin)
			}
			if v, ok := c.MaxAppVersion(IOS); !ok || v != tc.wantMax {
				t.Errorf("max = %d, %v; want %d", v, ok, tc.wantMax)
			}
		})
	}
}

func TestCriteriaJSON_LegacyEqualsModern(t *testing.T) {
	var legacy, modern Criteria
	if err := json.Unmarshal([]byte(`{"minAppVersion":3,"allOfGroups":["a"]}`), &legacy); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"minAppVersions":{"iPhone OS":3},"allOfGroups":["a"],"type":"Criteria"}`), &modern); err != nil {
		t.Fatal(err)
	}
	if !legacy.Equal(&modern) {
		t.Error("legacy and modern encodings should decode to equal criteria")
	}
}

func TestCriteriaJSON_DecodePreservesKey(t *testing.T) {
	c := EmptyCriteria("topic:t1")
	if err := json.Unmarshal([]byte(`{"allOfGroups":["x","x"]}`), c); err != nil {
		t.Fatal(err)
	}
	if c.Key() != "topic:t1" {
		t.Errorf("key = %q, want topic:t1", c.Key())
	}
	if got := c.AllOfGroups(); len(got) != 1 {
		t.Errorf("decoded set should be deduplicated, got %v", got)
	}
}

func TestCriteriaJSON_MalformedInput(t *testing.T) {
	var c Criteria
	err := json.Unmarshal([]byte(`{"allOfGroups":"nope"}`), &c)
	if err == nil {
		t.Fatal("expected error for wrong field type")
	}
	if !strings.Contains(err.Error(), "decode criteria") {
		t.Errorf("error should be wrapped, got %v", err)
	}
}

func TestCriteriaJSON_EmbeddedInOwner(t *testing.T) {
	in := `{"appId":"api","guid":"g1","label":"L","criteria":{"noneOfGroups":["test_user"]},"version":2}`
	var ac AppConfig
	if err := json.Unmarshal([]byte(in), &ac); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ac.Criteria == nil {
		t.Fatal("criteria should be decoded")
	}
	if got := ac.Criteria.NoneOfGroups(); len(got) != 1 || got[0] != "test_user" {
		t.Errorf("noneOfGroups = %v", got)
	}
}
