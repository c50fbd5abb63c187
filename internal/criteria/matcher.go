// Package criteria evaluates Criteria against a client context, selects among
// ordered Criteria-guarded candidates, and keeps Criteria in step with the
// records that own them.
package criteria

import (
	"fmt"
	"slices"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

// Check identifies one step of the matching algorithm.
type Check string

const (
	CheckAppVersion        Check = "appVersion"
	CheckAllOfGroups       Check = "allOfGroups"
	CheckNoneOfGroups      Check = "noneOfGroups"
	CheckAllOfSubstudyIDs  Check = "allOfSubstudyIds"
	CheckNoneOfSubstudyIDs Check = "noneOfSubstudyIds"
	CheckLanguage          Check = "language"
)

// Mismatch describes a failed check.
type Mismatch struct {
	Check  Check  `json:"check"`
	Detail string `json:"detail"`
}

func (m Mismatch) String() string {
	return string(m.Check) + ": " + m.Detail
}

// Matches reports whether c accepts cc. A nil Criteria accepts every context.
// Checks run in order and stop at the first failure.
func Matches(c *model.Criteria, cc model.ClientContext) bool {
	if c == nil {
		return true
	}
	for _, check := range checks {
		if _, ok := check(c, cc); !ok {
			return false
		}
	}
	return true
}

// Explain runs every check and returns the ones that failed, in check order.
// The result is empty exactly when Matches returns true.
func Explain(c *model.Criteria, cc model.ClientContext) []Mismatch {
	if c == nil {
		return nil
	}
	var out []Mismatch
	for _, check := range checks {
		if m, ok := check(c, cc); !ok {
			out = append(out, m)
		}
	}
	return out
}

type checkFunc func(c *model.Criteria, cc model.ClientContext) (Mismatch, bool)

var checks = []checkFunc{
	checkAppVersion,
	checkAllOfGroups,
	checkNoneOfGroups,
	checkAllOfSubstudies,
	checkNoneOfSubstudies,
	checkLanguage,
}

// checkAppVersion applies the bounds for the context's platform. A context
// without a recognized platform and version fails whenever any bound exists.
func checkAppVersion(c *model.Criteria, cc model.ClientContext) (Mismatch, bool) {
	if !c.HasAppVersionConstraints() {
		return Mismatch{}, true
	}
	if !cc.HasUsableVersion() {
		return Mismatch{CheckAppVersion, "client platform or app version unknown"}, false
	}
	v := *cc.AppVersion
	if minV, ok := c.MinAppVersion(cc.OS); ok && v < minV {
		return Mismatch{CheckAppVersion, fmt.Sprintf("%s version %d is below minimum %d", cc.OS, v, minV)}, false
	}
	if maxV, ok := c.MaxAppVersion(cc.OS); ok && v > maxV {
		return Mismatch{CheckAppVersion, fmt.Sprintf("%s version %d is above maximum %d", cc.OS, v, maxV)}, false
	}
	return Mismatch{}, true
}

func checkAllOfGroups(c *model.Criteria, cc model.ClientContext) (Mismatch, bool) {
	if missing := missingFrom(c.AllOfGroups(), cc.DataGroups); len(missing) > 0 {
		return Mismatch{CheckAllOfGroups, fmt.Sprintf("missing data groups %v", missing)}, false
	}
	return Mismatch{}, true
}

func checkNoneOfGroups(c *model.Criteria, cc model.ClientContext) (Mismatch, bool) {
	if present := presentIn(c.NoneOfGroups(), cc.DataGroups); len(present) > 0 {
		return Mismatch{CheckNoneOfGroups, fmt.Sprintf("has excluded data groups %v", present)}, false
	}
	return Mismatch{}, true
}

func checkAllOfSubstudies(c *model.Criteria, cc model.ClientContext) (Mismatch, bool) {
	if missing := missingFrom(c.AllOfSubstudyIDs(), cc.SubstudyIDs); len(missing) > 0 {
		return Mismatch{CheckAllOfSubstudyIDs, fmt.Sprintf("not in substudies %v", missing)}, false
	}
	return Mismatch{}, true
}

func checkNoneOfSubstudies(c *model.Criteria, cc model.ClientContext) (Mismatch, bool) {
	if present := presentIn(c.NoneOfSubstudyIDs(), cc.SubstudyIDs); len(present) > 0 {
		return Mismatch{CheckNoneOfSubstudyIDs, fmt.Sprintf("in excluded substudies %v", present)}, false
	}
	return Mismatch{}, true
}

// checkLanguage passes when any acceptable language shares the required
// language's base tag, ignoring case.
func checkLanguage(c *model.Criteria, cc model.ClientContext) (Mismatch, bool) {
	want := model.BaseLanguage(c.Language())
	if want == "" {
		return Mismatch{}, true
	}
	for _, lang := range cc.Languages {
		if model.BaseLanguage(lang) == want {
			return Mismatch{}, true
		}
	}
	return Mismatch{CheckLanguage, fmt.Sprintf("language %q not in %v", c.Language(), cc.Languages)}, false
}

// missingFrom returns the members of required that are not in have.
func missingFrom(required, have []string) []string {
	var out []string
	for _, r := range required {
		if !slices.Contains(have, r) {
			out = append(out, r)
		}
	}
	return out
}

// presentIn returns the members of excluded that appear in have.
func presentIn(excluded, have []string) []string {
	var out []string
	for _, e := range excluded {
		if slices.Contains(have, e) {
			out = append(out, e)
		}
	}
	return out
}
