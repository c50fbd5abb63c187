package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/eligibility/internal/criteria"
	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/ui"
)

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// summarize renders c on one line, e.g.
// "Android >=7 iPhone OS 4-12 groups:+beta,-control lang:fr".
func summarize(c *model.Criteria) string {
	if c == nil || c.IsEmpty() {
		return "(any client)"
	}
	var parts []string
	mins, maxes := c.MinAppVersions(), c.MaxAppVersions()
	for _, p := range c.VersionedPlatforms() {
		lo, hasLo := mins[p]
		hi, hasHi := maxes[p]
		switch {
		case hasLo && hasHi:
			parts = append(parts, fmt.Sprintf("%s %d-%d", p, lo, hi))
		case hasLo:
			parts = append(parts, fmt.Sprintf("%s >=%d", p, lo))
		case hasHi:
			parts = append(parts, fmt.Sprintf("%s <=%d", p, hi))
		}
	}
	if s := signedSet(c.AllOfGroups(), c.NoneOfGroups()); s != "" {
		parts = append(parts, "groups:"+s)
	}
	if s := signedSet(c.AllOfSubstudyIDs(), c.NoneOfSubstudyIDs()); s != "" {
		parts = append(parts, "substudies:"+s)
	}
	if c.Language() != "" {
		parts = append(parts, "lang:"+c.Language())
	}
	return strings.Join(parts, " ")
}

func signedSet(allOf, noneOf []string) string {
	items := make([]string, 0, len(allOf)+len(noneOf))
	for _, s := range allOf {
		items = append(items, "+"+s)
	}
	for _, s := range noneOf {
		items = append(items, "-"+s)
	}
	return strings.Join(items, ",")
}

func printCriteria(w io.Writer, c *model.Criteria) {
	fmt.Fprintf(w, "Key:          %s\n", ui.RenderAccent(c.Key()))
	if c.IsEmpty() {
		fmt.Fprintf(w, "Matches:      %s\n", ui.RenderMuted("any client"))
		return
	}
	mins, maxes := c.MinAppVersions(), c.MaxAppVersions()
	for _, p := range c.VersionedPlatforms() {
		bounds := make([]string, 0, 2)
		if v, ok := mins[p]; ok {
			bounds = append(bounds, fmt.Sprintf("min %d", v))
		}
		if v, ok := maxes[p]; ok {
			bounds = append(bounds, fmt.Sprintf("max %d", v))
		}
		fmt.Fprintf(w, "%-14s%s\n", p.String()+":", strings.Join(bounds, ", "))
	}
	printSet(w, "All of groups", c.AllOfGroups())
	printSet(w, "None of groups", c.NoneOfGroups())
	printSet(w, "All of substudies", c.AllOfSubstudyIDs())
	printSet(w, "None of substudies", c.NoneOfSubstudyIDs())
	if c.Language() != "" {
		fmt.Fprintf(w, "Language:     %s\n", c.Language())
	}
}

func printSet(w io.Writer, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(w, "%s: %s\n", label, strings.Join(items, ", "))
	}
}

func printCriteriaList(w io.Writer, list []*model.Criteria) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No criteria found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCRITERIA")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\n", c.Key(), summarize(c))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d criteria\n", len(list))
}

func printMismatches(w io.Writer, mismatches []criteria.Mismatch) {
	for _, m := range mismatches {
		fmt.Fprintf(w, "  %s %s\n", ui.RenderMiss(string(m.Check)+":"), m.Detail)
	}
}

func printResolution(w io.Writer, r *resolution) {
	fmt.Fprintf(w, "App:            %s\n", r.AppID)
	if r.AppConfig != nil {
		fmt.Fprintf(w, "App config:     %s (%s)\n", r.AppConfig.Label, ui.RenderAccent(r.AppConfig.GUID))
	} else {
		fmt.Fprintf(w, "App config:     %s\n", ui.RenderMuted("none"))
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tGUID\tNAME\tDETAIL")
	for _, sp := range r.Subpopulations {
		detail := "optional"
		if sp.Required {
			detail = "required"
		}
		fmt.Fprintf(tw, "subpopulation\t%s\t%s\t%s\n", sp.GUID, sp.Name, detail)
	}
	for _, nt := range r.Topics {
		fmt.Fprintf(tw, "topic\t%s\t%s\t%s\n", nt.GUID, nt.Name, nt.ShortName)
	}
	for _, ps := range r.Schedules {
		fmt.Fprintf(tw, "schedule\t%s\t%s\t%s\n", ps.PlanGUID, ps.Schedule.Label, ps.Schedule.ScheduleType)
	}
	tw.Flush()
}

// eventView is the union of the event payloads, enough to print any of them.
type eventView struct {
	Kind    string `json:"kind"`
	Action  string `json:"action"`
	AppID   string `json:"app_id"`
	GUID    string `json:"guid"`
	Version int64  `json:"version"`

	Key      string          `json:"key"`
	Criteria json.RawMessage `json:"criteria"`
}

// formatEvent renders one event payload for the terminal. Payloads that do
// not decode are returned verbatim.
func formatEvent(data []byte) string {
	var ev eventView
	if err := json.Unmarshal(data, &ev); err != nil {
		return string(data)
	}
	switch {
	case ev.Kind != "":
		s := fmt.Sprintf("%s %s %s/%s", ui.RenderAccent(ev.Kind), ev.Action, ev.AppID, ev.GUID)
		if ev.Version > 0 {
			s += fmt.Sprintf(" v%d", ev.Version)
		}
		return s
	case ev.Key != "" && ev.Criteria != nil:
		return fmt.Sprintf("%s saved %s", ui.RenderAccent("criteria"), ev.Key)
	case ev.Key != "":
		return fmt.Sprintf("%s purged %s", ui.RenderAccent("criteria"), ev.Key)
	}
	return string(data)
}
