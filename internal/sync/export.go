package sync

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// FormatVersion is written in the header of every export.
const FormatVersion = "1"

// Record types, one per JSONL line after the header.
const (
	TypeHeader            = "header"
	TypeCriteria          = "criteria"
	TypeAppConfig         = "appconfig"
	TypeSubpopulation     = "subpopulation"
	TypeNotificationTopic = "notificationtopic"
	TypeSchedulePlan      = "scheduleplan"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	Apps          []string  `json:"apps"`
	CriteriaCount int       `json:"criteria_count"`
	OwnerCount    int       `json:"owner_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// criteriaEntry carries the storage key next to the wire form, which never
// includes it.
type criteriaEntry struct {
	Key      string          `json:"key"`
	Criteria *model.Criteria `json:"criteria"`
}

// ExportJSONL writes every stored Criteria, sorted by key, followed by the
// owners of each app in apps (logically deleted ones included) as JSONL
// to w. Owners are written without their Criteria.
func ExportJSONL(ctx context.Context, owners store.Store, cs store.CriteriaStore, apps []string, w io.Writer) error {
	all, err := cs.ListCriteria(ctx, "")
	if err != nil {
		return fmt.Errorf("list criteria: %w", err)
	}
	slices.SortFunc(all, func(a, b *model.Criteria) int { return cmp.Compare(a.Key(), b.Key()) })

	apps = slices.Sorted(slices.Values(apps))
	apps = slices.Compact(apps)
	var records []record
	for _, appID := range apps {
		recs, err := ownerRecords(ctx, owners, appID)
		if err != nil {
			return err
		}
		records = append(records, recs...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       FormatVersion,
		Type:          TypeHeader,
		Timestamp:     time.Now().UTC(),
		Apps:          apps,
		CriteriaCount: len(all),
		OwnerCount:    len(records),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range all {
		if err := enc.Encode(record{Type: TypeCriteria, Data: criteriaEntry{Key: c.Key(), Criteria: c}}); err != nil {
			return fmt.Errorf("encode criteria %s: %w", c.Key(), err)
		}
	}
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %s: %w", rec.Type, err)
		}
	}
	return nil
}

// ownerRecords lists every owner of an app, each kind in creation order.
func ownerRecords(ctx context.Context, s store.Store, appID string) ([]record, error) {
	var out []record

	configs, err := s.ListAppConfigs(ctx, appID, true)
	if err != nil {
		return nil, fmt.Errorf("list app configs for %s: %w", appID, err)
	}
	for _, ac := range configs {
		out = append(out, record{Type: TypeAppConfig, Data: ac})
	}

	subpops, err := s.ListSubpopulations(ctx, appID, true)
	if err != nil {
		return nil, fmt.Errorf("list subpopulations for %s: %w", appID, err)
	}
	for _, sp := range subpops {
		out = append(out, record{Type: TypeSubpopulation, Data: sp})
	}

	topics, err := s.ListNotificationTopics(ctx, appID, true)
	if err != nil {
		return nil, fmt.Errorf("list notification topics for %s: %w", appID, err)
	}
	for _, nt := range topics {
		out = append(out, record{Type: TypeNotificationTopic, Data: nt})
	}

	plans, err := s.ListSchedulePlans(ctx, appID, true)
	if err != nil {
		return nil, fmt.Errorf("list schedule plans for %s: %w", appID, err)
	}
	for _, sp := range plans {
		out = append(out, record{Type: TypeSchedulePlan, Data: sp})
	}
	return out, nil
}
