package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// maxLine bounds a single JSONL record.
const maxLine = 16 << 20

// ImportStats counts what ImportJSONL wrote.
type ImportStats struct {
	Criteria      int `json:"criteria"`       // criteria rows written
	OwnersCreated int `json:"owners_created"` // owners that did not exist yet
	OwnersSkipped int `json:"owners_skipped"` // owners already present, left untouched
}

// ImportJSONL restores an export produced by ExportJSONL. The input is
// read and checked in full first, so a malformed line or unknown record
// type writes nothing. Owners are then created in one transaction; owners
// that already exist are skipped, so re-importing the same file is
// harmless. Criteria are written last, with full-replace semantics.
func ImportJSONL(ctx context.Context, owners store.Store, cs store.CriteriaStore, r io.Reader) (ImportStats, error) {
	var stats ImportStats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return stats, fmt.Errorf("read header: %w", err)
		}
		return stats, errors.New("import: empty input")
	}
	var h header
	if err := json.Unmarshal(sc.Bytes(), &h); err != nil {
		return stats, fmt.Errorf("decode header: %w", err)
	}
	if h.Type != TypeHeader || h.Version != FormatVersion {
		return stats, fmt.Errorf("import: unsupported header type=%q version=%q", h.Type, h.Version)
	}

	var (
		pending []rawRecord
		entries []criteriaEntry
	)
	line := 1
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var rec rawRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			return stats, fmt.Errorf("decode line %d: %w", line, err)
		}
		switch rec.Type {
		case TypeCriteria:
			var entry criteriaEntry
			if err := json.Unmarshal(rec.Data, &entry); err != nil {
				return stats, fmt.Errorf("line %d: %w", line, err)
			}
			if entry.Key == "" || entry.Criteria == nil {
				return stats, fmt.Errorf("line %d: criteria record needs key and criteria", line)
			}
			entry.Criteria.SetKey(entry.Key)
			entries = append(entries, entry)
		case TypeAppConfig, TypeSubpopulation, TypeNotificationTopic, TypeSchedulePlan:
			rec.line = line
			pending = append(pending, rec)
		default:
			return stats, fmt.Errorf("line %d: unknown record type %q", line, rec.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read line %d: %w", line+1, err)
	}

	// Nothing is written until the whole input has been read and the
	// owners are committed.
	err := owners.RunInTransaction(ctx, func(tx store.Store) error {
		created, skipped := 0, 0
		for _, rec := range pending {
			ok, err := importOwner(ctx, tx, rec)
			if err != nil {
				return fmt.Errorf("line %d: %w", rec.line, err)
			}
			if ok {
				created++
			} else {
				skipped++
			}
		}
		stats.OwnersCreated, stats.OwnersSkipped = created, skipped
		return nil
	})
	if err != nil {
		return stats, err
	}

	for _, entry := range entries {
		if err := cs.PutCriteria(ctx, entry.Criteria); err != nil {
			return stats, fmt.Errorf("put criteria %s: %w", entry.Key, err)
		}
		stats.Criteria++
	}
	return stats, nil
}

type rawRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	line int
}

// importOwner creates the owner in rec unless it already exists. It
// reports whether it created it.
func importOwner(ctx context.Context, tx store.Store, rec rawRecord) (bool, error) {
	switch rec.Type {
	case TypeAppConfig:
		var ac model.AppConfig
		if err := json.Unmarshal(rec.Data, &ac); err != nil {
			return false, fmt.Errorf("decode app config: %w", err)
		}
		return createIfMissing(ac.AppID, ac.GUID,
			func() error { _, err := tx.GetAppConfig(ctx, ac.AppID, ac.GUID); return err },
			func() error { return tx.CreateAppConfig(ctx, &ac) })
	case TypeSubpopulation:
		var sp model.Subpopulation
		if err := json.Unmarshal(rec.Data, &sp); err != nil {
			return false, fmt.Errorf("decode subpopulation: %w", err)
		}
		return createIfMissing(sp.AppID, sp.GUID,
			func() error { _, err := tx.GetSubpopulation(ctx, sp.AppID, sp.GUID); return err },
			func() error { return tx.CreateSubpopulation(ctx, &sp) })
	case TypeNotificationTopic:
		var nt model.NotificationTopic
		if err := json.Unmarshal(rec.Data, &nt); err != nil {
			return false, fmt.Errorf("decode notification topic: %w", err)
		}
		return createIfMissing(nt.AppID, nt.GUID,
			func() error { _, err := tx.GetNotificationTopic(ctx, nt.AppID, nt.GUID); return err },
			func() error { return tx.CreateNotificationTopic(ctx, &nt) })
	case TypeSchedulePlan:
		var sp model.SchedulePlan
		if err := json.Unmarshal(rec.Data, &sp); err != nil {
			return false, fmt.Errorf("decode schedule plan: %w", err)
		}
		return createIfMissing(sp.AppID, sp.GUID,
			func() error { _, err := tx.GetSchedulePlan(ctx, sp.AppID, sp.GUID); return err },
			func() error { return tx.CreateSchedulePlan(ctx, &sp) })
	}
	return false, fmt.Errorf("unknown record type %q", rec.Type)
}

func createIfMissing(appID, guid string, get, create func() error) (bool, error) {
	if appID == "" || guid == "" {
		return false, errors.New("owner is missing appId or guid")
	}
	err := get()
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if err := create(); err != nil {
		return false, err
	}
	return true, nil
}
