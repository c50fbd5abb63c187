package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanCriteria scans a single row into a model.Criteria.
// The row must contain columns in the order defined by criteriaColumns.
func scanCriteria(row scannable) (*model.Criteria, error) {
	var (
		key               string
		language          sql.NullString
		minVersions       []byte
		maxVersions       []byte
		allOfGroups       []string
		noneOfGroups      []string
		allOfSubstudyIDs  []string
		noneOfSubstudyIDs []string
	)

	err := row.Scan(
		&key,
		&language,
		&minVersions,
		&maxVersions,
		pq.Array(&allOfGroups),
		pq.Array(&noneOfGroups),
		pq.Array(&allOfSubstudyIDs),
		pq.Array(&noneOfSubstudyIDs),
	)
	if err != nil {
		return nil, err
	}

	c := model.EmptyCriteria(key)
	c.SetLanguage(language.String)
	versions, err := decodeVersions(minVersions)
	if err != nil {
		return nil, fmt.Errorf("criteria %s: min app versions: %w", key, err)
	}
	c.SetMinAppVersions(versions)
	if versions, err = decodeVersions(maxVersions); err != nil {
		return nil, fmt.Errorf("criteria %s: max app versions: %w", key, err)
	}
	c.SetMaxAppVersions(versions)
	c.SetAllOfGroups(allOfGroups)
	c.SetNoneOfGroups(noneOfGroups)
	c.SetAllOfSubstudyIDs(allOfSubstudyIDs)
	c.SetNoneOfSubstudyIDs(noneOfSubstudyIDs)
	return c, nil
}

// scanCriteriaRows scans multiple rows into a slice of model.Criteria pointers.
func scanCriteriaRows(rows *sql.Rows) ([]*model.Criteria, error) {
	var out []*model.Criteria
	for rows.Next() {
		c, err := scanCriteria(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeVersions(b []byte) (map[model.OperatingSystem]int, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[model.OperatingSystem]int
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// scanOwnerRow scans a single row in ownerColumns order.
func scanOwnerRow(row scannable) (ownerRow, error) {
	var r ownerRow
	err := row.Scan(&r.AppID, &r.GUID, &r.Version, &r.Deleted, &r.CreatedOn, &r.ModifiedOn, &r.Data)
	return r, err
}

func scanOwnerRows(rows *sql.Rows) ([]ownerRow, error) {
	var out []ownerRow
	for rows.Next() {
		r, err := scanOwnerRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
