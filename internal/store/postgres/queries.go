package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// criteriaColumns is the column list used for SELECT statements on the criteria table.
const criteriaColumns = `key, language, min_app_versions, max_app_versions,
	all_of_groups, none_of_groups, all_of_substudy_ids, none_of_substudy_ids`

// ownerColumns is the column list shared by every owner table.
const ownerColumns = `app_id, guid, version, deleted, created_on, modified_on, data`

// Owner tables. Table names are never taken from input.
const (
	tableAppConfigs     = "app_configs"
	tableSubpopulations = "subpopulations"
	tableTopics         = "notification_topics"
	tableSchedulePlans  = "schedule_plans"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// likeEscaper escapes LIKE metacharacters so a prefix matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func queryGetCriteria(ctx context.Context, db executor, key string) (*model.Criteria, error) {
	row := db.QueryRowContext(ctx, `SELECT `+criteriaColumns+` FROM criteria WHERE key = $1`, key)
	c, err := scanCriteria(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get criteria %s: %w", key, store.ErrNotFound)
	}
	return c, err
}

func queryPutCriteria(ctx context.Context, db executor, c *model.Criteria) error {
	if c.Key() == "" {
		return fmt.Errorf("put criteria: key is required")
	}
	minVersions, err := json.Marshal(c.MinAppVersions())
	if err != nil {
		return fmt.Errorf("encode min app versions: %w", err)
	}
	maxVersions, err := json.Marshal(c.MaxAppVersions())
	if err != nil {
		return fmt.Errorf("encode max app versions: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO criteria (
			key, language, min_app_versions, max_app_versions,
			all_of_groups, none_of_groups, all_of_substudy_ids, none_of_substudy_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO UPDATE SET
			language = $2,
			min_app_versions = $3,
			max_app_versions = $4,
			all_of_groups = $5,
			none_of_groups = $6,
			all_of_substudy_ids = $7,
			none_of_substudy_ids = $8,
			updated_at = NOW()`,
		c.Key(),
		nullString(c.Language()),
		minVersions,
		maxVersions,
		pq.Array(c.AllOfGroups()),
		pq.Array(c.NoneOfGroups()),
		pq.Array(c.AllOfSubstudyIDs()),
		pq.Array(c.NoneOfSubstudyIDs()),
	)
	return err
}

// queryDeleteCriteria removes key. A missing row is not an error.
func queryDeleteCriteria(ctx context.Context, db executor, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM criteria WHERE key = $1`, key)
	return err
}

func queryListCriteria(ctx context.Context, db executor, prefix string) ([]*model.Criteria, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+criteriaColumns+`
		FROM criteria WHERE key LIKE $1 || '%'
		ORDER BY key`, likeEscaper.Replace(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCriteriaRows(rows)
}

// ownerRow is the stored form of an owner record. The typed record is
// encoded in data; the remaining columns are authoritative over it.
type ownerRow struct {
	AppID      string
	GUID       string
	Version    int64
	Deleted    bool
	CreatedOn  time.Time
	ModifiedOn time.Time
	Data       []byte
}

func queryCreateOwner(ctx context.Context, db executor, table string, r ownerRow) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO `+table+` (`+ownerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.AppID, r.GUID, r.Version, r.Deleted, r.CreatedOn, r.ModifiedOn, r.Data,
	)
	return err
}

func queryGetOwner(ctx context.Context, db executor, table, appID, guid string) (ownerRow, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+ownerColumns+`
		FROM `+table+` WHERE app_id = $1 AND guid = $2`, appID, guid)
	r, err := scanOwnerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ownerRow{}, fmt.Errorf("get %s %s: %w", table, guid, store.ErrNotFound)
	}
	return r, err
}

func queryListOwners(ctx context.Context, db executor, table, appID string, includeDeleted bool) ([]ownerRow, error) {
	q := `SELECT ` + ownerColumns + ` FROM ` + table + ` WHERE app_id = $1`
	if !includeDeleted {
		q += ` AND NOT deleted`
	}
	q += ` ORDER BY created_on, guid`
	rows, err := db.QueryContext(ctx, q, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOwnerRows(rows)
}

// queryUpdateOwner writes r when the stored version equals r.Version and
// returns the incremented version.
func queryUpdateOwner(ctx context.Context, db executor, table string, r ownerRow) (int64, error) {
	var version int64
	err := db.QueryRowContext(ctx, `
		UPDATE `+table+` SET
			version = version + 1,
			deleted = $1,
			modified_on = $2,
			data = $3
		WHERE app_id = $4 AND guid = $5 AND version = $6
		RETURNING version`,
		r.Deleted, r.ModifiedOn, r.Data, r.AppID, r.GUID, r.Version,
	).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	var stored int64
	err = db.QueryRowContext(ctx, `SELECT version FROM `+table+` WHERE app_id = $1 AND guid = $2`, r.AppID, r.GUID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("update %s %s: %w", table, r.GUID, store.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("update %s %s: stored version %d, got %d: %w", table, r.GUID, stored, r.Version, store.ErrVersionConflict)
}

func queryDeleteOwner(ctx context.Context, db executor, table, appID, guid string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE app_id = $1 AND guid = $2`, appID, guid)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s %s: %w", table, guid, store.ErrNotFound)
	}
	return nil
}
