// Package postgres implements store.Store and store.CriteriaStore backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store and store.CriteriaStore backed by a
// PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time checks that PostgresStore implements both interfaces.
var (
	_ store.Store         = (*PostgresStore)(nil)
	_ store.CriteriaStore = (*PostgresStore)(nil)
)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store and store.CriteriaStore using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time checks that txStore implements both interfaces.
var (
	_ store.Store         = (*txStore)(nil)
	_ store.CriteriaStore = (*txStore)(nil)
)

// RunInTransaction on a txStore runs fn within the current transaction.
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for txStore; the transaction is managed by RunInTransaction.
func (s *txStore) Close() error {
	return nil
}

func (s *PostgresStore) GetCriteria(ctx context.Context, key string) (*model.Criteria, error) {
	return queryGetCriteria(ctx, s.db, key)
}

func (s *PostgresStore) PutCriteria(ctx context.Context, c *model.Criteria) error {
	return queryPutCriteria(ctx, s.db, c)
}

func (s *PostgresStore) DeleteCriteria(ctx context.Context, key string) error {
	return queryDeleteCriteria(ctx, s.db, key)
}

func (s *PostgresStore) ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error) {
	return queryListCriteria(ctx, s.db, prefix)
}

func (s *PostgresStore) CreateAppConfig(ctx context.Context, ac *model.AppConfig) error {
	return createAppConfig(ctx, s.db, ac)
}

func (s *PostgresStore) GetAppConfig(ctx context.Context, appID, guid string) (*model.AppConfig, error) {
	return getAppConfig(ctx, s.db, appID, guid)
}

func (s *PostgresStore) ListAppConfigs(ctx context.Context, appID string, includeDeleted bool) ([]*model.AppConfig, error) {
	return listAppConfigs(ctx, s.db, appID, includeDeleted)
}

func (s *PostgresStore) UpdateAppConfig(ctx context.Context, ac *model.AppConfig) error {
	return updateAppConfig(ctx, s.db, ac)
}

func (s *PostgresStore) DeleteAppConfig(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.db, tableAppConfigs, appID, guid)
}

func (s *PostgresStore) CreateSubpopulation(ctx context.Context, sp *model.Subpopulation) error {
	return createSubpopulation(ctx, s.db, sp)
}

func (s *PostgresStore) GetSubpopulation(ctx context.Context, appID, guid string) (*model.Subpopulation, error) {
	return getSubpopulation(ctx, s.db, appID, guid)
}

func (s *PostgresStore) ListSubpopulations(ctx context.Context, appID string, includeDeleted bool) ([]*model.Subpopulation, error) {
	return listSubpopulations(ctx, s.db, appID, includeDeleted)
}

func (s *PostgresStore) UpdateSubpopulation(ctx context.Context, sp *model.Subpopulation) error {
	return updateSubpopulation(ctx, s.db, sp)
}

func (s *PostgresStore) DeleteSubpopulation(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.db, tableSubpopulations, appID, guid)
}

func (s *PostgresStore) CreateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error {
	return createTopic(ctx, s.db, nt)
}

func (s *PostgresStore) GetNotificationTopic(ctx context.Context, appID, guid string) (*model.NotificationTopic, error) {
	return getTopic(ctx, s.db, appID, guid)
}

func (s *PostgresStore) ListNotificationTopics(ctx context.Context, appID string, includeDeleted bool) ([]*model.NotificationTopic, error) {
	return listTopics(ctx, s.db, appID, includeDeleted)
}

func (s *PostgresStore) UpdateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error {
	return updateTopic(ctx, s.db, nt)
}

func (s *PostgresStore) DeleteNotificationTopic(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.db, tableTopics, appID, guid)
}

func (s *PostgresStore) CreateSchedulePlan(ctx context.Context, plan *model.SchedulePlan) error {
	return createSchedulePlan(ctx, s.db, plan)
}

func (s *PostgresStore) GetSchedulePlan(ctx context.Context, appID, guid string) (*model.SchedulePlan, error) {
	return getSchedulePlan(ctx, s.db, appID, guid)
}

func (s *PostgresStore) ListSchedulePlans(ctx context.Context, appID string, includeDeleted bool) ([]*model.SchedulePlan, error) {
	return listSchedulePlans(ctx, s.db, appID, includeDeleted)
}

func (s *PostgresStore) UpdateSchedulePlan(ctx context.Context, plan *model.SchedulePlan) error {
	return updateSchedulePlan(ctx, s.db, plan)
}

func (s *PostgresStore) DeleteSchedulePlan(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.db, tableSchedulePlans, appID, guid)
}

func (s *txStore) GetCriteria(ctx context.Context, key string) (*model.Criteria, error) {
	return queryGetCriteria(ctx, s.tx, key)
}

func (s *txStore) PutCriteria(ctx context.Context, c *model.Criteria) error {
	return queryPutCriteria(ctx, s.tx, c)
}

func (s *txStore) DeleteCriteria(ctx context.Context, key string) error {
	return queryDeleteCriteria(ctx, s.tx, key)
}

func (s *txStore) ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error) {
	return queryListCriteria(ctx, s.tx, prefix)
}

func (s *txStore) CreateAppConfig(ctx context.Context, ac *model.AppConfig) error {
	return createAppConfig(ctx, s.tx, ac)
}

func (s *txStore) GetAppConfig(ctx context.Context, appID, guid string) (*model.AppConfig, error) {
	return getAppConfig(ctx, s.tx, appID, guid)
}

func (s *txStore) ListAppConfigs(ctx context.Context, appID string, includeDeleted bool) ([]*model.AppConfig, error) {
	return listAppConfigs(ctx, s.tx, appID, includeDeleted)
}

func (s *txStore) UpdateAppConfig(ctx context.Context, ac *model.AppConfig) error {
	return updateAppConfig(ctx, s.tx, ac)
}

func (s *txStore) DeleteAppConfig(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.tx, tableAppConfigs, appID, guid)
}

func (s *txStore) CreateSubpopulation(ctx context.Context, sp *model.Subpopulation) error {
	return createSubpopulation(ctx, s.tx, sp)
}

func (s *txStore) GetSubpopulation(ctx context.Context, appID, guid string) (*model.Subpopulation, error) {
	return getSubpopulation(ctx, s.tx, appID, guid)
}

func (s *txStore) ListSubpopulations(ctx context.Context, appID string, includeDeleted bool) ([]*model.Subpopulation, error) {
	return listSubpopulations(ctx, s.tx, appID, includeDeleted)
}

func (s *txStore) UpdateSubpopulation(ctx context.Context, sp *model.Subpopulation) error {
	return updateSubpopulation(ctx, s.tx, sp)
}

func (s *txStore) DeleteSubpopulation(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.tx, tableSubpopulations, appID, guid)
}

func (s *txStore) CreateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error {
	return createTopic(ctx, s.tx, nt)
}

func (s *txStore) GetNotificationTopic(ctx context.Context, appID, guid string) (*model.NotificationTopic, error) {
	return getTopic(ctx, s.tx, appID, guid)
}

func (s *txStore) ListNotificationTopics(ctx context.Context, appID string, includeDeleted bool) ([]*model.NotificationTopic, error) {
	return listTopics(ctx, s.tx, appID, includeDeleted)
}

func (s *txStore) UpdateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error {
	return updateTopic(ctx, s.tx, nt)
}

func (s *txStore) DeleteNotificationTopic(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.tx, tableTopics, appID, guid)
}

func (s *txStore) CreateSchedulePlan(ctx context.Context, plan *model.SchedulePlan) error {
	return createSchedulePlan(ctx, s.tx, plan)
}

func (s *txStore) GetSchedulePlan(ctx context.Context, appID, guid string) (*model.SchedulePlan, error) {
	return getSchedulePlan(ctx, s.tx, appID, guid)
}

func (s *txStore) ListSchedulePlans(ctx context.Context, appID string, includeDeleted bool) ([]*model.SchedulePlan, error) {
	return listSchedulePlans(ctx, s.tx, appID, includeDeleted)
}

func (s *txStore) UpdateSchedulePlan(ctx context.Context, plan *model.SchedulePlan) error {
	return updateSchedulePlan(ctx, s.tx, plan)
}

func (s *txStore) DeleteSchedulePlan(ctx context.Context, appID, guid string) error {
	return queryDeleteOwner(ctx, s.tx, tableSchedulePlans, appID, guid)
}
