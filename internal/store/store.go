package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned by Update when the stored version differs
	// from the version on the submitted record.
	ErrVersionConflict = errors.New("version conflict")
)

// CriteriaStore is key-addressed storage for Criteria, decoupled from the
// records that own them.
type CriteriaStore interface {
	// GetCriteria returns ErrNotFound when nothing is stored under key.
	GetCriteria(ctx context.Context, key string) (*model.Criteria, error)
	// PutCriteria fully replaces whatever is stored under c.Key().
	PutCriteria(ctx context.Context, c *model.Criteria) error
	// DeleteCriteria removes the Criteria under key. Deleting an absent key is not an error.
	DeleteCriteria(ctx context.Context, key string) error
	// ListCriteria returns every Criteria whose key starts with prefix, ordered by key.
	ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error)
}

// Store defines the persistence interface for criteria-owning records.
// Owner payloads are persisted without their Criteria.
type Store interface {
	// App configs
	CreateAppConfig(ctx context.Context, ac *model.AppConfig) error
	GetAppConfig(ctx context.Context, appID, guid string) (*model.AppConfig, error)
	ListAppConfigs(ctx context.Context, appID string, includeDeleted bool) ([]*model.AppConfig, error)
	UpdateAppConfig(ctx context.Context, ac *model.AppConfig) error
	DeleteAppConfig(ctx context.Context, appID, guid string) error

	// Subpopulations
	CreateSubpopulation(ctx context.Context, sp *model.Subpopulation) error
	GetSubpopulation(ctx context.Context, appID, guid string) (*model.Subpopulation, error)
	ListSubpopulations(ctx context.Context, appID string, includeDeleted bool) ([]*model.Subpopulation, error)
	UpdateSubpopulation(ctx context.Context, sp *model.Subpopulation) error
	DeleteSubpopulation(ctx context.Context, appID, guid string) error

	// Notification topics
	CreateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error
	GetNotificationTopic(ctx context.Context, appID, guid string) (*model.NotificationTopic, error)
	ListNotificationTopics(ctx context.Context, appID string, includeDeleted bool) ([]*model.NotificationTopic, error)
	UpdateNotificationTopic(ctx context.Context, nt *model.NotificationTopic) error
	DeleteNotificationTopic(ctx context.Context, appID, guid string) error

	// Schedule plans
	CreateSchedulePlan(ctx context.Context, sp *model.SchedulePlan) error
	GetSchedulePlan(ctx context.Context, appID, guid string) (*model.SchedulePlan, error)
	ListSchedulePlans(ctx context.Context, appID string, includeDeleted bool) ([]*model.SchedulePlan, error)
	UpdateSchedulePlan(ctx context.Context, sp *model.SchedulePlan) error
	DeleteSchedulePlan(ctx context.Context, appID, guid string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
