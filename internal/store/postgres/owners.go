package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/eligibility/internal/model"
)

// encodeRow builds the stored row for an owner. v must already have its
// Criteria removed.
func encodeRow(r ownerRow, v any) (ownerRow, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return ownerRow{}, fmt.Errorf("encode owner: %w", err)
	}
	r.Data = data
	return r, nil
}

// decodeRows decodes each row into a T and lets apply copy the
// authoritative columns onto it.
func decodeRows[T any](rows []ownerRow, apply func(*T, ownerRow)) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, r := range rows {
		v := new(T)
		if err := json.Unmarshal(r.Data, v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", r.AppID, r.GUID, err)
		}
		apply(v, r)
		out = append(out, v)
	}
	return out, nil
}

func decodeRow[T any](r ownerRow, apply func(*T, ownerRow)) (*T, error) {
	out, err := decodeRows([]ownerRow{r}, apply)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// App configs

func appConfigRow(ac *model.AppConfig) (ownerRow, error) {
	v := *ac
	v.Criteria = nil
	return encodeRow(ownerRow{
		AppID: ac.AppID, GUID: ac.GUID, Version: ac.Version, Deleted: ac.Deleted,
		CreatedOn: ac.CreatedOn, ModifiedOn: ac.ModifiedOn,
	}, v)
}

func applyAppConfig(ac *model.AppConfig, r ownerRow) {
	ac.AppID, ac.GUID, ac.Version, ac.Deleted = r.AppID, r.GUID, r.Version, r.Deleted
	ac.CreatedOn, ac.ModifiedOn = r.CreatedOn, r.ModifiedOn
}

func createAppConfig(ctx context.Context, db executor, ac *model.AppConfig) error {
	r, err := appConfigRow(ac)
	if err != nil {
		return err
	}
	return queryCreateOwner(ctx, db, tableAppConfigs, r)
}

func getAppConfig(ctx context.Context, db executor, appID, guid string) (*model.AppConfig, error) {
	r, err := queryGetOwner(ctx, db, tableAppConfigs, appID, guid)
	if err != nil {
		return nil, err
	}
	return decodeRow(r, applyAppConfig)
}

func listAppConfigs(ctx context.Context, db executor, appID string, includeDeleted bool) ([]*model.AppConfig, error) {
	rows, err := queryListOwners(ctx, db, tableAppConfigs, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, applyAppConfig)
}

func updateAppConfig(ctx context.Context, db executor, ac *model.AppConfig) error {
	r, err := appConfigRow(ac)
	if err != nil {
		return err
	}
	version, err := queryUpdateOwner(ctx, db, tableAppConfigs, r)
	if err != nil {
		return err
	}
	ac.Version = version
	return nil
}

// Subpopulations

func subpopulationRow(sp *model.Subpopulation) (ownerRow, error) {
	v := *sp
	v.Criteria = nil
	return encodeRow(ownerRow{
		AppID: sp.AppID, GUID: sp.GUID, Version: sp.Version, Deleted: sp.Deleted,
		CreatedOn: sp.CreatedOn, ModifiedOn: sp.ModifiedOn,
	}, v)
}

func applySubpopulation(sp *model.Subpopulation, r ownerRow) {
	sp.AppID, sp.GUID, sp.Version, sp.Deleted = r.AppID, r.GUID, r.Version, r.Deleted
	sp.CreatedOn, sp.ModifiedOn = r.CreatedOn, r.ModifiedOn
}

func createSubpopulation(ctx context.Context, db executor, sp *model.Subpopulation) error {
	r, err := subpopulationRow(sp)
	if err != nil {
		return err
	}
	return queryCreateOwner(ctx, db, tableSubpopulations, r)
}

func getSubpopulation(ctx context.Context, db executor, appID, guid string) (*model.Subpopulation, error) {
	r, err := queryGetOwner(ctx, db, tableSubpopulations, appID, guid)
	if err != nil {
		return nil, err
	}
	return decodeRow(r, applySubpopulation)
}

func listSubpopulations(ctx context.Context, db executor, appID string, includeDeleted bool) ([]*model.Subpopulation, error) {
	rows, err := queryListOwners(ctx, db, tableSubpopulations, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, applySubpopulation)
}

func updateSubpopulation(ctx context.Context, db executor, sp *model.Subpopulation) error {
	r, err := subpopulationRow(sp)
	if err != nil {
		return err
	}
	version, err := queryUpdateOwner(ctx, db, tableSubpopulations, r)
	if err != nil {
		return err
	}
	sp.Version = version
	return nil
}

// Notification topics

func topicRow(nt *model.NotificationTopic) (ownerRow, error) {
	v := *nt
	v.Criteria = nil
	return encodeRow(ownerRow{
		AppID: nt.AppID, GUID: nt.GUID, Version: nt.Version, Deleted: nt.Deleted,
		CreatedOn: nt.CreatedOn, ModifiedOn: nt.ModifiedOn,
	}, v)
}

func applyTopic(nt *model.NotificationTopic, r ownerRow) {
	nt.AppID, nt.GUID, nt.Version, nt.Deleted = r.AppID, r.GUID, r.Version, r.Deleted
	nt.CreatedOn, nt.ModifiedOn = r.CreatedOn, r.ModifiedOn
}

func createTopic(ctx context.Context, db executor, nt *model.NotificationTopic) error {
	r, err := topicRow(nt)
	if err != nil {
		return err
	}
	return queryCreateOwner(ctx, db, tableTopics, r)
}

func getTopic(ctx context.Context, db executor, appID, guid string) (*model.NotificationTopic, error) {
	r, err := queryGetOwner(ctx, db, tableTopics, appID, guid)
	if err != nil {
		return nil, err
	}
	return decodeRow(r, applyTopic)
}

func listTopics(ctx context.Context, db executor, appID string, includeDeleted bool) ([]*model.NotificationTopic, error) {
	rows, err := queryListOwners(ctx, db, tableTopics, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, applyTopic)
}

func updateTopic(ctx context.Context, db executor, nt *model.NotificationTopic) error {
	r, err := topicRow(nt)
	if err != nil {
		return err
	}
	version, err := queryUpdateOwner(ctx, db, tableTopics, r)
	if err != nil {
		return err
	}
	nt.Version = version
	return nil
}

// Schedule plans

func schedulePlanRow(sp *model.SchedulePlan) (ownerRow, error) {
	v := *sp
	entries := make([]model.ScheduleCriteria, len(sp.Strategy.ScheduleCriteria))
	for i, sc := range sp.Strategy.ScheduleCriteria {
		sc.Criteria = nil
		entries[i] = sc
	}
	v.Strategy.ScheduleCriteria = entries
	return encodeRow(ownerRow{
		AppID: sp.AppID, GUID: sp.GUID, Version: sp.Version, Deleted: sp.Deleted,
		CreatedOn: sp.CreatedOn, ModifiedOn: sp.ModifiedOn,
	}, v)
}

func applySchedulePlan(sp *model.SchedulePlan, r ownerRow) {
	sp.AppID, sp.GUID, sp.Version, sp.Deleted = r.AppID, r.GUID, r.Version, r.Deleted
	sp.CreatedOn, sp.ModifiedOn = r.CreatedOn, r.ModifiedOn
}

func createSchedulePlan(ctx context.Context, db executor, sp *model.SchedulePlan) error {
	r, err := schedulePlanRow(sp)
	if err != nil {
		return err
	}
	return queryCreateOwner(ctx, db, tableSchedulePlans, r)
}

func getSchedulePlan(ctx context.Context, db executor, appID, guid string) (*model.SchedulePlan, error) {
	r, err := queryGetOwner(ctx, db, tableSchedulePlans, appID, guid)
	if err != nil {
		return nil, err
	}
	return decodeRow(r, applySchedulePlan)
}

func listSchedulePlans(ctx context.Context, db executor, appID string, includeDeleted bool) ([]*model.SchedulePlan, error) {
	rows, err := queryListOwners(ctx, db, tableSchedulePlans, appID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return decodeRows(rows, applySchedulePlan)
}

func updateSchedulePlan(ctx context.Context, db executor, sp *model.SchedulePlan) error {
	r, err := schedulePlanRow(sp)
	if err != nil {
		return err
	}
	version, err := queryUpdateOwner(ctx, db, tableSchedulePlans, r)
	if err != nil {
		return err
	}
	sp.Version = version
	return nil
}
