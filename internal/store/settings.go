package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

const (
	selectedSetKey    = "selectedProblemSet"
	policyKey         = "selectionPolicy"
	userExclusionsKey = "userExclusionList"
	initialSyncKey    = "initialSyncDone"
)

// settingsRepo implements SettingsRepo on the kv table.
type settingsRepo struct {
	db *sql.DB
}

func (r *settingsRepo) SelectedSet(ctx context.Context) (string, error) {
	var id string
	if _, err := getJSON(ctx, r.db, scopeSync, selectedSetKey, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (r *settingsRepo) SetSelectedSet(ctx context.Context, id string) error {
	return putJSON(ctx, r.db, scopeSync, selectedSetKey, id)
}

func (r *settingsRepo) Policy(ctx context.Context) (string, error) {
	var p string
	if _, err := getJSON(ctx, r.db, scopeSync, policyKey, &p); err != nil {
		return "", err
	}
	return p, nil
}

func (r *settingsRepo) SetPolicy(ctx context.Context, policy string) error {
	return putJSON(ctx, r.db, scopeSync, policyKey, policy)
}

// UserExclusions reports a stored value that is not a string list as unset.
func (r *settingsRepo) UserExclusions(ctx context.Context) ([]string, bool, error) {
	var raw json.RawMessage
	ok, err := getJSON(ctx, r.db, scopeSync, userExclusionsKey, &raw)
	if err != nil || !ok {
		return nil, false, err
	}
	var domains []string
	if err := json.Unmarshal(raw, &domains); err != nil {
		return nil, false, nil
	}
	return domains, true, nil
}

func (r *settingsRepo) SetUserExclusions(ctx context.Context, domains []string) error {
	if domains == nil {
		domains = []string{}
	}
	return putJSON(ctx, r.db, scopeSync, userExclusionsKey, domains)
}

func (r *settingsRepo) InitialSyncDone(ctx context.Context) (bool, error) {
	var done bool
	if _, err := getJSON(ctx, r.db, scopeLocal, initialSyncKey, &done); err != nil {
		return false, err
	}
	return done, nil
}

func (r *settingsRepo) MarkInitialSyncDone(ctx context.Context) error {
	return putJSON(ctx, r.db, scopeLocal, initialSyncKey, true)
}
