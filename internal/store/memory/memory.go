// Package memory implements store.Store and store.CriteriaStore in process.
// Records are held as encoded snapshots so callers never share state with
// the store.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/alfredjeanlab/eligibility/internal/model"
	"github.com/alfredjeanlab/eligibility/internal/store"
)

// row is one persisted owner record.
type row struct {
	appID   string
	guid    string
	version int64
	deleted bool
	seq     int64
	data    []byte
}

// table holds one owner kind, keyed by app id and guid.
type table struct {
	rows map[string]row
}

func newTable() *table { return &table{rows: map[string]row{}} }

func (t *table) clone() *table {
	return &table{rows: maps.Clone(t.rows)}
}

func rowKey(appID, guid string) string { return appID + "\x00" + guid }

type state struct {
	seq           int64
	appConfigs    *table
	subpops       *table
	topics        *table
	schedulePlans *table
	criteria      map[string]*model.Criteria
}

func newState() *state {
	return &state{
		appConfigs:    newTable(),
		subpops:       newTable(),
		topics:        newTable(),
		schedulePlans: newTable(),
		criteria:      map[string]*model.Criteria{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:           s.seq,
		appConfigs:    s.appConfigs.clone(),
		subpops:       s.subpops.clone(),
		topics:        s.topics.clone(),
		schedulePlans: s.schedulePlans.clone(),
		criteria:      maps.Clone(s.criteria),
	}
}

// MemoryStore is a mutex-guarded in-memory store.
type MemoryStore struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state *state
}

var (
	_ store.Store         = (*MemoryStore)(nil)
	_ store.CriteriaStore = (*MemoryStore)(nil)
)

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{state: newState()}
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// RunInTransaction runs fn against a copy of the current state and installs
// the copy only if fn succeeds. Transactions are serialized with each other.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	tx := &MemoryStore{state: s.state.clone()}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = tx.state
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) create(t func(*state) *table, kind, appID, guid string, version int64, deleted bool, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl := t(s.state)
	k := rowKey(appID, guid)
	if _, ok := tbl.rows[k]; ok {
		return fmt.Errorf("create %s %s: already exists", kind, guid)
	}
	s.state.seq++
	tbl.rows[k] = row{appID: appID, guid: guid, version: version, deleted: deleted, seq: s.state.seq, data: data}
	return nil
}

// update replaces a row when expected matches the stored version and returns
// the new version.
func (s *MemoryStore) update(t func(*state) *table, kind, appID, guid string, expected int64, deleted bool, encode func(version int64) ([]byte, error)) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl := t(s.state)
	k := rowKey(appID, guid)
	r, ok := tbl.rows[k]
	if !ok {
		return 0, fmt.Errorf("update %s %s: %w", kind, guid, store.ErrNotFound)
	}
	if r.version != expected {
		return 0, fmt.Errorf("update %s %s: stored version %d, got %d: %w", kind, guid, r.version, expected, store.ErrVersionConflict)
	}
	data, err := encode(expected + 1)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", kind, err)
	}
	r.version = expected + 1
	r.deleted = deleted
	r.data = data
	tbl.rows[k] = r
	return r.version, nil
}

func (s *MemoryStore) get(t func(*state) *table, kind, appID, guid string, v any) error {
	s.mu.RLock()
	r, ok := t(s.state).rows[rowKey(appID, guid)]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("get %s %s: %w", kind, guid, store.ErrNotFound)
	}
	if err := json.Unmarshal(r.data, v); err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	return nil
}

func (s *MemoryStore) delete(t func(*state) *table, kind, appID, guid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tbl := t(s.state)
	k := rowKey(appID, guid)
	if _, ok := tbl.rows[k]; !ok {
		return fmt.Errorf("delete %s %s: %w", kind, guid, store.ErrNotFound)
	}
	delete(tbl.rows, k)
	return nil
}

// listRows returns the app's rows in creation order.
func (s *MemoryStore) listRows(t func(*state) *table, appID string, includeDeleted bool) []row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []row
	for _, r := range t(s.state).rows {
		if r.appID != appID || (r.deleted && !includeDeleted) {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b row) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

func decodeRows[T any](kind string, rows []row) ([]*T, error) {
	out := make([]*T, 0, len(rows))
	for _, r := range rows {
		v := new(T)
		if err := json.Unmarshal(r.data, v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// GetCriteria returns a copy of the Criteria stored under key.
func (s *MemoryStore) GetCriteria(ctx context.Context, key string) (*model.Criteria, error) {
	s.mu.RLock()
	c, ok := s.state.criteria[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("get criteria %s: %w", key, store.ErrNotFound)
	}
	return c.Clone(), nil
}

// PutCriteria stores a copy of c under c.Key().
func (s *MemoryStore) PutCriteria(ctx context.Context, c *model.Criteria) error {
	if c.Key() == "" {
		return fmt.Errorf("put criteria: key is required")
	}
	s.mu.Lock()
	s.state.criteria[c.Key()] = c.Clone()
	s.mu.Unlock()
	return nil
}

// DeleteCriteria removes key. Absent keys are ignored.
func (s *MemoryStore) DeleteCriteria(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.state.criteria, key)
	s.mu.Unlock()
	return nil
}

// ListCriteria returns copies of every Criteria whose key has prefix, by key.
func (s *MemoryStore) ListCriteria(ctx context.Context, prefix string) ([]*model.Criteria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.state.criteria {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]*model.Criteria, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.state.criteria[k].Clone())
	}
	return out, nil
}
