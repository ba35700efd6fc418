// Package memory keeps every table of a store.Storage in process memory.
// The migration CLI uses it for dry runs; tests use it as a destination
// whose contents can be inspected directly.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/farxc/household-migrator/internal/store"
)

// DB holds the tables. All stores returned by NewStorage share one DB.
type DB struct {
	mu sync.RWMutex

	households     map[string]store.Household
	members        map[memberKey]store.Member
	users          map[string]store.User
	incomeSources  map[string]store.IncomeSource
	snapshots      map[snapshotKey]store.MonthlySnapshot
	accounts       map[string]store.Account
	recurringCosts map[string]store.RecurringCost
	debts          map[string]store.Debt
	goals          map[string]store.Goal
	settings       map[string]store.UserSettings
	runs           map[string]store.MigrationRun
}

type memberKey struct{ householdID, userID string }

type snapshotKey struct{ householdID, month string }

func NewDB() *DB {
	return &DB{
		households:     make(map[string]store.Household),
		members:        make(map[memberKey]store.Member),
		users:          make(map[string]store.User),
		incomeSources:  make(map[string]store.IncomeSource),
		snapshots:      make(map[snapshotKey]store.MonthlySnapshot),
		accounts:       make(map[string]store.Account),
		recurringCosts: make(map[string]store.RecurringCost),
		debts:          make(map[string]store.Debt),
		goals:          make(map[string]store.Goal),
		settings:       make(map[string]store.UserSettings),
		runs:           make(map[string]store.MigrationRun),
	}
}

// NewStorage returns a store.Storage backed by a fresh DB.
func NewStorage() *store.Storage {
	return NewDB().Storage()
}

func (db *DB) Storage() *store.Storage {
	return &store.Storage{
		Households:     db,
		Members:        db,
		Users:          db,
		IncomeSources:  db,
		Snapshots:      db,
		Accounts:       db,
		RecurringCosts: db,
		Debts:          db,
		Goals:          db,
		Settings:       db,
		MigrationRuns:  db,
	}
}

func upsert[K comparable, V any](db *DB, table map[K]V, key K, v V) {
	db.mu.Lock()
	defer db.mu.Unlock()
	table[key] = v
}

func list[K comparable, V any](db *DB, table map[K]V, less func(a, b V) bool) []V {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]V, 0, len(table))
	for _, v := range table {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (db *DB) UpsertHousehold(_ context.Context, h *store.Household) error {
	upsert(db, db.households, h.ID, *h)
	return nil
}

func (db *DB) ListHouseholds(context.Context) ([]store.Household, error) {
	return list(db, db.households, func(a, b store.Household) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertMember(_ context.Context, m *store.Member) error {
	upsert(db, db.members, memberKey{m.HouseholdID, m.UserID}, *m)
	return nil
}

func (db *DB) FindByUser(_ context.Context, userID string) (*store.Member, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var found *store.Member
	for _, m := range db.members {
		if m.UserID != userID {
			continue
		}
		if found == nil || m.HouseholdID < found.HouseholdID {
			m := m
			found = &m
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (db *DB) Role(_ context.Context, householdID, userID string) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	m, ok := db.members[memberKey{householdID, userID}]
	if !ok {
		return "", store.ErrNotFound
	}
	return m.Role, nil
}

func (db *DB) ListMembers(context.Context) ([]store.Member, error) {
	return list(db, db.members, func(a, b store.Member) bool {
		if a.HouseholdID != b.HouseholdID {
			return a.HouseholdID < b.HouseholdID
		}
		return a.UserID < b.UserID
	}), nil
}

func (db *DB) CreateIfAbsent(_ context.Context, u *store.User) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.users[u.ID]; ok {
		return false, nil
	}
	db.users[u.ID] = *u
	return true, nil
}

func (db *DB) ListUsers(context.Context) ([]store.User, error) {
	return list(db, db.users, func(a, b store.User) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertIncomeSource(_ context.Context, i *store.IncomeSource) error {
	upsert(db, db.incomeSources, i.ID, *i)
	return nil
}

func (db *DB) ListIncomeSources(context.Context) ([]store.IncomeSource, error) {
	return list(db, db.incomeSources, func(a, b store.IncomeSource) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertSnapshot(_ context.Context, s *store.MonthlySnapshot) error {
	upsert(db, db.snapshots, snapshotKey{s.HouseholdID, s.Month}, *s)
	return nil
}

func (db *DB) ListSnapshots(context.Context) ([]store.MonthlySnapshot, error) {
	return list(db, db.snapshots, func(a, b store.MonthlySnapshot) bool {
		if a.HouseholdID != b.HouseholdID {
			return a.HouseholdID < b.HouseholdID
		}
		return a.Month < b.Month
	}), nil
}

func (db *DB) UpsertAccount(_ context.Context, a *store.Account) error {
	upsert(db, db.accounts, a.ID, *a)
	return nil
}

func (db *DB) ListAccounts(context.Context) ([]store.Account, error) {
	return list(db, db.accounts, func(a, b store.Account) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertRecurringCost(_ context.Context, c *store.RecurringCost) error {
	upsert(db, db.recurringCosts, c.ID, *c)
	return nil
}

func (db *DB) ListRecurringCosts(context.Context) ([]store.RecurringCost, error) {
	return list(db, db.recurringCosts, func(a, b store.RecurringCost) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertDebt(_ context.Context, d *store.Debt) error {
	upsert(db, db.debts, d.ID, *d)
	return nil
}

func (db *DB) ListDebts(context.Context) ([]store.Debt, error) {
	return list(db, db.debts, func(a, b store.Debt) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertGoal(_ context.Context, g *store.Goal) error {
	upsert(db, db.goals, g.ID, *g)
	return nil
}

func (db *DB) ListGoals(context.Context) ([]store.Goal, error) {
	return list(db, db.goals, func(a, b store.Goal) bool { return a.ID < b.ID }), nil
}

func (db *DB) UpsertSettings(_ context.Context, s *store.UserSettings) error {
	upsert(db, db.settings, s.UserID, *s)
	return nil
}

func (db *DB) ListSettings(context.Context) ([]store.UserSettings, error) {
	return list(db, db.settings, func(a, b store.UserSettings) bool { return a.UserID < b.UserID }), nil
}

func (db *DB) StartRun(_ context.Context, run *store.MigrationRun) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.runs[run.ID]; ok {
		return fmt.Errorf("migration run %s already exists", run.ID)
	}
	db.runs[run.ID] = *run
	return nil
}

func (db *DB) FinishRun(_ context.Context, run *store.MigrationRun) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.runs[run.ID]; !ok {
		return fmt.Errorf("migration run %s: %w", run.ID, store.ErrNotFound)
	}
	db.runs[run.ID] = *run
	return nil
}

func (db *DB) GetLatest(_ context.Context, limit int) ([]store.MigrationRun, error) {
	runs := list(db, db.runs, func(a, b store.MigrationRun) bool { return a.StartedAt.After(b.StartedAt) })
	if limit >= 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Source is an in-memory legacy key-value table that keeps insertion order.
type Source struct {
	mu      sync.RWMutex
	entries []store.Entry
	err     error
}

func NewSource(entries ...store.Entry) *Source {
	return &Source{entries: entries}
}

// Put appends a row. Strings and byte slices are taken as raw JSON;
// anything else is marshalled.
func (s *Source) Put(key string, v any) error {
	var raw []byte
	switch val := v.(type) {
	case []byte:
		raw = val
	case string:
		raw = []byte(val)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, store.Entry{Key: key, Value: raw})
	return nil
}

// Fail makes every subsequent ListEntries return err.
func (s *Source) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Source) ListEntries(context.Context) ([]store.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.err != nil {
		return nil, s.err
	}
	out := make([]store.Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
