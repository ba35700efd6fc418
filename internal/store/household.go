package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type HouseholdStore struct {
	db *sqlx.DB
}

func (hs *HouseholdStore) UpsertHousehold(ctx context.Context, household *Household) error {
	query := `INSERT INTO households (
		id,
		name,
		join_code,
		owner_id
	) VALUES (
		:id,
		:name,
		:join_code,
		:owner_id
	)
		ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		join_code = EXCLUDED.join_code,
		owner_id = EXCLUDED.owner_id`

	_, err := hs.db.NamedExecContext(ctx, query, household)
	return err
}

func (hs *HouseholdStore) ListHouseholds(ctx context.Context) ([]Household, error) {
	var out []Household
	err := hs.db.SelectContext(ctx, &out, `SELECT id, name, join_code, owner_id FROM households ORDER BY id`)
	return out, err
}

type MemberStore struct {
	db *sqlx.DB
}

func (ms *MemberStore) UpsertMember(ctx context.Context, member *Member) error {
	query := `INSERT INTO household_members (
		household_id,
		user_id,
		role
	) VALUES (
		:household_id,
		:user_id,
		:role
	)
		ON CONFLICT (household_id, user_id) DO UPDATE SET
		role = EXCLUDED.role`

	_, err := ms.db.NamedExecContext(ctx, query, member)
	return err
}

func (ms *MemberStore) FindByUser(ctx context.Context, userID string) (*Member, error) {
	query := ms.db.Rebind(`SELECT household_id, user_id, role
		FROM household_members
		WHERE user_id = ?
		ORDER BY household_id
		LIMIT 1`)

	var m Member
	if err := ms.db.GetContext(ctx, &m, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (ms *MemberStore) Role(ctx context.Context, householdID, userID string) (string, error) {
	query := ms.db.Rebind(`SELECT role FROM household_members WHERE household_id = ? AND user_id = ?`)

	var role string
	if err := ms.db.GetContext(ctx, &role, query, householdID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

func (ms *MemberStore) ListMembers(ctx context.Context) ([]Member, error) {
	var out []Member
	err := ms.db.SelectContext(ctx, &out, `SELECT household_id, user_id, role FROM household_members ORDER BY household_id, user_id`)
	return out, err
}

type UserStore struct {
	db *sqlx.DB
}

// CreateIfAbsent never overwrites an existing user: profiles edited after
// the first migration keep their current name and email.
func (us *UserStore) CreateIfAbsent(ctx context.Context, user *User) (bool, error) {
	query := `INSERT INTO users (
		id,
		name,
		email
	) VALUES (
		:id,
		:name,
		:email
	)
		ON CONFLICT (id) DO NOTHING`

	result, err := us.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (us *UserStore) ListUsers(ctx context.Context) ([]User, error) {
	var out []User
	err := us.db.SelectContext(ctx, &out, `SELECT id, name, email FROM users ORDER BY id`)
	return out, err
}

type IncomeSourceStore struct {
	db *sqlx.DB
}

func (is *IncomeSourceStore) UpsertIncomeSource(ctx context.Context, income *IncomeSource) error {
	query := `INSERT INTO income_sources (
		id,
		user_id,
		name,
		amount
	) VALUES (
		:id,
		:user_id,
		:name,
		:amount
	)
		ON CONFLICT (id) DO UPDATE SET
		user_id = EXCLUDED.user_id,
		name = EXCLUDED.name,
		amount = EXCLUDED.amount`

	_, err := is.db.NamedExecContext(ctx, query, income)
	return err
}

func (is *IncomeSourceStore) ListIncomeSources(ctx context.Context) ([]IncomeSource, error) {
	var out []IncomeSource
	err := is.db.SelectContext(ctx, &out, `SELECT id, user_id, name, amount FROM income_sources ORDER BY id`)
	return out, err
}

type SnapshotStore struct {
	db *sqlx.DB
}

func (ss *SnapshotStore) UpsertSnapshot(ctx context.Context, snapshot *MonthlySnapshot) error {
	query := `INSERT INTO monthly_snapshots (
		household_id,
		month,
		net_worth,
		total_cash,
		recorded_at
	) VALUES (
		:household_id,
		:month,
		:net_worth,
		:total_cash,
		:recorded_at
	)
		ON CONFLICT (household_id, month) DO UPDATE SET
		net_worth = EXCLUDED.net_worth,
		total_cash = EXCLUDED.total_cash,
		recorded_at = EXCLUDED.recorded_at`

	_, err := ss.db.NamedExecContext(ctx, query, snapshot)
	return err
}

func (ss *SnapshotStore) ListSnapshots(ctx context.Context) ([]MonthlySnapshot, error) {
	var out []MonthlySnapshot
	err := ss.db.SelectContext(ctx, &out, `SELECT household_id, month, net_worth, total_cash, recorded_at
		FROM monthly_snapshots
		ORDER BY household_id, month`)
	return out, err
}
