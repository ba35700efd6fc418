package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type AccountStore struct {
	db *sqlx.DB
}

func (as *AccountStore) UpsertAccount(ctx context.Context, account *Account) error {
	query := `INSERT INTO accounts (
		id,
		name,
		balance,
		institution,
		type,
		currency,
		owner_id,
		household_id,
		include_in_household,
		annual_yield
	) VALUES (
		:id,
		:name,
		:balance,
		:institution,
		:type,
		:currency,
		:owner_id,
		:household_id,
		:include_in_household,
		:annual_yield
	)
		ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		balance = EXCLUDED.balance,
		institution = EXCLUDED.institution,
		type = EXCLUDED.type,
		currency = EXCLUDED.currency,
		owner_id = EXCLUDED.owner_id,
		household_id = EXCLUDED.household_id,
		include_in_household = EXCLUDED.include_in_household,
		annual_yield = EXCLUDED.annual_yield`

	_, err := as.db.NamedExecContext(ctx, query, account)
	return err
}

func (as *AccountStore) ListAccounts(ctx context.Context) ([]Account, error) {
	var out []Account
	err := as.db.SelectContext(ctx, &out, `SELECT
		id, name, balance, institution, type, currency,
		owner_id, household_id, include_in_household, annual_yield
		FROM accounts
		ORDER BY id`)
	return out, err
}

type RecurringCostStore struct {
	db *sqlx.DB
}

func (rs *RecurringCostStore) UpsertRecurringCost(ctx context.Context, cost *RecurringCost) error {
	query := `INSERT INTO recurring_costs (
		id,
		name,
		amount,
		category,
		owner_id,
		household_id,
		include_in_household
	) VALUES (
		:id,
		:name,
		:amount,
		:category,
		:owner_id,
		:household_id,
		:include_in_household
	)
		ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		amount = EXCLUDED.amount,
		category = EXCLUDED.category,
		owner_id = EXCLUDED.owner_id,
		household_id = EXCLUDED.household_id,
		include_in_household = EXCLUDED.include_in_household`

	_, err := rs.db.NamedExecContext(ctx, query, cost)
	return err
}

func (rs *RecurringCostStore) ListRecurringCosts(ctx context.Context) ([]RecurringCost, error) {
	var out []RecurringCost
	err := rs.db.SelectContext(ctx, &out, `SELECT
		id, name, amount, category, owner_id, household_id, include_in_household
		FROM recurring_costs
		ORDER BY id`)
	return out, err
}

type DebtStore struct {
	db *sqlx.DB
}

func (ds *DebtStore) UpsertDebt(ctx context.Context, debt *Debt) error {
	query := `INSERT INTO debts (
		id,
		name,
		total_amount,
		remaining_amount,
		monthly_payment,
		interest_rate,
		owner_id,
		household_id,
		include_in_household
	) VALUES (
		:id,
		:name,
		:total_amount,
		:remaining_amount,
		:monthly_payment,
		:interest_rate,
		:owner_id,
		:household_id,
		:include_in_household
	)
		ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		total_amount = EXCLUDED.total_amount,
		remaining_amount = EXCLUDED.remaining_amount,
		monthly_payment = EXCLUDED.monthly_payment,
		interest_rate = EXCLUDED.interest_rate,
		owner_id = EXCLUDED.owner_id,
		household_id = EXCLUDED.household_id,
		include_in_household = EXCLUDED.include_in_household`

	_, err := ds.db.NamedExecContext(ctx, query, debt)
	return err
}

func (ds *DebtStore) ListDebts(ctx context.Context) ([]Debt, error) {
	var out []Debt
	err := ds.db.SelectContext(ctx, &out, `SELECT
		id, name, total_amount, remaining_amount, monthly_payment, interest_rate,
		owner_id, household_id, include_in_household
		FROM debts
		ORDER BY id`)
	return out, err
}

type GoalStore struct {
	db *sqlx.DB
}

func (gs *GoalStore) UpsertGoal(ctx context.Context, goal *Goal) error {
	query := `INSERT INTO goals (
		id,
		household_id,
		name,
		category,
		is_main,
		target_amount,
		current_amount,
		deadline,
		property_value
	) VALUES (
		:id,
		:household_id,
		:name,
		:category,
		:is_main,
		:target_amount,
		:current_amount,
		:deadline,
		:property_value
	)
		ON CONFLICT (id) DO UPDATE SET
		household_id = EXCLUDED.household_id,
		name = EXCLUDED.name,
		category = EXCLUDED.category,
		is_main = EXCLUDED.is_main,
		target_amount = EXCLUDED.target_amount,
		current_amount = EXCLUDED.current_amount,
		deadline = EXCLUDED.deadline,
		property_value = EXCLUDED.property_value`

	_, err := gs.db.NamedExecContext(ctx, query, goal)
	return err
}

func (gs *GoalStore) ListGoals(ctx context.Context) ([]Goal, error) {
	var out []Goal
	err := gs.db.SelectContext(ctx, &out, `SELECT
		id, household_id, name, category, is_main,
		target_amount, current_amount, deadline, property_value
		FROM goals
		ORDER BY id`)
	return out, err
}

type SettingsStore struct {
	db *sqlx.DB
}

func (ss *SettingsStore) UpsertSettings(ctx context.Context, settings *UserSettings) error {
	query := `INSERT INTO user_settings (
		user_id,
		currency,
		theme,
		emergency_fund_goal,
		variable_income,
		variable_spending
	) VALUES (
		:user_id,
		:currency,
		:theme,
		:emergency_fund_goal,
		:variable_income,
		:variable_spending
	)
		ON CONFLICT (user_id) DO UPDATE SET
		currency = EXCLUDED.currency,
		theme = EXCLUDED.theme,
		emergency_fund_goal = EXCLUDED.emergency_fund_goal,
		variable_income = EXCLUDED.variable_income,
		variable_spending = EXCLUDED.variable_spending`

	_, err := ss.db.NamedExecContext(ctx, query, settings)
	return err
}

func (ss *SettingsStore) ListSettings(ctx context.Context) ([]UserSettings, error) {
	var out []UserSettings
	err := ss.db.SelectContext(ctx, &out, `SELECT
		user_id, currency, theme, emergency_fund_goal, variable_income, variable_spending
		FROM user_settings
		ORDER BY user_id`)
	return out, err
}
