package store

import (
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Entry is one row of the legacy key-value table.
type Entry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Household represents the 'households' table.
type Household struct {
	ID       string  `db:"id" json:"id"`
	Name     string  `db:"name" json:"name"`
	JoinCode string  `db:"join_code" json:"join_code"`
	OwnerID  *string `db:"owner_id" json:"owner_id"`
}

// Member represents the 'household_members' join table, unique per (household_id, user_id).
type Member struct {
	HouseholdID string `db:"household_id" json:"household_id"`
	UserID      string `db:"user_id" json:"user_id"`
	Role        string `db:"role" json:"role"`
}

// User represents the 'users' table.
type User struct {
	ID    string `db:"id" json:"id"`
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// IncomeSource represents the 'income_sources' table.
type IncomeSource struct {
	ID     string          `db:"id" json:"id"`
	UserID string          `db:"user_id" json:"user_id"`
	Name   string          `db:"name" json:"name"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

// MonthlySnapshot represents the 'monthly_snapshots' table, unique per (household_id, month).
type MonthlySnapshot struct {
	HouseholdID string          `db:"household_id" json:"household_id"`
	Month       string          `db:"month" json:"month"`
	NetWorth    decimal.Decimal `db:"net_worth" json:"net_worth"`
	TotalCash   decimal.Decimal `db:"total_cash" json:"total_cash"`
	RecordedAt  time.Time       `db:"recorded_at" json:"recorded_at"`
}

// Account represents the 'accounts' table.
type Account struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	Balance            decimal.Decimal `db:"balance" json:"balance"`
	Institution        string          `db:"institution" json:"institution"`
	Type               string          `db:"type" json:"type"`
	Currency           string          `db:"currency" json:"currency"`
	OwnerID            string          `db:"owner_id" json:"owner_id"`
	HouseholdID        *string         `db:"household_id" json:"household_id"`
	IncludeInHousehold bool            `db:"include_in_household" json:"include_in_household"`
	AnnualYield        decimal.Decimal `db:"annual_yield" json:"annual_yield"`
}

// RecurringCost represents the 'recurring_costs' table.
type RecurringCost struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	Amount             decimal.Decimal `db:"amount" json:"amount"`
	Category           string          `db:"category" json:"category"`
	OwnerID            string          `db:"owner_id" json:"owner_id"`
	HouseholdID        *string         `db:"household_id" json:"household_id"`
	IncludeInHousehold bool            `db:"include_in_household" json:"include_in_household"`
}

// Debt represents the 'debts' table.
type Debt struct {
	ID                 string          `db:"id" json:"id"`
	Name               string          `db:"name" json:"name"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	RemainingAmount    decimal.Decimal `db:"remaining_amount" json:"remaining_amount"`
	MonthlyPayment     decimal.Decimal `db:"monthly_payment" json:"monthly_payment"`
	InterestRate       decimal.Decimal `db:"interest_rate" json:"interest_rate"`
	OwnerID            string          `db:"owner_id" json:"owner_id"`
	HouseholdID        *string         `db:"household_id" json:"household_id"`
	IncludeInHousehold bool            `db:"include_in_household" json:"include_in_household"`
}

// Goal represents the 'goals' table.
type Goal struct {
	ID            string              `db:"id" json:"id"`
	HouseholdID   *string             `db:"household_id" json:"household_id"`
	Name          string              `db:"name" json:"name"`
	Category      string              `db:"category" json:"category"`
	IsMain        bool                `db:"is_main" json:"is_main"`
	TargetAmount  decimal.Decimal     `db:"target_amount" json:"target_amount"`
	CurrentAmount decimal.Decimal     `db:"current_amount" json:"current_amount"`
	Deadline      *string             `db:"deadline" json:"deadline"`
	PropertyValue decimal.NullDecimal `db:"property_value" json:"property_value"`
}

// UserSettings represents the 'user_settings' table, one row per user.
type UserSettings struct {
	UserID            string          `db:"user_id" json:"user_id"`
	Currency          string          `db:"currency" json:"currency"`
	Theme             string          `db:"theme" json:"theme"`
	EmergencyFundGoal decimal.Decimal `db:"emergency_fund_goal" json:"emergency_fund_goal"`
	VariableIncome    bool            `db:"variable_income" json:"variable_income"`
	VariableSpending  decimal.Decimal `db:"variable_spending" json:"variable_spending"`
}

// MigrationRun represents the 'migration_runs' table.
type MigrationRun struct {
	ID          string         `db:"id" json:"id"`
	TriggerType string         `db:"trigger_type" json:"trigger_type"`
	TriggeredBy string         `db:"triggered_by" json:"triggered_by"`
	Status      string         `db:"status" json:"status"`
	ErrorCount  int            `db:"error_count" json:"error_count"`
	Summary     types.JSONText `db:"summary" json:"summary,omitempty"`
	StartedAt   time.Time      `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}
