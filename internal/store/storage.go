package store

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("store: not found")

var (
	TriggerTypeAPI = "api"
	TriggerTypeCLI = "cli"
)

var (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusPartial    = "partial"
	StatusFailure    = "failure"
)

// RoleOwner is the household role allowed to own goals.
const RoleOwner = "owner"

// Source is the legacy key-value table being migrated away from.
type Source interface {
	ListEntries(ctx context.Context) ([]Entry, error)
}

type Storage struct {
	Households interface {
		UpsertHousehold(ctx context.Context, household *Household) error
		ListHouseholds(ctx context.Context) ([]Household, error)
	}

	Members interface {
		UpsertMember(ctx context.Context, member *Member) error
		// FindByUser returns the membership with the lowest household id.
		FindByUser(ctx context.Context, userID string) (*Member, error)
		Role(ctx context.Context, householdID, userID string) (string, error)
		ListMembers(ctx context.Context) ([]Member, error)
	}

	Users interface {
		// CreateIfAbsent reports whether a new row was written.
		CreateIfAbsent(ctx context.Context, user *User) (bool, error)
		ListUsers(ctx context.Context) ([]User, error)
	}

	IncomeSources interface {
		UpsertIncomeSource(ctx context.Context, income *IncomeSource) error
		ListIncomeSources(ctx context.Context) ([]IncomeSource, error)
	}

	Snapshots interface {
		UpsertSnapshot(ctx context.Context, snapshot *MonthlySnapshot) error
		ListSnapshots(ctx context.Context) ([]MonthlySnapshot, error)
	}

	Accounts interface {
		UpsertAccount(ctx context.Context, account *Account) error
		ListAccounts(ctx context.Context) ([]Account, error)
	}

	RecurringCosts interface {
		UpsertRecurringCost(ctx context.Context, cost *RecurringCost) error
		ListRecurringCosts(ctx context.Context) ([]RecurringCost, error)
	}

	Debts interface {
		UpsertDebt(ctx context.Context, debt *Debt) error
		ListDebts(ctx context.Context) ([]Debt, error)
	}

	Goals interface {
		UpsertGoal(ctx context.Context, goal *Goal) error
		ListGoals(ctx context.Context) ([]Goal, error)
	}

	Settings interface {
		UpsertSettings(ctx context.Context, settings *UserSettings) error
		ListSettings(ctx context.Context) ([]UserSettings, error)
	}

	MigrationRuns interface {
		StartRun(ctx context.Context, run *MigrationRun) error
		FinishRun(ctx context.Context, run *MigrationRun) error
		GetLatest(ctx context.Context, limit int) ([]MigrationRun, error)
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Households:     &HouseholdStore{db: db},
		Members:        &MemberStore{db: db},
		Users:          &UserStore{db: db},
		IncomeSources:  &IncomeSourceStore{db: db},
		Snapshots:      &SnapshotStore{db: db},
		Accounts:       &AccountStore{db: db},
		RecurringCosts: &RecurringCostStore{db: db},
		Debts:          &DebtStore{db: db},
		Goals:          &GoalStore{db: db},
		Settings:       &SettingsStore{db: db},
		MigrationRuns:  &MigrationRunStore{db: db},
	}
}
