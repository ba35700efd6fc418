package migration

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/farxc/household-migrator/internal/metrics"
	"github.com/farxc/household-migrator/internal/store"
	"github.com/farxc/household-migrator/internal/store/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const silvaHousehold = `{
	"id": "h1",
	"name": "Silva",
	"joinCode": "AB12CD",
	"members": [
		{"id": "u1", "role": "owner", "name": "João", "email": "j@x.com",
		 "incomeSources": [{"id": "i1", "name": "Salary", "amount": 3000}]}
	]
}`

const silvaFinance = `{
	"accounts": [{"id": "a1", "name": "Checking", "balance": 500, "type": "checking"}],
	"goals": [{"id": "g1", "name": "House", "category": "mortgage", "targetAmount": 100000}]
}`

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestRunner(t *testing.T, source store.Source, dest *store.Storage, opts ...Option) *Runner {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(source, dest, opts...)
}

func TestRunMigratesHouseholdAndFinance(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", silvaHousehold))
	require.NoError(t, source.Put("user/u1/finance", silvaFinance))

	summary, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{Trigger: store.TriggerTypeCLI})
	require.NoError(t, err)

	assert.Equal(t, &Summary{
		Users:         1,
		Households:    1,
		Members:       1,
		IncomeSources: 1,
		Accounts:      1,
		Goals:         1,
		Settings:      1,
		Errors:        []string{},
	}, summary)

	households, _ := db.ListHouseholds(ctx)
	require.Len(t, households, 1)
	assert.Equal(t, "Silva", households[0].Name)
	assert.Equal(t, "AB12CD", households[0].JoinCode)
	require.NotNil(t, households[0].OwnerID)
	assert.Equal(t, "u1", *households[0].OwnerID)

	accounts, _ := db.ListAccounts(ctx)
	require.Len(t, accounts, 1)
	require.NotNil(t, accounts[0].HouseholdID)
	assert.Equal(t, "h1", *accounts[0].HouseholdID)
	assert.Equal(t, "u1", accounts[0].OwnerID)
	assert.True(t, accounts[0].IncludeInHousehold)
	assert.True(t, accounts[0].AnnualYield.IsZero())
	assert.True(t, accounts[0].Balance.Equal(decimal.NewFromInt(500)))

	goals, _ := db.ListGoals(ctx)
	require.Len(t, goals, 1)
	require.NotNil(t, goals[0].HouseholdID)
	assert.Equal(t, "h1", *goals[0].HouseholdID)
	assert.False(t, goals[0].IsMain)
	assert.True(t, goals[0].CurrentAmount.IsZero())

	incomes, _ := db.ListIncomeSources(ctx)
	require.Len(t, incomes, 1)
	assert.Equal(t, "u1", incomes[0].UserID)
	assert.True(t, incomes[0].Amount.Equal(decimal.NewFromInt(3000)))

	settings, _ := db.ListSettings(ctx)
	require.Len(t, settings, 1)
	assert.Equal(t, "EUR", settings[0].Currency)
	assert.Equal(t, "light", settings[0].Theme)
	assert.True(t, settings[0].EmergencyFundGoal.Equal(decimal.NewFromInt(10000)))
	assert.False(t, settings[0].VariableIncome)
	assert.True(t, settings[0].VariableSpending.IsZero())
}

func TestRunIgnoresUnrecognisedKeys(t *testing.T) {
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/meta", `{"id": "h1"}`))
	require.NoError(t, source.Put("user/u1/profile", `not json at all`))
	require.NoError(t, source.Put("settings", `{}`))
	require.NoError(t, source.Put("household//data", `{}`))
	require.NoError(t, source.Put("user/u1/finance/extra", `{}`))

	summary, err := newTestRunner(t, source, memory.NewStorage()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Zero(t, summary.Total())
	assert.Empty(t, summary.Errors)
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", `{
		"id": "h1", "name": "Silva", "joinCode": "AB12CD",
		"members": [{"id": "u1", "role": "owner", "name": "João", "email": "j@x.com"}],
		"monthlySnapshots": [{"month": "2025-01", "netWorth": 12000, "totalCash": 3000}]
	}`))
	require.NoError(t, source.Put("user/u1/finance", silvaFinance))

	clock := fixedNow
	runner := New(source, db.Storage(), WithClock(func() time.Time {
		clock = clock.Add(4 * time.Hour)
		return clock
	}))
	_, err := runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	snapshot := dumpTables(t, db)

	second, err := runner.Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, snapshot, dumpTables(t, db))
	assert.Equal(t, 0, second.Users, "existing users are not created again")
	assert.Equal(t, 1, second.Households)
	assert.Equal(t, 1, second.Accounts)
	assert.Equal(t, 1, second.Snapshots)
	assert.Empty(t, second.Errors)
}

func TestRunSnapshotWithUnparsableMonthAndNoTimestamp(t *testing.T) {
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", `{
		"id": "h1", "name": "Silva",
		"monthlySnapshots": [{"month": "Jan 2025", "netWorth": 1}, {"month": "2025-02", "netWorth": 2}]
	}`))

	summary, err := newTestRunner(t, source, memory.NewStorage()).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Snapshots)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, `snapshot h1/Jan 2025: invalid month "Jan 2025"`, summary.Errors[0])
}

// cancellingSource cancels the caller's context once the entries are read.
type cancellingSource struct {
	*memory.Source
	cancel context.CancelFunc
}

func (s cancellingSource) ListEntries(ctx context.Context) ([]store.Entry, error) {
	entries, err := s.Source.ListEntries(ctx)
	s.cancel()
	return entries, err
}

// ctxHouseholds and ctxRuns fail like a database driver once ctx is done.
type ctxHouseholds struct {
	*memory.DB
}

func (h ctxHouseholds) UpsertHousehold(ctx context.Context, household *store.Household) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.DB.UpsertHousehold(ctx, household)
}

type ctxRuns struct {
	*memory.DB
}

func (r ctxRuns) FinishRun(ctx context.Context, run *store.MigrationRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.DB.FinishRun(ctx, run)
}

func TestRunIsNotAbortedByCallerCancellation(t *testing.T) {
	db := memory.NewDB()
	dest := db.Storage()
	dest.Households = ctxHouseholds{DB: db}
	dest.MigrationRuns = ctxRuns{DB: db}

	inner := memory.NewSource()
	require.NoError(t, inner.Put("household/h1/data", silvaHousehold))
	require.NoError(t, inner.Put("user/u1/finance", silvaFinance))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	source := cancellingSource{Source: inner, cancel: cancel}

	summary, err := newTestRunner(t, source, dest).Run(ctx, RunOptions{})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, 1, summary.Households)
	assert.Empty(t, summary.Errors)

	runs, _ := db.GetLatest(context.Background(), 10)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusSuccess, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestRunHouseholdMembersUsersAndIncome(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	_, err := db.CreateIfAbsent(ctx, &store.User{ID: "u2", Name: "Existing", Email: "old@x.com"})
	require.NoError(t, err)

	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", `{
		"id": "h1", "name": "Costa", "joinCode": "ZZ99",
		"members": [
			{"id": "u1", "role": "owner", "name": "Ana", "email": "a@x.com",
			 "incomeSources": [{"id": "i1", "name": "Salary", "amount": 2500}, {"id": "i2", "name": "Rent", "amount": "450.50"}]},
			{"id": "u2", "role": "member", "name": "Bruno", "email": "b@x.com",
			 "incomeSources": [{"id": "i3", "name": "Freelance", "amount": 800}]}
		],
		"monthlySnapshots": [
			{"month": "2025-01", "netWorth": 12000, "totalCash": 3000, "timestamp": 1735689600000},
			{"month": "2025-02", "netWorth": 12500, "totalCash": 3100, "timestamp": "2025-02-28T10:00:00Z"},
			{"month": "2025-03", "netWorth": 13000, "totalCash": 3200}
		]
	}`))

	summary, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Members)
	assert.Equal(t, 1, summary.Users)
	assert.Equal(t, 3, summary.IncomeSources)
	assert.Equal(t, 3, summary.Snapshots)
	assert.Empty(t, summary.Errors)

	users, _ := db.ListUsers(ctx)
	require.Len(t, users, 2)
	assert.Equal(t, "Existing", users[1].Name, "present users are left untouched")

	members, _ := db.ListMembers(ctx)
	require.Len(t, members, 2)
	assert.Equal(t, "owner", members[0].Role)
	assert.Equal(t, "member", members[1].Role)

	snapshots, _ := db.ListSnapshots(ctx)
	require.Len(t, snapshots, 3)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), snapshots[0].RecordedAt)
	assert.Equal(t, time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC), snapshots[1].RecordedAt)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), snapshots[2].RecordedAt, "defaults to the start of the month")
}

func TestRunSkipsGoalsForNonOwner(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", `{
		"id": "h1", "name": "Costa",
		"members": [{"id": "u1", "role": "owner"}, {"id": "u2", "role": "member"}]
	}`))
	require.NoError(t, source.Put("user/u2/finance", `{
		"accounts": [{"id": "a2", "name": "Savings", "balance": 10}],
		"recurringCosts": [{"id": "c1", "name": "Gym", "amount": 30, "category": "health"}],
		"debts": [{"id": "d1", "name": "Loan", "totalAmount": 5000, "remainingAmount": 4000, "monthlyPayment": 200}],
		"goals": [{"id": "g1", "name": "Trip", "targetAmount": 2000}, {"id": "g2", "name": "Car", "targetAmount": 9000}]
	}`))

	summary, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Goals)
	assert.Equal(t, 1, summary.Accounts)
	assert.Equal(t, 1, summary.RecurringCosts)
	assert.Equal(t, 1, summary.Debts)
	assert.Equal(t, 1, summary.Settings)
	assert.Empty(t, summary.Errors)

	goals, _ := db.ListGoals(ctx)
	assert.Empty(t, goals)

	debts, _ := db.ListDebts(ctx)
	require.Len(t, debts, 1)
	assert.True(t, debts[0].InterestRate.IsZero())
	require.NotNil(t, debts[0].HouseholdID)
	assert.Equal(t, "h1", *debts[0].HouseholdID)
}

func TestRunRechecksRoleBeforeGoals(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	require.NoError(t, db.UpsertMember(ctx, &store.Member{HouseholdID: "h1", UserID: "u1", Role: store.RoleOwner}))

	source := memory.NewSource()
	require.NoError(t, source.Put("user/u1/finance", `{"goals": [{"id": "g1", "name": "House", "targetAmount": 1}]}`))

	summary, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Goals, "membership written before this run still counts")
}

func TestRunWithoutMembershipWritesNullHousehold(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	require.NoError(t, source.Put("user/u9/finance", `{
		"accounts": [{"id": "a9", "name": "Wallet", "includeInHousehold": false, "annualYield": 1.5}],
		"goals": [{"id": "g9", "name": "Solo"}],
		"currency": "BRL", "theme": "dark", "emergencyFundGoal": 5000,
		"hasVariableIncome": true, "variableSpending": 250
	}`))

	summary, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Accounts)
	assert.Equal(t, 0, summary.Goals)
	assert.Empty(t, summary.Errors)

	accounts, _ := db.ListAccounts(ctx)
	require.Len(t, accounts, 1)
	assert.Nil(t, accounts[0].HouseholdID)
	assert.False(t, accounts[0].IncludeInHousehold)
	assert.True(t, accounts[0].AnnualYield.Equal(decimal.RequireFromString("1.5")))

	settings, _ := db.ListSettings(ctx)
	require.Len(t, settings, 1)
	assert.Equal(t, "u9", settings[0].UserID)
	assert.Equal(t, "BRL", settings[0].Currency)
	assert.Equal(t, "dark", settings[0].Theme)
	assert.True(t, settings[0].EmergencyFundGoal.Equal(decimal.NewFromInt(5000)))
	assert.True(t, settings[0].VariableIncome)
	assert.True(t, settings[0].VariableSpending.Equal(decimal.NewFromInt(250)))
}

func TestRunMalformedPayloadIsOneErrorPerKey(t *testing.T) {
	ctx := context.Background()
	source := memory.NewSource()
	require.NoError(t, source.Put("household/bad/data", `{"id": "bad", "members": [`))
	require.NoError(t, source.Put("household/shape/data", `{"id": "shape", "members": "everyone"}`))
	require.NoError(t, source.Put("household/h1/data", silvaHousehold))
	require.NoError(t, source.Put("user/u1/finance", `[1, 2, 3]`))
	require.NoError(t, source.Put("user/u2/finance", `null`))

	summary, err := newTestRunner(t, source, memory.NewStorage()).Run(ctx, RunOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Errors, 4)
	assert.Contains(t, summary.Errors[0], "household/bad/data")
	assert.Contains(t, summary.Errors[1], "household/shape/data")
	assert.Contains(t, summary.Errors[2], "user/u1/finance")
	assert.Contains(t, summary.Errors[3], "user/u2/finance")
	assert.Equal(t, 1, summary.Households, "later keys are still processed")
	assert.Equal(t, 1, summary.Members)
}

func TestRunDecodesStringEncodedPayloads(t *testing.T) {
	ctx := context.Background()
	householdJSON, err := json.Marshal(silvaHousehold)
	require.NoError(t, err)
	financeJSON, err := json.Marshal(silvaFinance)
	require.NoError(t, err)

	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", householdJSON))
	require.NoError(t, source.Put("user/u1/finance", financeJSON))

	summary, err := newTestRunner(t, source, memory.NewStorage()).Run(ctx, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Households)
	assert.Equal(t, 1, summary.Goals)
	assert.Empty(t, summary.Errors)
}

func TestRunUsesKeyIDWhenDocumentHasNone(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h7/data", `{"name": "Keyed", "members": [{"id": "u7"}]}`))

	_, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{})
	require.NoError(t, err)

	households, _ := db.ListHouseholds(ctx)
	require.Len(t, households, 1)
	assert.Equal(t, "h7", households[0].ID)
	assert.Nil(t, households[0].OwnerID)

	members, _ := db.ListMembers(ctx)
	require.Len(t, members, 1)
	assert.Equal(t, "member", members[0].Role)
}

type failingAccounts struct {
	*memory.DB
	failID string
}

func (f failingAccounts) UpsertAccount(ctx context.Context, a *store.Account) error {
	if a.ID == f.failID {
		return errors.New("duplicate key value violates unique constraint")
	}
	return f.DB.UpsertAccount(ctx, a)
}

func TestRunRecordFailureDoesNotStopSiblings(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	dest := db.Storage()
	dest.Accounts = failingAccounts{DB: db, failID: "a2"}

	source := memory.NewSource()
	require.NoError(t, source.Put("user/u1/finance", `{
		"accounts": [{"id": "a1"}, {"id": "a2"}, {"id": "a3"}, {"name": "no id"}]
	}`))

	summary, err := newTestRunner(t, source, dest).Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Accounts)
	assert.Equal(t, 1, summary.Settings)
	require.Len(t, summary.Errors, 2)
	assert.Equal(t, "account a2: duplicate key value violates unique constraint", summary.Errors[0])
	assert.Equal(t, "account #3 in user/u1/finance: missing id", summary.Errors[1])
}

type failingMembers struct {
	*memory.DB
}

func (failingMembers) FindByUser(context.Context, string) (*store.Member, error) {
	return nil, errors.New("connection reset")
}

func TestRunMembershipLookupFailureKeepsRecords(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	dest := db.Storage()
	dest.Members = failingMembers{DB: db}

	source := memory.NewSource()
	require.NoError(t, source.Put("user/u1/finance", `{"accounts": [{"id": "a1"}], "goals": [{"id": "g1"}]}`))

	summary, err := newTestRunner(t, source, dest).Run(ctx, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Accounts)
	assert.Equal(t, 0, summary.Goals)
	require.Len(t, summary.Errors, 1)
	assert.True(t, strings.HasPrefix(summary.Errors[0], "membership u1:"))

	accounts, _ := db.ListAccounts(ctx)
	require.Len(t, accounts, 1)
	assert.Nil(t, accounts[0].HouseholdID)
}

func TestRunSourceFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	source.Fail(errors.New("permission denied for table kv_store"))

	summary, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{Trigger: store.TriggerTypeAPI})
	assert.Nil(t, summary)
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorContains(t, err, "permission denied")

	runs, _ := db.GetLatest(ctx, 10)
	require.Len(t, runs, 1)
	assert.Equal(t, store.StatusFailure, runs[0].Status)
	assert.Equal(t, store.TriggerTypeAPI, runs[0].TriggerType)
}

func TestRunRecordsHistory(t *testing.T) {
	ctx := context.Background()
	db := memory.NewDB()
	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", silvaHousehold))
	require.NoError(t, source.Put("user/u1/finance", `{broken`))

	_, err := newTestRunner(t, source, db.Storage()).Run(ctx, RunOptions{Trigger: store.TriggerTypeAPI, TriggeredBy: "admin-1"})
	require.NoError(t, err)

	runs, _ := db.GetLatest(ctx, 10)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, store.StatusPartial, run.Status)
	assert.Equal(t, "admin-1", run.TriggeredBy)
	assert.Equal(t, 1, run.ErrorCount)
	require.NotNil(t, run.FinishedAt)

	var recorded Summary
	require.NoError(t, run.Summary.Unmarshal(&recorded))
	assert.Equal(t, 1, recorded.Households)
	assert.Len(t, recorded.Errors, 1)
}

func TestRunWithoutHistoryStore(t *testing.T) {
	dest := memory.NewStorage()
	dest.MigrationRuns = nil

	summary, err := newTestRunner(t, memory.NewSource(), dest).Run(context.Background(), RunOptions{})
	require.NoError(t, err)
	assert.Zero(t, summary.Total())
}

func TestRunFeedsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewMigrationMetrics(registry)
	require.NoError(t, err)

	source := memory.NewSource()
	require.NoError(t, source.Put("household/h1/data", silvaHousehold))
	require.NoError(t, source.Put("user/u1/finance", `{oops`))

	_, err = newTestRunner(t, source, memory.NewStorage(), WithMetrics(m)).Run(context.Background(), RunOptions{})
	require.NoError(t, err)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["migration_runs_total"])
	assert.True(t, names["migration_records_total"])
	assert.True(t, names["migration_malformed_keys_total"])
}

func TestSummaryJSONShape(t *testing.T) {
	out, err := json.Marshal(newSummary())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"users": 0, "households": 0, "members": 0, "incomeSources": 0,
		"accounts": 0, "recurringCosts": 0, "debts": 0, "goals": 0,
		"snapshots": 0, "settings": 0, "errors": []
	}`, string(out))
}

type tables struct {
	Households     []store.Household
	Members        []store.Member
	Users          []store.User
	IncomeSources  []store.IncomeSource
	Snapshots      []store.MonthlySnapshot
	Accounts       []store.Account
	RecurringCosts []store.RecurringCost
	Debts          []store.Debt
	Goals          []store.Goal
	Settings       []store.UserSettings
}

func dumpTables(t *testing.T, db *memory.DB) tables {
	t.Helper()
	ctx := context.Background()

	var out tables
	var err error
	out.Households, err = db.ListHouseholds(ctx)
	require.NoError(t, err)
	out.Members, _ = db.ListMembers(ctx)
	out.Users, _ = db.ListUsers(ctx)
	out.IncomeSources, _ = db.ListIncomeSources(ctx)
	out.Snapshots, _ = db.ListSnapshots(ctx)
	out.Accounts, _ = db.ListAccounts(ctx)
	out.RecurringCosts, _ = db.ListRecurringCosts(ctx)
	out.Debts, _ = db.ListDebts(ctx)
	out.Goals, _ = db.ListGoals(ctx)
	out.Settings, _ = db.ListSettings(ctx)
	return out
}
