package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"

	"github.com/farxc/household-migrator/internal/logger"
	"github.com/farxc/household-migrator/internal/metrics"
	"github.com/farxc/household-migrator/internal/store"
)

const component = "Migration"

// ErrSourceUnavailable wraps a failure to read the legacy store. It is the
// only error Run returns; everything else is reported in the Summary.
var ErrSourceUnavailable = errors.New("source store unavailable")

const (
	defaultRole              = "member"
	defaultCurrency          = "EUR"
	defaultTheme             = "light"
	defaultEmergencyFundGoal = 10000
)

type RunOptions struct {
	Trigger     string
	TriggeredBy string
}

// Runner copies the legacy key-value documents into the relational tables.
// A Runner performs every store call sequentially and must not be used by
// two goroutines at once.
type Runner struct {
	source  store.Source
	dest    *store.Storage
	logger  *logger.Logger
	metrics *metrics.MigrationMetrics
	now     func() time.Time
}

type Option func(*Runner)

func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func WithMetrics(m *metrics.MigrationMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(source store.Source, dest *store.Storage, opts ...Option) *Runner {
	r := &Runner{
		source: source,
		dest:   dest,
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type keyedEntry struct {
	key   Key
	value json.RawMessage
}

// Run reads the whole source, migrates every household document and then
// every finance document. Finance documents depend on the membership rows
// written by the household pass. Cancelling ctx does not stop a run that
// has started; only its values are used.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	ctx = context.WithoutCancel(ctx)
	started := r.now()
	run := r.startRun(ctx, opts, started)

	entries, err := r.source.ListEntries(ctx)
	if err != nil {
		r.logger.Error(component, "Failed to read source store: error=%v", err)
		r.finishRun(ctx, run, nil, store.StatusFailure)
		r.metrics.RecordRun(store.StatusFailure, r.now().Sub(started).Seconds())
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	r.metrics.SetSourceEntries(len(entries))

	var households, finances []keyedEntry
	for _, e := range entries {
		key, ok := ParseKey(e.Key)
		if !ok {
			r.logger.Debug(component, "Ignoring unrecognised key: key=%s", e.Key)
			continue
		}
		switch key.Kind {
		case KindHousehold:
			households = append(households, keyedEntry{key: key, value: e.Value})
		case KindUserFinance:
			finances = append(finances, keyedEntry{key: key, value: e.Value})
		}
	}

	r.logger.Info(component, "Migration started: entries=%d households=%d finances=%d trigger=%s",
		len(entries), len(households), len(finances), opts.Trigger)

	summary := newSummary()
	for _, e := range households {
		r.migrateHousehold(ctx, summary, e.key, e.value)
	}
	for _, e := range finances {
		r.migrateFinance(ctx, summary, e.key, e.value)
	}

	status := store.StatusSuccess
	if len(summary.Errors) > 0 {
		status = store.StatusPartial
	}
	r.finishRun(ctx, run, summary, status)

	duration := r.now().Sub(started)
	r.metrics.RecordRun(status, duration.Seconds())
	r.logger.Info(component, "Migration finished: status=%s written=%d errors=%d duration=%s",
		status, summary.Total(), len(summary.Errors), duration)

	return summary, nil
}

func (r *Runner) migrateHousehold(ctx context.Context, summary *Summary, key Key, raw json.RawMessage) {
	var doc householdDocument
	if err := decodePayload(raw, &doc); err != nil {
		r.malformed(summary, key, err)
		return
	}

	householdID := stringOr(doc.ID, key.ID)
	household := &store.Household{
		ID:       householdID,
		Name:     text(doc.Name),
		JoinCode: doc.JoinCode,
		OwnerID:  ownerOf(doc.Members),
	}
	r.write(summary, entityHousehold, householdID, func() error {
		return r.dest.Households.UpsertHousehold(ctx, household)
	})

	for i, m := range doc.Members {
		if m.ID == "" {
			r.missingField(summary, entityMember, "id", i, key)
			continue
		}

		member := &store.Member{
			HouseholdID: householdID,
			UserID:      m.ID,
			Role:        stringOr(m.Role, defaultRole),
		}
		r.write(summary, entityMember, householdID+"/"+m.ID, func() error {
			return r.dest.Members.UpsertMember(ctx, member)
		})

		r.createUser(ctx, summary, &store.User{ID: m.ID, Name: text(m.Name), Email: m.Email})

		for j, inc := range m.IncomeSources {
			if inc.ID == "" {
				r.missingField(summary, entityIncomeSource, "id", j, key)
				continue
			}
			income := &store.IncomeSource{
				ID:     inc.ID,
				UserID: m.ID,
				Name:   text(inc.Name),
				Amount: inc.Amount,
			}
			r.write(summary, entityIncomeSource, inc.ID, func() error {
				return r.dest.IncomeSources.UpsertIncomeSource(ctx, income)
			})
		}
	}

	for i, s := range doc.MonthlySnapshots {
		if s.Month == "" {
			r.missingField(summary, entitySnapshot, "month", i, key)
			continue
		}
		recordedAt := s.Timestamp.Time
		if recordedAt.IsZero() {
			start, err := monthStart(s.Month)
			if err != nil {
				r.fail(summary, entitySnapshot, householdID+"/"+s.Month, err)
				continue
			}
			recordedAt = start
		}
		snapshot := &store.MonthlySnapshot{
			HouseholdID: householdID,
			Month:       s.Month,
			NetWorth:    s.NetWorth,
			TotalCash:   s.TotalCash,
			RecordedAt:  recordedAt,
		}
		r.write(summary, entitySnapshot, householdID+"/"+s.Month, func() error {
			return r.dest.Snapshots.UpsertSnapshot(ctx, snapshot)
		})
	}
}

func (r *Runner) migrateFinance(ctx context.Context, summary *Summary, key Key, raw json.RawMessage) {
	var doc financeDocument
	if err := decodePayload(raw, &doc); err != nil {
		r.malformed(summary, key, err)
		return
	}

	userID := key.ID
	householdID := r.resolveHousehold(ctx, summary, userID)

	for i, a := range doc.Accounts {
		if a.ID == "" {
			r.missingField(summary, entityAccount, "id", i, key)
			continue
		}
		account := &store.Account{
			ID:                 a.ID,
			Name:               text(a.Name),
			Balance:            a.Balance,
			Institution:        text(a.Institution),
			Type:               a.Type,
			Currency:           a.Currency,
			OwnerID:            userID,
			HouseholdID:        householdID,
			IncludeInHousehold: boolOr(a.IncludeInHousehold, true),
			AnnualYield:        a.AnnualYield,
		}
		r.write(summary, entityAccount, a.ID, func() error {
			return r.dest.Accounts.UpsertAccount(ctx, account)
		})
	}

	for i, c := range doc.RecurringCosts {
		if c.ID == "" {
			r.missingField(summary, entityRecurringCost, "id", i, key)
			continue
		}
		cost := &store.RecurringCost{
			ID:                 c.ID,
			Name:               text(c.Name),
			Amount:             c.Amount,
			Category:           c.Category,
			OwnerID:            userID,
			HouseholdID:        householdID,
			IncludeInHousehold: boolOr(c.IncludeInHousehold, true),
		}
		r.write(summary, entityRecurringCost, c.ID, func() error {
			return r.dest.RecurringCosts.UpsertRecurringCost(ctx, cost)
		})
	}

	for i, d := range doc.Debts {
		if d.ID == "" {
			r.missingField(summary, entityDebt, "id", i, key)
			continue
		}
		debt := &store.Debt{
			ID:                 d.ID,
			Name:               text(d.Name),
			TotalAmount:        d.TotalAmount,
			RemainingAmount:    d.RemainingAmount,
			MonthlyPayment:     d.MonthlyPayment,
			InterestRate:       d.InterestRate,
			OwnerID:            userID,
			HouseholdID:        householdID,
			IncludeInHousehold: boolOr(d.IncludeInHousehold, true),
		}
		r.write(summary, entityDebt, d.ID, func() error {
			return r.dest.Debts.UpsertDebt(ctx, debt)
		})
	}

	if len(doc.Goals) > 0 {
		if r.isOwner(ctx, summary, householdID, userID) {
			r.migrateGoals(ctx, summary, key, householdID, doc.Goals)
		} else {
			r.logger.Debug(component, "Skipping goals of non-owner: user=%s goals=%d", userID, len(doc.Goals))
			for range doc.Goals {
				r.metrics.RecordRecord(entityGoal.name, metrics.OutcomeSkipped)
			}
		}
	}

	settings := &store.UserSettings{
		UserID:            userID,
		Currency:          stringOr(doc.Currency, defaultCurrency),
		Theme:             stringOr(doc.Theme, defaultTheme),
		EmergencyFundGoal: decimalOr(doc.EmergencyFundGoal, decimal.NewFromInt(defaultEmergencyFundGoal)),
		VariableIncome:    boolOr(doc.HasVariableIncome, false),
		VariableSpending:  decimalOr(doc.VariableSpending, decimal.Zero),
	}
	r.write(summary, entitySettings, userID, func() error {
		return r.dest.Settings.UpsertSettings(ctx, settings)
	})
}

func (r *Runner) migrateGoals(ctx context.Context, summary *Summary, key Key, householdID *string, goals []goalDocument) {
	for i, g := range goals {
		if g.ID == "" {
			r.missingField(summary, entityGoal, "id", i, key)
			continue
		}
		goal := &store.Goal{
			ID:            g.ID,
			HouseholdID:   householdID,
			Name:          text(g.Name),
			Category:      g.Category,
			IsMain:        g.IsMain,
			TargetAmount:  g.TargetAmount,
			CurrentAmount: g.CurrentAmount,
			Deadline:      g.Deadline,
			PropertyValue: g.PropertyValue,
		}
		r.write(summary, entityGoal, g.ID, func() error {
			return r.dest.Goals.UpsertGoal(ctx, goal)
		})
	}
}

// resolveHousehold returns nil when the user belongs to no household; the
// finance records are still written, just without a household.
func (r *Runner) resolveHousehold(ctx context.Context, summary *Summary, userID string) *string {
	m, err := r.dest.Members.FindByUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			msg := summary.addError("membership %s: %v", userID, err)
			r.logger.Warn(component, "Record failed: %s", msg)
		} else {
			r.logger.Debug(component, "No household membership: user=%s", userID)
		}
		return nil
	}

	householdID := m.HouseholdID
	return &householdID
}

// isOwner looks the role up again rather than trusting the household pass,
// so a role changed in the destination since then is honoured.
func (r *Runner) isOwner(ctx context.Context, summary *Summary, householdID *string, userID string) bool {
	if householdID == nil {
		return false
	}

	role, err := r.dest.Members.Role(ctx, *householdID, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			msg := summary.addError("role %s/%s: %v", *householdID, userID, err)
			r.logger.Warn(component, "Record failed: %s", msg)
		}
		return false
	}
	return role == store.RoleOwner
}

func (r *Runner) createUser(ctx context.Context, summary *Summary, user *store.User) {
	created, err := r.dest.Users.CreateIfAbsent(ctx, user)
	if err != nil {
		r.fail(summary, entityUser, user.ID, err)
		return
	}
	if !created {
		r.metrics.RecordRecord(entityUser.name, metrics.OutcomeSkipped)
		return
	}
	summary.increment(entityUser)
	r.metrics.RecordRecord(entityUser.name, metrics.OutcomeWritten)
}

func (r *Runner) write(summary *Summary, e entity, id string, upsert func() error) {
	if err := upsert(); err != nil {
		r.fail(summary, e, id, err)
		return
	}
	summary.increment(e)
	r.metrics.RecordRecord(e.name, metrics.OutcomeWritten)
}

func (r *Runner) fail(summary *Summary, e entity, id string, err error) {
	msg := summary.addError("%s %s: %v", e.label, id, err)
	r.logger.Warn(component, "Record failed: %s", msg)
	r.metrics.RecordRecord(e.name, metrics.OutcomeFailed)
}

func (r *Runner) missingField(summary *Summary, e entity, field string, index int, key Key) {
	msg := summary.addError("%s #%d in %s: missing %s", e.label, index, key.Raw, field)
	r.logger.Warn(component, "Record failed: %s", msg)
	r.metrics.RecordRecord(e.name, metrics.OutcomeFailed)
}

func (r *Runner) malformed(summary *Summary, key Key, err error) {
	msg := summary.addError("key %s: malformed payload: %v", key.Raw, err)
	r.logger.Warn(component, "Payload rejected: %s", msg)
	r.metrics.RecordMalformedKey()
}

func (r *Runner) startRun(ctx context.Context, opts RunOptions, started time.Time) *store.MigrationRun {
	if r.dest.MigrationRuns == nil {
		return nil
	}

	run := &store.MigrationRun{
		ID:          uuid.NewString(),
		TriggerType: stringOr(opts.Trigger, store.TriggerTypeCLI),
		TriggeredBy: opts.TriggeredBy,
		Status:      store.StatusInProgress,
		StartedAt:   started.UTC(),
	}
	if err := r.dest.MigrationRuns.StartRun(ctx, run); err != nil {
		r.logger.Warn(component, "Failed to record migration run start: error=%v", err)
		return nil
	}
	return run
}

func (r *Runner) finishRun(ctx context.Context, run *store.MigrationRun, summary *Summary, status string) {
	if run == nil {
		return
	}

	finished := r.now().UTC()
	run.Status = status
	run.FinishedAt = &finished
	run.Summary = types.JSONText("null")

	if summary != nil {
		run.ErrorCount = len(summary.Errors)
		if payload, err := json.Marshal(summary); err == nil {
			run.Summary = types.JSONText(payload)
		}
	}

	if err := r.dest.MigrationRuns.FinishRun(ctx, run); err != nil {
		r.logger.Warn(component, "Failed to record migration run result: id=%s error=%v", run.ID, err)
	}
}

func ownerOf(members []memberDocument) *string {
	for _, m := range members {
		if m.Role == store.RoleOwner && m.ID != "" {
			id := m.ID
			return &id
		}
	}
	return nil
}
