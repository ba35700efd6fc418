package migration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

var errEmptyPayload = errors.New("empty payload")

type householdDocument struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	JoinCode         string             `json:"joinCode"`
	Members          []memberDocument   `json:"members"`
	MonthlySnapshots []snapshotDocument `json:"monthlySnapshots"`
}

type memberDocument struct {
	ID            string                 `json:"id"`
	Role          string                 `json:"role"`
	Name          string                 `json:"name"`
	Email         string                 `json:"email"`
	IncomeSources []incomeSourceDocument `json:"incomeSources"`
}

type incomeSourceDocument struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type snapshotDocument struct {
	Month     string          `json:"month"`
	NetWorth  decimal.Decimal `json:"netWorth"`
	TotalCash decimal.Decimal `json:"totalCash"`
	Timestamp timestamp       `json:"timestamp"`
}

type financeDocument struct {
	Accounts       []accountDocument       `json:"accounts"`
	RecurringCosts []recurringCostDocument `json:"recurringCosts"`
	Debts          []debtDocument          `json:"debts"`
	Goals          []goalDocument          `json:"goals"`

	Currency          string              `json:"currency"`
	Theme             string              `json:"theme"`
	EmergencyFundGoal decimal.NullDecimal `json:"emergencyFundGoal"`
	HasVariableIncome *bool               `json:"hasVariableIncome"`
	VariableSpending  decimal.NullDecimal `json:"variableSpending"`
}

type accountDocument struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Balance            decimal.Decimal `json:"balance"`
	Institution        string          `json:"institution"`
	Type               string          `json:"type"`
	Currency           string          `json:"currency"`
	IncludeInHousehold *bool           `json:"includeInHousehold"`
	AnnualYield        decimal.Decimal `json:"annualYield"`
}

type recurringCostDocument struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Amount             decimal.Decimal `json:"amount"`
	Category           string          `json:"category"`
	IncludeInHousehold *bool           `json:"includeInHousehold"`
}

type debtDocument struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	RemainingAmount    decimal.Decimal `json:"remainingAmount"`
	MonthlyPayment     decimal.Decimal `json:"monthlyPayment"`
	InterestRate       decimal.Decimal `json:"interestRate"`
	IncludeInHousehold *bool           `json:"includeInHousehold"`
}

type goalDocument struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	IsMain        bool                `json:"isMain"`
	TargetAmount  decimal.Decimal     `json:"targetAmount"`
	CurrentAmount decimal.Decimal     `json:"currentAmount"`
	Deadline      *string             `json:"deadline"`
	PropertyValue decimal.NullDecimal `json:"propertyValue"`
}

// timestamp accepts RFC 3339 strings and epoch milliseconds.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	ms, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	if math.IsNaN(ms) || ms < math.MinInt64 || ms >= math.MaxInt64 {
		return fmt.Errorf("timestamp %s out of range", data)
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// monthStart returns the first instant of a "2006-01" or "2006-01-02" month in UTC.
func monthStart(month string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, month); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid month %q", month)
}

// decodePayload unmarshals a source value into v. Values stored as a JSON
// string holding the document are unwrapped once.
func decodePayload(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return errEmptyPayload
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return errEmptyPayload
		}
	}

	if raw[0] != '{' {
		return fmt.Errorf("expected a JSON object, got %q", firstByte(raw))
	}
	return json.Unmarshal(raw, v)
}

func firstByte(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return string(b[:1])
}

// text normalises free-form names to NFC.
func text(s string) string {
	return norm.NFC.String(s)
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func stringOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func decimalOr(v decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if !v.Valid {
		return fallback
	}
	return v.Decimal
}
