package migration

import "fmt"

// entity pairs the summary counter a record feeds with the singular label
// used in error messages.
type entity struct {
	name  string
	label string
}

var (
	entityUser          = entity{"users", "user"}
	entityHousehold     = entity{"households", "household"}
	entityMember        = entity{"members", "member"}
	entityIncomeSource  = entity{"incomeSources", "income source"}
	entityAccount       = entity{"accounts", "account"}
	entityRecurringCost = entity{"recurringCosts", "recurring cost"}
	entityDebt          = entity{"debts", "debt"}
	entityGoal          = entity{"goals", "goal"}
	entitySnapshot      = entity{"snapshots", "snapshot"}
	entitySettings      = entity{"settings", "settings"}
)

// Summary counts successful writes per entity and lists every per-record
// failure. Errors and counts can coexist: a run with errors still reports
// what it wrote.
type Summary struct {
	Users          int      `json:"users"`
	Households     int      `json:"households"`
	Members        int      `json:"members"`
	IncomeSources  int      `json:"incomeSources"`
	Accounts       int      `json:"accounts"`
	RecurringCosts int      `json:"recurringCosts"`
	Debts          int      `json:"debts"`
	Goals          int      `json:"goals"`
	Snapshots      int      `json:"snapshots"`
	Settings       int      `json:"settings"`
	Errors         []string `json:"errors"`
}

func newSummary() *Summary {
	return &Summary{Errors: []string{}}
}

func (s *Summary) increment(e entity) {
	switch e {
	case entityUser:
		s.Users++
	case entityHousehold:
		s.Households++
	case entityMember:
		s.Members++
	case entityIncomeSource:
		s.IncomeSources++
	case entityAccount:
		s.Accounts++
	case entityRecurringCost:
		s.RecurringCosts++
	case entityDebt:
		s.Debts++
	case entityGoal:
		s.Goals++
	case entitySnapshot:
		s.Snapshots++
	case entitySettings:
		s.Settings++
	}
}

func (s *Summary) addError(format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	s.Errors = append(s.Errors, msg)
	return msg
}

// Total is the number of records written across all entities.
func (s *Summary) Total() int {
	return s.Users + s.Households + s.Members + s.IncomeSources + s.Accounts +
		s.RecurringCosts + s.Debts + s.Goals + s.Snapshots + s.Settings
}
