package migration

import "strings"

// KeyKind classifies a legacy key-value key.
type KeyKind int

const (
	KindUnknown KeyKind = iota
	KindHousehold
	KindUserFinance
)

func (k KeyKind) String() string {
	switch k {
	case KindHousehold:
		return "household"
	case KindUserFinance:
		return "finance"
	default:
		return "unknown"
	}
}

// Key is a parsed source key: household/{id}/data or user/{id}/finance.
type Key struct {
	Raw  string
	Kind KeyKind
	ID   string
}

// ParseKey reports false for anything that is not exactly one of the two
// recognised three-segment patterns with a non-empty id.
func ParseKey(raw string) (Key, bool) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 || parts[1] == "" {
		return Key{Raw: raw}, false
	}

	switch {
	case parts[0] == "household" && parts[2] == "data":
		return Key{Raw: raw, Kind: KindHousehold, ID: parts[1]}, true
	case parts[0] == "user" && parts[2] == "finance":
		return Key{Raw: raw, Kind: KindUserFinance, ID: parts[1]}, true
	default:
		return Key{Raw: raw}, false
	}
}
