package metrics

import (
	"encoding/json"
	"strings"
)

// Set is an ordered set of metric names
type Set []string

// Valid metric sets per model family
var (
	Regression     = Set{"mse", "mae", "r2"}
	Classification = Set{"accuracy", "precision", "recall", "f1_score", "confusion_matrix"}
	ErrorBased     = Set{"r2_score", "mse", "rmse"}
	Network        = Set{"mse", "r2", "accuracy", "f1_score", "confusion_matrix"}
)

// Contains reports whether name is in the set
func (s Set) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

// Intersect returns the members of s that are also in other, in s order
func (s Set) Intersect(other Set) Set {
	var out Set
	for _, n := range s {
		if other.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// Normalize lower-cases a metric name and replaces spaces with underscores
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ParseRequest reads a client metric request. An empty value means no
// request; a JSON list or JSON string is decoded; anything else is treated
// as a comma or semicolon separated list. Undecodable JSON yields no request.
func ParseRequest(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	switch raw[0] {
	case '[':
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil
		}
		return names
	case '"':
		var name string
		if err := json.Unmarshal([]byte(raw), &name); err != nil {
			return nil
		}
		return []string{name}
	}

	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
}

// Select intersects the normalized request with valid. An empty request or
// an empty intersection selects the whole valid set.
func Select(requested []string, valid Set) Set {
	wanted := make(Set, 0, len(requested))
	for _, name := range requested {
		wanted = append(wanted, Normalize(name))
	}

	selected := valid.Intersect(wanted)
	if len(selected) == 0 {
		return append(Set(nil), valid...)
	}
	return selected
}
