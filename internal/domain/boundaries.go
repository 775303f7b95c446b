package domain

import "sort"

// Boundaries maps a boundary name to its required value. A missing key is
// unconstrained; only true entries restrict a session.
type Boundaries map[string]bool

func (b Boundaries) Clone() Boundaries {
	out := make(Boundaries, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (b Boundaries) Equal(other Boundaries) bool {
	if len(b) != len(other) {
		return false
	}
	for k, v := range b {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Restrictions returns the sorted keys that are required to hold.
func (b Boundaries) Restrictions() []string {
	keys := make([]string, 0, len(b))
	for k, required := range b {
		if required {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// IsCompliant reports whether every required boundary is held true in live.
func IsCompliant(b Boundaries, live map[string]bool) bool {
	for k, required := range b {
		if required && !live[k] {
			return false
		}
	}
	return true
}

// Violations returns the sorted required keys that live does not hold.
func Violations(b Boundaries, live map[string]bool) []string {
	var violated []string
	for k, required := range b {
		if required && !live[k] {
			violated = append(violated, k)
		}
	}
	sort.Strings(violated)
	return violated
}

// Dropped returns the sorted restrictions of baseline that proposed no longer
// holds.
func Dropped(proposed, baseline Boundaries) []string {
	var dropped []string
	for k, required := range baseline {
		if required && !proposed[k] {
			dropped = append(dropped, k)
		}
	}
	sort.Strings(dropped)
	return dropped
}

// IsExpansion reports whether proposed drops or weakens a restriction present
// in baseline. Adding restrictions is never an expansion.
func IsExpansion(proposed, baseline Boundaries) bool {
	for k, required := range baseline {
		if required && !proposed[k] {
			return true
		}
	}
	return false
}
