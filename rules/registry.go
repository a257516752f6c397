package rules

import (
	"github.com/brutalist-labs/dtre/dtre"
)

// Registry holds every rule-set version a caller has registered, keyed
// by Version, and enforces the one invariant this module owns: a given
// Version may be registered at most once. Registration order is not
// significant — lookups are always by explicit Version, never by
// position — unlike the teacher engine's declaration-ordered sync list,
// because rule-set versions have no evaluation-priority relationship to
// each other; they are alternatives, not a pipeline.
type Registry struct {
	sets map[Version]RuleSet
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[Version]RuleSet)}
}

// Register adds rs under version v. Returns a *dtre.RegistrationError if
// v is already registered or rs is nil.
func (r *Registry) Register(v Version, rs RuleSet) error {
	if _, exists := r.sets[v]; exists {
		return &dtre.RegistrationError{RuleVersion: v.String(), Message: "version already registered"}
	}
	if rs == nil {
		return &dtre.RegistrationError{RuleVersion: v.String(), Message: "rule set is nil"}
	}
	r.sets[v] = rs
	return nil
}

// Lookup returns the RuleSet registered for v, and whether it was found.
func (r *Registry) Lookup(v Version) (RuleSet, bool) {
	rs, ok := r.sets[v]
	return rs, ok
}

// Versions returns every registered version, in ascending order.
func (r *Registry) Versions() []Version {
	out := make([]Version, 0, len(r.sets))
	for v := range r.sets {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Compare(out[j-1]) < 0; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Len returns the number of registered versions.
func (r *Registry) Len() int {
	return len(r.sets)
}
