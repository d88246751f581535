package model

import "sort"

// Feature names an optional capability unlocked with points.
type Feature string

const (
	FeaturePremiumCategories    Feature = "premiumCategories"
	FeatureBudgetAnalysis       Feature = "budgetAnalysis"
	FeaturePersonalizedAdvice   Feature = "personalizedAdvice"
	FeatureGoalTracking         Feature = "goalTracking"
	FeatureThemesSkins          Feature = "themesSkins"
	FeatureProfileCustomization Feature = "profileCustomization"
	FeatureCustomNotifications  Feature = "customNotifications"
)

// Features lists every known feature flag.
func Features() []Feature {
	return []Feature{
		FeaturePremiumCategories,
		FeatureBudgetAnalysis,
		FeaturePersonalizedAdvice,
		FeatureGoalTracking,
		FeatureThemesSkins,
		FeatureProfileCustomization,
		FeatureCustomNotifications,
	}
}

// FeatureSet is the set of permanently unlocked features. A flag, once
// present, is never removed.
type FeatureSet map[Feature]bool

// Has reports whether f is unlocked.
func (s FeatureSet) Has(f Feature) bool {
	return s[f]
}

// Clone returns an independent copy of s.
func (s FeatureSet) Clone() FeatureSet {
	out := make(FeatureSet, len(s))
	for f, on := range s {
		if on {
			out[f] = true
		}
	}
	return out
}

// Unlock returns a copy of s with f set. It reports whether f was newly set.
func (s FeatureSet) Unlock(f Feature) (FeatureSet, bool) {
	out := s.Clone()
	if out[f] {
		return out, false
	}
	out[f] = true
	return out, true
}

// Merge returns the union of s and other. Flags are never dropped.
func (s FeatureSet) Merge(other FeatureSet) FeatureSet {
	out := s.Clone()
	for f, on := range other {
		if on {
			out[f] = true
		}
	}
	return out
}

// List returns the unlocked features in a stable order.
func (s FeatureSet) List() []Feature {
	out := make([]Feature, 0, len(s))
	for f, on := range s {
		if on {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BoolMap converts the set into the map stored on the aggregate record.
func (s FeatureSet) BoolMap() map[string]bool {
	m := make(map[string]bool, len(s))
	for f, on := range s {
		if on {
			m[string(f)] = true
		}
	}
	return m
}
