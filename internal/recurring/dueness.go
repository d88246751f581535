// Package recurring turns due recurring definitions into realized
// transactions through the same commit path as manual entries.
package recurring

import (
	"fmt"
	"time"

	"github.com/castlemilk/pointsledger/internal/model"
)

// DuenessChecker decides whether a definition should fire.
type DuenessChecker interface {
	IsDue(lastAdded, now time.Time) bool
}

// IntervalChecker is due once Interval has elapsed since the last firing.
// A definition that never fired is due immediately.
type IntervalChecker struct {
	Interval time.Duration
}

// IsDue reports whether now - lastAdded >= Interval.
func (c IntervalChecker) IsDue(lastAdded, now time.Time) bool {
	if lastAdded.IsZero() {
		return true
	}
	return now.Sub(lastAdded) >= c.Interval
}

var duenessStrategies = map[model.Frequency]DuenessChecker{
	model.FrequencyDaily:   IntervalChecker{Interval: model.FrequencyDaily.Interval()},
	model.FrequencyWeekly:  IntervalChecker{Interval: model.FrequencyWeekly.Interval()},
	model.FrequencyMonthly: IntervalChecker{Interval: model.FrequencyMonthly.Interval()},
}

// GetDuenessChecker returns the checker for a frequency.
func GetDuenessChecker(f model.Frequency) (DuenessChecker, error) {
	checker, ok := duenessStrategies[f]
	if !ok {
		return nil, fmt.Errorf("unsupported frequency: %q", f)
	}
	return checker, nil
}

// IsDue reports whether def should fire at now.
func IsDue(def model.RecurringDefinition, now time.Time) (bool, error) {
	checker, err := GetDuenessChecker(def.Frequency)
	if err != nil {
		return false, err
	}
	return checker.IsDue(def.LastAdded, now), nil
}
