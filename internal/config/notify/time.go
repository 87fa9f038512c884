// Package notify implements the notification rules of a bot
// configuration: firing-time arithmetic, recipient filters, message
// sources and nearest-batch selection.
package notify

import (
	"encoding/json"
	"fmt"
	"time"
)

// FireTime is a firing-time specification: either a recurring delta
// ("every H hours M minutes" since config creation) or a fixed daily
// clock time. The script may spell it as {delta_hours, delta_minutes},
// "HH:MM", or {hour, minutes}.
type FireTime struct {
	clock  bool
	every  time.Duration
	hour   int
	minute int
}

// Every returns a recurring delta spec.
func Every(hours, minutes int) FireTime {
	return FireTime{every: time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute}
}

// At returns a fixed daily clock-time spec.
func At(hour, minute int) FireTime {
	return FireTime{clock: true, hour: hour, minute: minute}
}

// WhenNext computes the next firing instant at or after now.
//
// For a delta spec the result is the smallest multiple of the period
// after start that is >= now; a zero period means "due now". For a
// clock spec it is today's occurrence of the configured time, or
// tomorrow's if that already passed. Monotonic in now for a fixed
// rule: a later now never yields an earlier result.
func (t FireTime) WhenNext(start, now time.Time) time.Time {
	if t.clock {
		est := time.Date(now.Year(), now.Month(), now.Day(), t.hour, t.minute, 0, 0, now.Location())
		if est.Before(now) {
			est = est.AddDate(0, 0, 1)
		}
		return est
	}

	period := int64(t.every / time.Second)
	if period == 0 {
		return now
	}
	elapsed := int64(now.Sub(start) / time.Second)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	passed := elapsed % period
	return now.Add(-time.Duration(passed) * time.Second).Add(t.every)
}

type deltaSpec struct {
	DeltaHours   *int `json:"delta_hours"`
	DeltaMinutes *int `json:"delta_minutes"`
}

type clockSpec struct {
	Hour    *int `json:"hour"`
	Minutes *int `json:"minutes"`
}

// UnmarshalJSON decodes the three accepted spellings. An empty object
// is a zero-period delta ("always due now").
func (t *FireTime) UnmarshalJSON(data []byte) error {
	var s string
	if json.Unmarshal(data, &s) == nil {
		var hour, minute int
		if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
			return fmt.Errorf("%w: %q", ErrBadTimeSpec, s)
		}
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return fmt.Errorf("%w: %q out of range", ErrBadTimeSpec, s)
		}
		*t = At(hour, minute)
		return nil
	}

	var clock clockSpec
	if err := json.Unmarshal(data, &clock); err == nil && clock.Hour != nil {
		minute := 0
		if clock.Minutes != nil {
			minute = *clock.Minutes
		}
		*t = At(*clock.Hour, minute)
		return nil
	}

	var delta deltaSpec
	if err := json.Unmarshal(data, &delta); err != nil {
		return fmt.Errorf("%w: %s", ErrBadTimeSpec, data)
	}
	var hours, minutes int
	if delta.DeltaHours != nil {
		hours = *delta.DeltaHours
	}
	if delta.DeltaMinutes != nil {
		minutes = *delta.DeltaMinutes
	}
	*t = Every(hours, minutes)
	return nil
}
