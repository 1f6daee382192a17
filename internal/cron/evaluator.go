// Package cron evaluates standard 5-field cron expressions in a named
// timezone. It is a pure function layer: validation and next-fire
// computation only, no recurrence enumeration and no scheduling state.
package cron

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Evaluator validates cron expressions and computes next fire instants.
// Deterministic and safe for concurrent use.
type Evaluator struct {
	gx gronx.Gronx
}

// New creates an Evaluator.
func New() *Evaluator {
	return &Evaluator{gx: gronx.New()}
}

// Validate reports whether expr parses as a standard 5-field cron
// expression (ranges, lists, and steps included).
func (e *Evaluator) Validate(expr string) bool {
	if len(strings.Fields(expr)) != 5 {
		return false
	}
	return e.gx.IsValid(expr)
}

// Next returns the strictly-future next fire instant of expr in the given
// IANA timezone, evaluated from the given instant. Unknown timezone names
// fall back to UTC silently. DST transitions are resolved by the timezone
// database; leap seconds are not modeled.
func (e *Evaluator) Next(expr, tzName string, from time.Time) (time.Time, error) {
	loc := loadLocation(tzName)
	next, err := gronx.NextTickAfter(expr, from.In(loc), false)
	if err != nil {
		return time.Time{}, fmt.Errorf("next run for %q: %w", expr, err)
	}
	return next, nil
}

// Describe returns a human-readable description for common cron patterns,
// or the expression itself when no simple description applies.
func Describe(expr string) string {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return expr
	}
	minute, hour, day, month, weekday := parts[0], parts[1], parts[2], parts[3], parts[4]

	if expr == "* * * * *" {
		return "Every minute"
	}
	if minute != "*" && hour != "*" && day == "*" && month == "*" && weekday == "*" {
		return fmt.Sprintf("Daily at %s:%s", hour, pad2(minute))
	}
	if minute != "*" && hour != "*" && weekday != "*" && day == "*" && month == "*" {
		days := map[string]string{
			"0": "Sunday", "1": "Monday", "2": "Tuesday", "3": "Wednesday",
			"4": "Thursday", "5": "Friday", "6": "Saturday", "7": "Sunday",
			"1-5": "weekdays", "0,6": "weekends",
		}
		dayStr, ok := days[weekday]
		if !ok {
			dayStr = weekday
		}
		return fmt.Sprintf("Every %s at %s:%s", dayStr, hour, pad2(minute))
	}
	return expr
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func loadLocation(tzName string) *time.Location {
	if tzName == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		slog.Debug("unknown timezone, falling back to UTC", "tz", tzName)
		return time.UTC
	}
	return loc
}
