// Package recurrence generates candidate occurrence dates for recurring job
// series. Generation is pure: the reference date is an explicit parameter,
// never an ambient clock, so identical inputs always produce identical
// output.
package recurrence

import (
	"time"

	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

// DefaultMaxIterations bounds generation work even for malformed rules.
const DefaultMaxIterations = 180

// Engine expands recurrence rules into occurrence dates.
type Engine struct {
	maxIterations int
}

// NewEngine creates an engine. maxIterations <= 0 selects the default cap.
func NewEngine(maxIterations int) *Engine {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Engine{maxIterations: maxIterations}
}

// Generate returns new occurrence dates for the series, in ascending order.
//
// The cursor starts at the series start date, or one step past the latest
// existing date when occurrences already exist, and is clamped forward to
// today — occurrences are never backfilled. Generation stops at the
// earliest of horizonDays past the cursor, the rule's end date, and until.
// Dates already present in existing are suppressed, so feeding a previous
// run's output back in yields no duplicates.
func (e *Engine) Generate(series models.JobSeries, existing []time.Time, horizonDays int, until *time.Time, today time.Time) ([]time.Time, error) {
	rule := series.Rule
	if rule.StartDate.IsZero() {
		return nil, &models.ValidationError{Field: "start_date", Reason: "recurrence rule requires a start date"}
	}
	switch rule.Pattern {
	case models.PatternDaily, models.PatternWeekly, models.PatternMonthly, models.PatternQuarterly, models.PatternYearly:
	default:
		return nil, &models.ValidationError{Field: "pattern", Reason: "unsupported recurrence pattern " + string(rule.Pattern)}
	}

	interval := rule.Interval
	if interval <= 0 {
		interval = 1
	}
	today = models.DateOnly(today)

	seen := make(map[string]struct{}, len(existing))
	var latest time.Time
	for _, d := range existing {
		d = models.DateOnly(d)
		seen[models.FormatDate(d)] = struct{}{}
		if d.After(latest) {
			latest = d
		}
	}

	var cursor time.Time
	if latest.IsZero() {
		cursor = e.align(rule, models.DateOnly(rule.StartDate))
	} else {
		cursor = e.step(rule, latest, interval)
	}

	cursor, ok := e.clampToToday(rule, cursor, today, interval)
	if !ok {
		return nil, nil
	}

	limit := cursor.AddDate(0, 0, horizonDays)
	if rule.EndDate != nil {
		if end := models.DateOnly(*rule.EndDate); end.Before(limit) {
			limit = end
		}
	}
	if until != nil {
		if u := models.DateOnly(*until); u.Before(limit) {
			limit = u
		}
	}

	var out []time.Time
	for iter := 0; iter < e.maxIterations && !cursor.After(limit); iter++ {
		key := models.FormatDate(cursor)
		if _, dup := seen[key]; !dup {
			out = append(out, cursor)
			seen[key] = struct{}{}
		}
		cursor = e.step(rule, cursor, interval)
	}
	return out, nil
}

// align moves an initial cursor onto the rule's anchors: weekly rules
// advance to the anchor weekday, month-based rules clamp to the anchor
// day-of-month (and anchor month for yearly rules) without rolling over.
func (e *Engine) align(rule models.RecurrenceRule, d time.Time) time.Time {
	switch rule.Pattern {
	case models.PatternWeekly:
		if rule.WeekDay != nil {
			for d.Weekday() != *rule.WeekDay {
				d = d.AddDate(0, 0, 1)
			}
		}
	case models.PatternMonthly, models.PatternQuarterly:
		target := dateInMonth(d.Year(), d.Month(), anchorDay(rule, d))
		if target.Before(d) {
			months := 1
			if rule.Pattern == models.PatternQuarterly {
				months = 3
			}
			target = addMonthsClamped(d, months, anchorDay(rule, d))
		}
		d = target
	case models.PatternYearly:
		month := d.Month()
		if rule.Month != nil {
			month = *rule.Month
		}
		target := dateInMonth(d.Year(), month, anchorDay(rule, d))
		if target.Before(d) {
			target = dateInMonth(d.Year()+1, month, anchorDay(rule, d))
		}
		d = target
	}
	return d
}

// step advances the cursor by one interval. Month-based steps re-clamp the
// day so a day-31 anchor lands on Feb 29/28 instead of rolling into March.
func (e *Engine) step(rule models.RecurrenceRule, d time.Time, interval int) time.Time {
	switch rule.Pattern {
	case models.PatternDaily:
		return d.AddDate(0, 0, interval)
	case models.PatternWeekly:
		return d.AddDate(0, 0, 7*interval)
	case models.PatternMonthly:
		return addMonthsClamped(d, interval, anchorDay(rule, d))
	case models.PatternQuarterly:
		return addMonthsClamped(d, 3*interval, anchorDay(rule, d))
	case models.PatternYearly:
		return addMonthsClamped(d, 12*interval, anchorDay(rule, d))
	}
	return d
}

// clampToToday moves a past cursor forward so generation never backfills.
// Daily and weekly rules jump arithmetically; month-based rules step under
// the iteration cap. The bool is false when the cap ran out before reaching
// today.
func (e *Engine) clampToToday(rule models.RecurrenceRule, cursor, today time.Time, interval int) (time.Time, bool) {
	if !cursor.Before(today) {
		return cursor, true
	}
	switch rule.Pattern {
	case models.PatternDaily, models.PatternWeekly:
		stepDays := interval
		if rule.Pattern == models.PatternWeekly {
			stepDays = 7 * interval
		}
		behind := int(today.Sub(cursor).Hours() / 24)
		steps := (behind + stepDays - 1) / stepDays
		return cursor.AddDate(0, 0, steps*stepDays), true
	default:
		for i := 0; cursor.Before(today); i++ {
			if i >= e.maxIterations {
				return cursor, false
			}
			cursor = e.step(rule, cursor, interval)
		}
		return cursor, true
	}
}

// anchorDay resolves the day-of-month to target: the rule's anchor when
// set, otherwise the series start day, so a thin February never drags
// later months down with it.
func anchorDay(rule models.RecurrenceRule, d time.Time) int {
	if rule.MonthDay != nil && *rule.MonthDay >= 1 && *rule.MonthDay <= 31 {
		return *rule.MonthDay
	}
	if !rule.StartDate.IsZero() {
		return rule.StartDate.Day()
	}
	return d.Day()
}

// addMonthsClamped adds months and clamps the day to the target month's
// length, avoiding time.AddDate's rollover (Jan 31 + 1 month = Mar 3).
func addMonthsClamped(d time.Time, months, day int) time.Time {
	total := d.Year()*12 + int(d.Month()) - 1 + months
	year, month := total/12, time.Month(total%12+1)
	return dateInMonth(year, month, day)
}

func dateInMonth(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
