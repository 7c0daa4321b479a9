package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arborworks/crew-scheduler-go/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weeklySeries(day time.Weekday, start time.Time) models.JobSeries {
	return models.JobSeries{
		ID: "series-weekly",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternWeekly,
			Interval:  1,
			WeekDay:   &day,
			StartDate: start,
		},
	}
}

func TestGenerateWeeklyAnchorsToWeekday(t *testing.T) {
	// 2024-01-01 is a Monday; the anchor pulls the first occurrence to
	// Wednesday the 3rd.
	series := weeklySeries(time.Wednesday, date(2024, time.January, 1))

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 14, nil, date(2024, time.January, 1))
	require.NoError(t, err)

	require.Len(t, dates, 3)
	assert.Equal(t, date(2024, time.January, 3), dates[0])
	assert.Equal(t, date(2024, time.January, 10), dates[1])
	assert.Equal(t, date(2024, time.January, 17), dates[2])
}

func TestGenerateMonthlyClampsDayOfMonth(t *testing.T) {
	day := 31
	series := models.JobSeries{
		ID: "series-monthly",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternMonthly,
			Interval:  1,
			MonthDay:  &day,
			StartDate: date(2024, time.January, 31),
		},
	}

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 120, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(dates), 4)

	assert.Equal(t, date(2024, time.January, 31), dates[0])
	// 2024 is a leap year: day 31 clamps to Feb 29, never rolling into
	// March.
	assert.Equal(t, date(2024, time.February, 29), dates[1])
	assert.Equal(t, date(2024, time.March, 31), dates[2])
	assert.Equal(t, date(2024, time.April, 30), dates[3])
}

func TestGenerateMonthlyClampsInNonLeapYear(t *testing.T) {
	day := 31
	series := models.JobSeries{
		ID: "series-monthly",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternMonthly,
			Interval:  1,
			MonthDay:  &day,
			StartDate: date(2023, time.January, 31),
		},
	}

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 60, nil, date(2023, time.January, 1))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(dates), 2)
	assert.Equal(t, date(2023, time.February, 28), dates[1])
}

func TestGenerateNeverBackfills(t *testing.T) {
	series := models.JobSeries{
		ID: "series-daily",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternDaily,
			Interval:  1,
			StartDate: date(2024, time.January, 1),
		},
	}

	engine := NewEngine(0)
	today := date(2024, time.June, 15)
	dates, err := engine.Generate(series, nil, 7, nil, today)
	require.NoError(t, err)
	require.NotEmpty(t, dates)
	for _, d := range dates {
		assert.False(t, d.Before(today), "generated %s before today %s", d, today)
	}
	assert.Equal(t, today, dates[0])
}

func TestGenerateHonorsIterationCapWithoutEndDate(t *testing.T) {
	series := models.JobSeries{
		ID: "series-daily",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternDaily,
			Interval:  1,
			StartDate: date(2024, time.January, 1),
		},
	}

	engine := NewEngine(10)
	// Horizon far wider than the cap allows.
	dates, err := engine.Generate(series, nil, 10000, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	assert.Len(t, dates, 10)
}

func TestGenerateIsIdempotentAcrossRuns(t *testing.T) {
	series := weeklySeries(time.Wednesday, date(2024, time.January, 1))
	engine := NewEngine(0)
	today := date(2024, time.January, 1)

	first, err := engine.Generate(series, nil, 28, nil, today)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := engine.Generate(series, first, 28, nil, today)
	require.NoError(t, err)
	for _, d := range second {
		for _, prev := range first {
			assert.False(t, d.Equal(prev), "duplicate date %s across runs", d)
		}
	}

	// And re-running with everything folded in is stable: no duplicates,
	// same continuation.
	both := append(append([]time.Time{}, first...), second...)
	third, err := engine.Generate(series, both, 28, nil, today)
	require.NoError(t, err)
	for _, d := range third {
		for _, prev := range both {
			assert.False(t, d.Equal(prev), "duplicate date %s across runs", d)
		}
	}
}

func TestGenerateContinuesFromLatestExisting(t *testing.T) {
	series := weeklySeries(time.Wednesday, date(2024, time.January, 1))
	engine := NewEngine(0)

	existing := []time.Time{date(2024, time.January, 3), date(2024, time.January, 10)}
	dates, err := engine.Generate(series, existing, 14, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	require.NotEmpty(t, dates)
	assert.Equal(t, date(2024, time.January, 17), dates[0])
}

func TestGenerateStopsAtEndDate(t *testing.T) {
	end := date(2024, time.January, 10)
	series := weeklySeries(time.Wednesday, date(2024, time.January, 1))
	series.Rule.EndDate = &end

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 60, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, date(2024, time.January, 10), dates[1])
}

func TestGenerateStopsAtUntil(t *testing.T) {
	until := date(2024, time.January, 10)
	series := weeklySeries(time.Wednesday, date(2024, time.January, 1))

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 60, &until, date(2024, time.January, 1))
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}

func TestGenerateDefaultsNonPositiveInterval(t *testing.T) {
	series := models.JobSeries{
		ID: "series-daily",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternDaily,
			Interval:  0,
			StartDate: date(2024, time.January, 1),
		},
	}

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 2, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	// interval 0 behaves as 1: three consecutive days inside the horizon.
	assert.Len(t, dates, 3)
}

func TestGenerateRejectsMissingStartDate(t *testing.T) {
	series := models.JobSeries{
		ID:   "series-bad",
		Rule: models.RecurrenceRule{Pattern: models.PatternDaily, Interval: 1},
	}

	engine := NewEngine(0)
	_, err := engine.Generate(series, nil, 14, nil, date(2024, time.January, 1))
	require.Error(t, err)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "start_date", verr.Field)
}

func TestGenerateRejectsUnknownPattern(t *testing.T) {
	series := models.JobSeries{
		ID: "series-bad",
		Rule: models.RecurrenceRule{
			Pattern:   "fortnightly",
			Interval:  1,
			StartDate: date(2024, time.January, 1),
		},
	}

	engine := NewEngine(0)
	_, err := engine.Generate(series, nil, 14, nil, date(2024, time.January, 1))
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestGenerateQuarterlyStepsThreeMonths(t *testing.T) {
	day := 15
	series := models.JobSeries{
		ID: "series-quarterly",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternQuarterly,
			Interval:  1,
			MonthDay:  &day,
			StartDate: date(2024, time.January, 15),
		},
	}

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 365, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(dates), 4)
	assert.Equal(t, date(2024, time.January, 15), dates[0])
	assert.Equal(t, date(2024, time.April, 15), dates[1])
	assert.Equal(t, date(2024, time.July, 15), dates[2])
	assert.Equal(t, date(2024, time.October, 15), dates[3])
}

func TestGenerateYearlyAnchorsToMonth(t *testing.T) {
	month := time.March
	day := 1
	series := models.JobSeries{
		ID: "series-yearly",
		Rule: models.RecurrenceRule{
			Pattern:   models.PatternYearly,
			Interval:  1,
			Month:     &month,
			MonthDay:  &day,
			StartDate: date(2024, time.January, 10),
		},
	}

	engine := NewEngine(0)
	dates, err := engine.Generate(series, nil, 800, nil, date(2024, time.January, 1))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(dates), 2)
	assert.Equal(t, date(2024, time.March, 1), dates[0])
	assert.Equal(t, date(2025, time.March, 1), dates[1])
}

func TestGenerateIsDeterministic(t *testing.T) {
	series := weeklySeries(time.Friday, date(2024, time.February, 1))
	engine := NewEngine(0)
	today := date(2024, time.February, 5)

	a, err := engine.Generate(series, nil, 30, nil, today)
	require.NoError(t, err)
	b, err := engine.Generate(series, nil, 30, nil, today)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
