// Package calendar enumerates the days of a month and groups meals by day.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/mealog/internal/meals"
)

// MonthLayout is the YYYY-MM month format.
const MonthLayout = "2006-01"

// ErrInvalidMonth indicates that a month string is not formatted as YYYY-MM.
var ErrInvalidMonth = errors.New("calendar: invalid month")

// Month is a calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM month.
func ParseMonth(raw string) (Month, error) {
	parsed, err := time.Parse(MonthLayout, raw)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", ErrInvalidMonth, raw)
	}
	return Month{Year: parsed.Year(), Month: parsed.Month()}, nil
}

// MonthOf returns the month holding a YYYY-MM-DD day.
func MonthOf(date string) (Month, error) {
	parsed, err := time.Parse(meals.DateLayout, date)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q", meals.ErrInvalidDate, date)
	}
	return Month{Year: parsed.Year(), Month: parsed.Month()}, nil
}

// MonthOfTime returns the month holding t in t's location.
func MonthOfTime(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) first() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// String formats the month as YYYY-MM.
func (m Month) String() string {
	return m.first().Format(MonthLayout)
}

// Label is the month name followed by the year.
func (m Month) Label() string {
	return m.first().Format("January 2006")
}

// Shift moves the month by delta months.
func (m Month) Shift(delta int) Month {
	shifted := m.first().AddDate(0, delta, 0)
	return Month{Year: shifted.Year(), Month: shifted.Month()}
}

// FirstDay returns the first day of the month as YYYY-MM-DD.
func (m Month) FirstDay() string {
	return m.first().Format(meals.DateLayout)
}

// Days lists every day of the month as YYYY-MM-DD, in order.
func (m Month) Days() []string {
	first := m.first()
	count := first.AddDate(0, 1, -1).Day()
	days := make([]string, 0, count)
	for offset := 0; offset < count; offset++ {
		days = append(days, first.AddDate(0, 0, offset).Format(meals.DateLayout))
	}
	return days
}

// Contains reports whether a YYYY-MM-DD day lies in the month.
func (m Month) Contains(date string) bool {
	month, err := MonthOf(date)
	return err == nil && month == m
}

// ShiftDay moves a YYYY-MM-DD day by delta days.
func ShiftDay(date string, delta int) (string, error) {
	parsed, err := time.Parse(meals.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q", meals.ErrInvalidDate, date)
	}
	return parsed.AddDate(0, 0, delta).Format(meals.DateLayout), nil
}

// Today formats now as a YYYY-MM-DD day in now's location.
func Today(now time.Time) string {
	return now.Format(meals.DateLayout)
}

// DaySummary is one day of a month view.
type DaySummary struct {
	Date   string       `json:"date"`
	Meals  []meals.Meal `json:"meals"`
	Totals meals.Totals `json:"totals"`
}

// GroupByDay buckets meals by day, each bucket ordered by timestamp, then id.
func GroupByDay(list []meals.Meal) map[string][]meals.Meal {
	grouped := make(map[string][]meals.Meal)
	for _, meal := range list {
		grouped[meal.Date] = append(grouped[meal.Date], meal)
	}
	for _, day := range grouped {
		meals.SortMeals(day)
	}
	return grouped
}

// Summarize returns one summary per day of month, including empty days.
func Summarize(month Month, list []meals.Meal) []DaySummary {
	grouped := GroupByDay(list)
	days := month.Days()
	summaries := make([]DaySummary, 0, len(days))
	for _, day := range days {
		dayMeals := grouped[day]
		if dayMeals == nil {
			dayMeals = []meals.Meal{}
		}
		summaries = append(summaries, DaySummary{
			Date:   day,
			Meals:  dayMeals,
			Totals: meals.Sum(dayMeals),
		})
	}
	return summaries
}

// MonthTotals adds up every day of a summary.
func MonthTotals(summaries []DaySummary) meals.Totals {
	total := meals.Sum(nil)
	for _, summary := range summaries {
		total = total.Add(summary.Totals)
	}
	return total
}
