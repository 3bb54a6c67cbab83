package valuation

import (
	"time"

	"github.com/atharvakonge/paper-brokerage/internal/models"
)

const (
	marketOpenHour   = 9
	marketOpenMinute = 30
	marketSession    = 390 * time.Minute // 9:30 to 16:00
)

// Labels returns exactly n chart axis labels for period, the last one
// falling on now. They depend on the current date and must not be cached.
// An unknown period yields nil.
func Labels(period models.Period, n int, now time.Time) []string {
	if n <= 0 {
		return []string{}
	}
	switch period {
	case models.PeriodDaily:
		return intradayLabels(n, now)
	case models.PeriodWeekly:
		return weekdayLabels(n, now)
	case models.PeriodOneMonth:
		return dateLabels(n, now)
	case models.PeriodYearly:
		return monthLabels(n, now)
	case models.PeriodAllTime:
		return yearLabels(n, now)
	}
	return nil
}

// intradayLabels spreads n clock times evenly over the trading session.
func intradayLabels(n int, now time.Time) []string {
	open := time.Date(now.Year(), now.Month(), now.Day(), marketOpenHour, marketOpenMinute, 0, 0, now.Location())
	labels := make([]string, n)
	if n == 1 {
		labels[0] = open.Format("3:04 PM")
		return labels
	}
	step := marketSession / time.Duration(n-1)
	for i := range labels {
		labels[i] = open.Add(time.Duration(i) * step).Format("3:04 PM")
	}
	return labels
}

// weekdayLabels names the last n trading days, skipping weekends.
func weekdayLabels(n int, now time.Time) []string {
	day := now
	for isWeekend(day) {
		day = day.AddDate(0, 0, -1)
	}
	labels := make([]string, n)
	for i := n - 1; i >= 0; i-- {
		labels[i] = day.Format("Mon")
		day = day.AddDate(0, 0, -1)
		for isWeekend(day) {
			day = day.AddDate(0, 0, -1)
		}
	}
	return labels
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func dateLabels(n int, now time.Time) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = now.AddDate(0, 0, i-(n-1)).Format("Jan 2")
	}
	return labels
}

func monthLabels(n int, now time.Time) []string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	labels := make([]string, n)
	for i := range labels {
		labels[i] = first.AddDate(0, i-(n-1), 0).Format("Jan")
	}
	return labels
}

func yearLabels(n int, now time.Time) []string {
	first := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	labels := make([]string, n)
	for i := range labels {
		labels[i] = first.AddDate(i-(n-1), 0, 0).Format("2006")
	}
	return labels
}
