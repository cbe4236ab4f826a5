package forecast

import (
	"time"

	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// day of week (Monday = 0), day of month, month, weekend flag, lag 1, lag 7,
// mean of the previous seven days
const featureCount = 7

type point struct {
	date  time.Time
	value float64
}

// densify turns sparse daily counts into one point per day from the first
// observed day through end, scaling each count. Missing days are zero.
func densify(counts []domain.DailyCount, end time.Time, scale float64) []point {
	if len(counts) == 0 {
		return nil
	}
	byDay := make(map[string]int, len(counts))
	first := truncateDay(counts[0].Date)
	for _, c := range counts {
		day := truncateDay(c.Date)
		if day.Before(first) {
			first = day
		}
		byDay[day.Format(time.DateOnly)] += c.Count
	}

	end = truncateDay(end)
	var series []point
	for day := first; !day.After(end); day = day.AddDate(0, 0, 1) {
		series = append(series, point{date: day, value: float64(byDay[day.Format(time.DateOnly)]) * scale})
	}
	return series
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// rollingMeans returns, for every index i in [0, len(values)], the mean of the
// window of values ending just before i. Indices without a full window are 0.
func rollingMeans(values []float64, period int) []float64 {
	out := make([]float64, len(values)+1)
	if len(values) < period {
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	means := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	// means[j] covers the window ending at values[j+offset]
	offset := len(values) - len(means)
	for i := period; i <= len(values); i++ {
		if j := i - 1 - offset; j >= 0 && j < len(means) {
			out[i] = means[j]
		}
	}
	return out
}

func featureRow(date time.Time, values []float64, i int, rolling []float64) []float64 {
	var lag1, lag7, weekend float64
	if i >= 1 {
		lag1 = values[i-1]
	}
	if i >= 7 {
		lag7 = values[i-7]
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		weekend = 1
	}
	return []float64{
		float64(dayOfWeek(date)),
		float64(date.Day()),
		float64(date.Month()),
		weekend,
		lag1,
		lag7,
		rolling[i],
	}
}

func designMatrix(series []point) ([][]float64, []float64) {
	values := make([]float64, len(series))
	for i, p := range series {
		values[i] = p.value
	}
	rolling := rollingMeans(values, constants.RollingWindow)

	x := make([][]float64, len(series))
	for i, p := range series {
		x[i] = featureRow(p.date, values, i, rolling)
	}
	return x, values
}
