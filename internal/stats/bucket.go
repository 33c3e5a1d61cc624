package stats

import (
	"math"
	"time"

	"github.com/verte-zerg/versetype/internal/model"
)

const isoDate = "2006-01-02"

// Window returns the inclusive UTC bounds of a trailing time range that ends
// on the day containing now.
func Window(r model.TimeRange, now time.Time) (start, end time.Time) {
	today := StartOfDay(now)
	days := 7
	switch r {
	case model.RangeMonth:
		days = 30
	case model.Range3Months:
		days = 90
	case model.RangeYear:
		days = 365
	}
	start = today.AddDate(0, 0, -(days - 1))
	end = today.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BucketStart returns the start of the interval bucket containing t.
// Weeks start on Monday.
func BucketStart(t time.Time, iv model.Interval) time.Time {
	day := StartOfDay(t)
	switch iv {
	case model.IntervalWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case model.IntervalMonthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func nextBucket(t time.Time, iv model.Interval) time.Time {
	switch iv {
	case model.IntervalWeekly:
		return t.AddDate(0, 0, 7)
	case model.IntervalMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func bucketLabel(t time.Time, iv model.Interval) string {
	if iv == model.IntervalMonthly {
		return t.Format("Jan 2006")
	}
	return t.Format("Jan 2")
}

// metricSums accumulates weighted metric totals for one bucket.
type metricSums struct {
	wpm       float64
	accuracy  float64
	corrected float64
	weight    int
}

func (s *metricSums) add(stats model.VerseStats, weight int) {
	w := float64(weight)
	s.wpm += float64(stats.WPM) * w
	s.accuracy += float64(stats.Accuracy) * w
	s.corrected += float64(stats.CorrectedAccuracy) * w
	s.weight += weight
}

func (s metricSums) mean(total float64) *int {
	if s.weight == 0 {
		return nil
	}
	v := int(math.Round(total / float64(s.weight)))
	return &v
}

// AggregateVerseStats buckets per-verse stats over the range and averages
// each bucket without weighting.
func AggregateVerseStats(verses []model.VerseStatsWithDate, r model.TimeRange, iv model.Interval, now time.Time) []model.AggregatedStats {
	start, end := Window(r, now)
	sums := map[string]*metricSums{}
	for _, v := range verses {
		if v.Date.Before(start) || v.Date.After(end) {
			continue
		}
		key := BucketStart(v.Date, iv).Format(isoDate)
		entry := sums[key]
		if entry == nil {
			entry = &metricSums{}
			sums[key] = entry
		}
		entry.add(v.VerseStats, 1)
	}
	return emitBuckets(sums, start, end, iv)
}

// AggregateDailyActivity buckets daily rows over the range. Each row is
// weighted by its versesWithStats so heavy days count proportionally.
func AggregateDailyActivity(rows []model.DailyActivityRow, r model.TimeRange, iv model.Interval, now time.Time) []model.AggregatedStats {
	start, end := Window(r, now)
	sums := map[string]*metricSums{}
	for _, row := range rows {
		day := StartOfDay(row.Day)
		if day.Before(start) || day.After(end) {
			continue
		}
		if row.VersesWithStats <= 0 || row.AverageWPM == nil || row.AverageAccuracy == nil || row.AverageCorrectedAccuracy == nil {
			continue
		}
		key := BucketStart(day, iv).Format(isoDate)
		entry := sums[key]
		if entry == nil {
			entry = &metricSums{}
			sums[key] = entry
		}
		entry.add(model.VerseStats{
			WPM:               *row.AverageWPM,
			Accuracy:          *row.AverageAccuracy,
			CorrectedAccuracy: *row.AverageCorrectedAccuracy,
		}, row.VersesWithStats)
	}
	return emitBuckets(sums, start, end, iv)
}

// emitBuckets enumerates every bucket in the window, present data or not.
func emitBuckets(sums map[string]*metricSums, start, end time.Time, iv model.Interval) []model.AggregatedStats {
	var out []model.AggregatedStats
	for b := BucketStart(start, iv); !b.After(end); b = nextBucket(b, iv) {
		key := b.Format(isoDate)
		bucket := model.AggregatedStats{
			Date:      key,
			DateLabel: bucketLabel(b, iv),
		}
		if s, ok := sums[key]; ok {
			bucket.AverageWPM = s.mean(s.wpm)
			bucket.AverageAccuracy = s.mean(s.accuracy)
			bucket.AverageCorrectedAccuracy = s.mean(s.corrected)
			bucket.VersesWithData = s.weight
		}
		out = append(out, bucket)
	}
	return out
}
