package stats

import (
	"context"
	"time"

	"github.com/verte-zerg/versetype/internal/model"
)

// Source loads the inputs of the chart pipelines.
type Source interface {
	ListDailyActivity(ctx context.Context, userID string) ([]model.DailyActivityRow, error)
	ListTypedVerses(ctx context.Context, userID string, since time.Time) ([]model.TypedVerse, error)
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Config  model.ChartConfig
	Start   time.Time
	End     time.Time
	Rows    []model.DailyActivityRow
	Buckets []model.AggregatedStats
}

// BuildReport loads the user's daily rows and the bucketed series for the
// configured range, interval and source.
func BuildReport(ctx context.Context, src Source, cfg model.ChartConfig, now time.Time) (Report, error) {
	rows, err := src.ListDailyActivity(ctx, cfg.UserID)
	if err != nil {
		return Report{}, err
	}
	start, end := Window(cfg.Range, now)
	report := Report{Config: cfg, Start: start, End: end, Rows: rows}

	switch cfg.Source {
	case model.SourceVerses:
		verses, err := src.ListTypedVerses(ctx, cfg.UserID, start)
		if err != nil {
			return Report{}, err
		}
		report.Buckets = AggregateVerseStats(VerseStatsWithDates(verses), cfg.Range, cfg.Interval, now)
	default:
		report.Buckets = AggregateDailyActivity(rows, cfg.Range, cfg.Interval, now)
	}
	return report, nil
}

// VerseStatsWithDates computes stats for each typed verse and drops the
// verses whose data is untrustworthy.
func VerseStatsWithDates(verses []model.TypedVerse) []model.VerseStatsWithDate {
	out := make([]model.VerseStatsWithDate, 0, len(verses))
	for _, tv := range verses {
		s := CalculateStatsForVerse(tv.TypingData)
		if s == nil {
			continue
		}
		out = append(out, model.VerseStatsWithDate{VerseStats: *s, Date: tv.CreatedAt})
	}
	return out
}
