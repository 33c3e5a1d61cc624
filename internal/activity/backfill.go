package activity

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/versetype/internal/model"
	"github.com/verte-zerg/versetype/internal/stats"
)

type dayKey struct {
	userID string
	day    time.Time
}

// BuildDailyRows recomputes daily rows from typed verses. Stats are computed
// with up to workers goroutines; rows are folded in createdAt order with the
// same rounding as live recording.
func BuildDailyRows(ctx context.Context, verses []model.TypedVerse, workers int) ([]model.DailyActivityRow, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ordered := slices.Clone(verses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	results := make([]*model.VerseStats, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range ordered {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = stats.CalculateStatsForVerse(ordered[i].TypingData)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := map[dayKey]*model.DailyActivityRow{}
	var keys []dayKey
	for i, tv := range ordered {
		key := dayKey{userID: tv.UserID, day: stats.StartOfDay(tv.CreatedAt)}
		row, ok := rows[key]
		if !ok {
			row = &model.DailyActivityRow{UserID: tv.UserID, Day: key.day}
			rows[key] = row
			keys = append(keys, key)
		}
		foldVerse(row, PassageLabel(tv.Book, tv.Chapter, tv.Verse), results[i])
	}

	out := make([]model.DailyActivityRow, 0, len(keys))
	for _, key := range keys {
		out = append(out, *rows[key])
	}
	return out, nil
}

// foldVerse applies one verse to a row exactly as the store's upsert does.
func foldVerse(row *model.DailyActivityRow, label string, verseStats *model.VerseStats) {
	row.VerseCount++
	if !slices.Contains(row.Passages, label) {
		row.Passages = append(row.Passages, label)
	}
	if verseStats == nil {
		return
	}
	n := row.VersesWithStats
	row.AverageWPM = runningMean(row.AverageWPM, n, verseStats.WPM)
	row.AverageAccuracy = runningMean(row.AverageAccuracy, n, verseStats.Accuracy)
	row.AverageCorrectedAccuracy = runningMean(row.AverageCorrectedAccuracy, n, verseStats.CorrectedAccuracy)
	row.VersesWithStats = n + 1
}

func runningMean(old *int, n, value int) *int {
	prev := 0
	if old != nil {
		prev = *old
	}
	v := int(math.Round(float64(prev*n+value) / float64(n+1)))
	return &v
}

// Backfill recomputes every daily row from stored typed verses and
// overwrites them. userID limits the run to one user; empty means all.
// Live recording for the affected users must be paused while it runs.
func Backfill(ctx context.Context, verses VerseStore, aggregator *Aggregator, userID string, workers int) (int, error) {
	typed, err := verses.ListTypedVerses(ctx, userID, time.Time{})
	if err != nil {
		return 0, fmt.Errorf("list typed verses: %w", err)
	}
	rows, err := BuildDailyRows(ctx, typed, workers)
	if err != nil {
		return 0, err
	}
	if err := aggregator.BatchUpsert(ctx, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
