package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/verte-zerg/versetype/internal/model"
	"github.com/verte-zerg/versetype/internal/stats"
)

// Recorder stores verse submissions and keeps the daily rows current.
type Recorder struct {
	verses     VerseStore
	aggregator *Aggregator
	logger     *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(verses VerseStore, aggregator *Aggregator, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{verses: verses, aggregator: aggregator, logger: logger}
}

// Submission is the outcome of recording one typed verse.
type Submission struct {
	Verse model.TypedVerse       `json:"verse"`
	Stats *model.VerseStats      `json:"stats"`
	Day   model.DailyActivityRow `json:"day"`
}

// RecordTypedVerse persists the verse, computes its stats and folds them
// into the user's daily row. Both writes commit together.
func (r *Recorder) RecordTypedVerse(ctx context.Context, tv model.TypedVerse) (Submission, error) {
	if tv.UserID == "" {
		return Submission{}, fmt.Errorf("user id is required")
	}
	if tv.Book == "" || tv.Chapter <= 0 || tv.Verse <= 0 {
		return Submission{}, fmt.Errorf("invalid verse reference %q %d:%d", tv.Book, tv.Chapter, tv.Verse)
	}
	if tv.CreatedAt.IsZero() {
		tv.CreatedAt = time.Now()
	}
	tv.CreatedAt = tv.CreatedAt.UTC()

	verseStats := stats.CalculateStatsForVerse(tv.TypingData)
	day := stats.StartOfDay(tv.CreatedAt)
	label := PassageLabel(tv.Book, tv.Chapter, tv.Verse)
	saved, err := r.verses.RecordVerse(ctx, tv, day, label, verseStats)
	if err != nil {
		r.logger.Error("record verse failed", "user", tv.UserID, "day", day.Format("2006-01-02"), "passage", label, "error", err)
		return Submission{}, fmt.Errorf("record verse for %s: %w", tv.UserID, err)
	}
	if verseStats == nil {
		r.logger.Info("verse stats discarded", "user", saved.UserID, "verse", saved.ID)
	}
	row, err := r.aggregator.GetDay(ctx, saved.UserID, saved.CreatedAt)
	if err != nil {
		return Submission{}, fmt.Errorf("load daily activity: %w", err)
	}
	return Submission{Verse: saved, Stats: verseStats, Day: row}, nil
}
