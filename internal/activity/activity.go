// Package activity maintains per-user daily typing summaries.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/verte-zerg/versetype/internal/model"
	"github.com/verte-zerg/versetype/internal/stats"
)

// Store is the persistence contract of the aggregator. ApplyVerse must be a
// single atomic insert-or-update computed from the committed row.
type Store interface {
	ApplyVerse(ctx context.Context, userID string, day time.Time, label string, stats *model.VerseStats) error
	ReplaceDailyActivity(ctx context.Context, rows []model.DailyActivityRow) error
	ListDailyActivity(ctx context.Context, userID string) ([]model.DailyActivityRow, error)
	GetDailyActivity(ctx context.Context, userID string, day time.Time) (model.DailyActivityRow, error)
}

// VerseStore persists raw verse submissions. RecordVerse must store the
// verse and apply it to the daily row atomically.
type VerseStore interface {
	RecordVerse(ctx context.Context, tv model.TypedVerse, day time.Time, label string, stats *model.VerseStats) (model.TypedVerse, error)
	ListTypedVerses(ctx context.Context, userID string, since time.Time) ([]model.TypedVerse, error)
}

// Aggregator records verse activity into daily rows.
type Aggregator struct {
	store  Store
	logger *slog.Logger
}

// NewAggregator constructs an Aggregator. A nil logger discards output.
func NewAggregator(st Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Aggregator{store: st, logger: logger}
}

// PassageLabel formats a verse reference as "Book Chapter:Verse".
func PassageLabel(book string, chapter, verse int) string {
	return fmt.Sprintf("%s %d:%d", ProperCase(book), chapter, verse)
}

var titleCaser = cases.Title(language.English)

// ProperCase turns a book key such as "1_samuel" into "1 Samuel".
func ProperCase(book string) string {
	book = strings.NewReplacer("_", " ", "-", " ").Replace(book)
	return titleCaser.String(strings.Join(strings.Fields(book), " "))
}

// RecordActivity folds one typed verse into the user's row for the UTC day
// of at. Nil stats still count the verse and its passage.
func (a *Aggregator) RecordActivity(ctx context.Context, userID string, at time.Time, book string, chapter, verse int, verseStats *model.VerseStats) error {
	day := stats.StartOfDay(at)
	label := PassageLabel(book, chapter, verse)
	if err := a.store.ApplyVerse(ctx, userID, day, label, verseStats); err != nil {
		a.logger.Error("record activity failed", "user", userID, "day", day.Format("2006-01-02"), "passage", label, "error", err)
		return fmt.Errorf("record activity for %s: %w", userID, err)
	}
	a.logger.Debug("activity recorded", "user", userID, "day", day.Format("2006-01-02"), "passage", label, "hasStats", verseStats != nil)
	return nil
}

// BatchUpsert overwrites rows wholesale. It is meant for backfill only and
// must not run concurrently with RecordActivity for the same keys.
func (a *Aggregator) BatchUpsert(ctx context.Context, rows []model.DailyActivityRow) error {
	if err := a.store.ReplaceDailyActivity(ctx, rows); err != nil {
		a.logger.Error("batch upsert failed", "rows", len(rows), "error", err)
		return fmt.Errorf("batch upsert: %w", err)
	}
	a.logger.Info("batch upsert complete", "rows", len(rows))
	return nil
}

// GetByUserID returns all rows for a user, newest day first.
func (a *Aggregator) GetByUserID(ctx context.Context, userID string) ([]model.DailyActivityRow, error) {
	rows, err := a.store.ListDailyActivity(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list daily activity for %s: %w", userID, err)
	}
	return rows, nil
}

// GetDay returns the row for a user and the UTC day containing at.
func (a *Aggregator) GetDay(ctx context.Context, userID string, at time.Time) (model.DailyActivityRow, error) {
	return a.store.GetDailyActivity(ctx, userID, stats.StartOfDay(at))
}
