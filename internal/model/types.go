// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTypingData reports typing data that fails schema validation.
var ErrInvalidTypingData = errors.New("invalid typing data")

// ActionType identifies an editor input event.
type ActionType string

// Editor input events recorded while a verse is typed.
const (
	ActionInsertText             ActionType = "insertText"
	ActionDeleteContentBackward  ActionType = "deleteContentBackward"
	ActionDeleteWordBackward     ActionType = "deleteWordBackward"
	ActionDeleteSoftLineBackward ActionType = "deleteSoftLineBackward"
)

// Valid reports whether the action type is one the editor emits.
func (t ActionType) Valid() bool {
	switch t {
	case ActionInsertText, ActionDeleteContentBackward, ActionDeleteWordBackward, ActionDeleteSoftLineBackward:
		return true
	default:
		return false
	}
}

// TypingAction is one editing event during the typing of a verse.
type TypingAction struct {
	Type     ActionType `json:"type"`
	DateTime time.Time  `json:"datetime"`
	Key      string     `json:"key,omitempty"`
}

// Word is a tokenized word made of letters.
type Word struct {
	Letters []string `json:"letters"`
}

// TypingData is the raw record for one typed verse.
type TypingData struct {
	UserActions  []TypingAction `json:"userActions"`
	UserNodes    []Word         `json:"userNodes"`
	CorrectNodes []Word         `json:"correctNodes"`
}

// Validate checks the fields the stats calculator depends on.
func (d TypingData) Validate() error {
	for i, action := range d.UserActions {
		if !action.Type.Valid() {
			return fmt.Errorf("%w: action %d has unknown type %q", ErrInvalidTypingData, i, action.Type)
		}
		if action.DateTime.IsZero() {
			return fmt.Errorf("%w: action %d has no datetime", ErrInvalidTypingData, i)
		}
	}
	return nil
}

// VerseStats holds derived metrics for one typed verse.
type VerseStats struct {
	WPM               int `json:"wpm"`
	Accuracy          int `json:"accuracy"`
	CorrectedAccuracy int `json:"correctedAccuracy"`
}

// VerseStatsWithDate pairs verse stats with the time the verse was typed.
type VerseStatsWithDate struct {
	VerseStats
	Date time.Time `json:"date"`
}

// TypedVerse is a stored verse submission.
type TypedVerse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	Book       string     `json:"book"`
	Chapter    int        `json:"chapter"`
	Verse      int        `json:"verse"`
	CreatedAt  time.Time  `json:"createdAt"`
	TypingData TypingData `json:"typingData"`
}

// DailyActivityRow summarizes one user's typing on one UTC day.
type DailyActivityRow struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"userId"`
	Day                      time.Time `json:"date"`
	VerseCount               int       `json:"verseCount"`
	Passages                 []string  `json:"passages"`
	AverageWPM               *int      `json:"averageWpm"`
	AverageAccuracy          *int      `json:"averageAccuracy"`
	AverageCorrectedAccuracy *int      `json:"averageCorrectedAccuracy"`
	VersesWithStats          int       `json:"versesWithStats"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// AggregatedStats is one chart bucket.
type AggregatedStats struct {
	Date                     string `json:"date"`
	DateLabel                string `json:"dateLabel"`
	AverageWPM               *int   `json:"averageWpm"`
	AverageAccuracy          *int   `json:"averageAccuracy"`
	AverageCorrectedAccuracy *int   `json:"averageCorrectedAccuracy"`
	VersesWithData           int    `json:"versesWithData"`
}

// TimeRange is a trailing chart window ending today.
type TimeRange string

// Supported chart windows.
const (
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	Range3Months TimeRange = "3months"
	RangeYear    TimeRange = "year"
)

// TimeRanges lists the chart windows in display order.
var TimeRanges = []TimeRange{RangeWeek, RangeMonth, Range3Months, RangeYear}

// ParseTimeRange validates a time range name.
func ParseTimeRange(s string) (TimeRange, error) {
	for _, r := range TimeRanges {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown time range %q (use week, month, 3months or year)", s)
}

// Interval is the chart bucket size.
type Interval string

// Supported bucket sizes.
const (
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Intervals lists the bucket sizes in display order.
var Intervals = []Interval{IntervalDaily, IntervalWeekly, IntervalMonthly}

// ParseInterval validates an interval name.
func ParseInterval(s string) (Interval, error) {
	for _, iv := range Intervals {
		if string(iv) == s {
			return iv, nil
		}
	}
	return "", fmt.Errorf("unknown interval %q (use daily, weekly or monthly)", s)
}

// ChartSource selects the input pipeline for chart series.
type ChartSource string

// Chart inputs.
const (
	SourceDaily  ChartSource = "daily"
	SourceVerses ChartSource = "verses"
)

// ParseChartSource validates a chart source name.
func ParseChartSource(s string) (ChartSource, error) {
	switch ChartSource(s) {
	case SourceDaily, SourceVerses:
		return ChartSource(s), nil
	default:
		return "", fmt.Errorf("unknown chart source %q (use daily or verses)", s)
	}
}

// ChartConfig defines the series requested for a chart.
type ChartConfig struct {
	UserID   string
	Range    TimeRange
	Interval Interval
	Source   ChartSource
}
