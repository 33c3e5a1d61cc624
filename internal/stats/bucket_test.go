package stats

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/versetype/internal/model"
)

// Wednesday.
var now = time.Date(2024, 3, 13, 15, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v int) *int {
	return &v
}

func dailyRow(d time.Time, wpm, acc, corr, weight int) model.DailyActivityRow {
	return model.DailyActivityRow{
		UserID:                   "u1",
		Day:                      d,
		VerseCount:               weight,
		AverageWPM:               ptr(wpm),
		AverageAccuracy:          ptr(acc),
		AverageCorrectedAccuracy: ptr(corr),
		VersesWithStats:          weight,
	}
}

func TestWindow(t *testing.T) {
	cases := map[model.TimeRange]time.Time{
		model.RangeWeek:    day(2024, 3, 7),
		model.RangeMonth:   day(2024, 2, 13),
		model.Range3Months: day(2023, 12, 15),
		model.RangeYear:    day(2023, 3, 15),
	}
	for r, wantStart := range cases {
		start, end := Window(r, now)
		if !start.Equal(wantStart) {
			t.Fatalf("%s: expected start %s, got %s", r, wantStart, start)
		}
		if end.Format(isoDate) != "2024-03-13" || end.Before(now) {
			t.Fatalf("%s: unexpected end %s", r, end)
		}
	}
}

func TestBucketStart(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 23, 0, 0, 0, time.UTC)
	if got := BucketStart(sunday, model.IntervalWeekly); !got.Equal(day(2024, 3, 11)) {
		t.Fatalf("expected monday 2024-03-11, got %s", got)
	}
	if got := BucketStart(day(2024, 3, 11), model.IntervalWeekly); !got.Equal(day(2024, 3, 11)) {
		t.Fatalf("monday must start its own week, got %s", got)
	}
	if got := BucketStart(sunday, model.IntervalMonthly); !got.Equal(day(2024, 3, 1)) {
		t.Fatalf("expected 2024-03-01, got %s", got)
	}
	if got := BucketStart(sunday, model.IntervalDaily); !got.Equal(day(2024, 3, 17)) {
		t.Fatalf("expected 2024-03-17, got %s", got)
	}
}

func TestWeekDailyAlwaysSevenBuckets(t *testing.T) {
	rows := []model.DailyActivityRow{
		dailyRow(day(2024, 3, 13), 50, 90, 95, 2),
		dailyRow(day(2024, 3, 9), 40, 80, 85, 1),
		dailyRow(day(2024, 2, 1), 99, 99, 99, 5),
	}
	buckets := AggregateDailyActivity(rows, model.RangeWeek, model.IntervalDaily, now)
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}
	if buckets[0].Date != "2024-03-07" || buckets[6].Date != "2024-03-13" {
		t.Fatalf("unexpected bucket span %s..%s", buckets[0].Date, buckets[6].Date)
	}
	if buckets[0].DateLabel != "Mar 7" {
		t.Fatalf("unexpected label %q", buckets[0].DateLabel)
	}
	populated := 0
	for _, b := range buckets {
		if b.AverageWPM == nil {
			if b.AverageAccuracy != nil || b.AverageCorrectedAccuracy != nil || b.VersesWithData != 0 {
				t.Fatalf("empty bucket has data: %+v", b)
			}
			continue
		}
		populated++
	}
	if populated != 2 {
		t.Fatalf("expected 2 populated buckets, got %d", populated)
	}
	if got := buckets[2]; got.Date != "2024-03-09" || *got.AverageWPM != 40 || got.VersesWithData != 1 {
		t.Fatalf("unexpected bucket: %+v", got)
	}
	if got := buckets[6]; *got.AverageCorrectedAccuracy != 95 || got.VersesWithData != 2 {
		t.Fatalf("unexpected bucket: %+v", got)
	}
}

func TestDailyRowsAreWeighted(t *testing.T) {
	rows := []model.DailyActivityRow{
		dailyRow(day(2024, 3, 11), 30, 70, 80, 1),
		dailyRow(day(2024, 3, 12), 60, 100, 100, 3),
	}
	buckets := AggregateDailyActivity(rows, model.RangeWeek, model.IntervalWeekly, now)
	var week model.AggregatedStats
	for _, b := range buckets {
		if b.Date == "2024-03-11" {
			week = b
		}
	}
	if week.AverageWPM == nil {
		t.Fatalf("expected data for week of 2024-03-11: %+v", buckets)
	}
	// (30*1 + 60*3) / 4 = 52.5
	if *week.AverageWPM != 53 || *week.AverageAccuracy != 93 || *week.AverageCorrectedAccuracy != 95 {
		t.Fatalf("unexpected weighted averages: wpm=%d acc=%d corr=%d", *week.AverageWPM, *week.AverageAccuracy, *week.AverageCorrectedAccuracy)
	}
	if week.VersesWithData != 4 {
		t.Fatalf("expected 4 verses, got %d", week.VersesWithData)
	}
}

func TestDailyRowsWithoutStatsAreSkipped(t *testing.T) {
	rows := []model.DailyActivityRow{
		{UserID: "u1", Day: day(2024, 3, 13), VerseCount: 4},
	}
	buckets := AggregateDailyActivity(rows, model.RangeWeek, model.IntervalDaily, now)
	last := buckets[len(buckets)-1]
	if last.AverageWPM != nil || last.VersesWithData != 0 {
		t.Fatalf("expected empty bucket, got %+v", last)
	}
}

func TestVerseStatsAreUnweighted(t *testing.T) {
	verses := []model.VerseStatsWithDate{
		{VerseStats: model.VerseStats{WPM: 30, Accuracy: 70, CorrectedAccuracy: 80}, Date: now.Add(-time.Hour)},
		{VerseStats: model.VerseStats{WPM: 60, Accuracy: 100, CorrectedAccuracy: 100}, Date: now.Add(-2 * time.Hour)},
		{VerseStats: model.VerseStats{WPM: 90, Accuracy: 100, CorrectedAccuracy: 100}, Date: now.AddDate(0, 0, -8)},
	}
	buckets := AggregateVerseStats(verses, model.RangeWeek, model.IntervalDaily, now)
	last := buckets[len(buckets)-1]
	if last.AverageWPM == nil || *last.AverageWPM != 45 || *last.AverageAccuracy != 85 || last.VersesWithData != 2 {
		t.Fatalf("unexpected bucket: %+v", last)
	}
	for _, b := range buckets[:len(buckets)-1] {
		if b.AverageWPM != nil {
			t.Fatalf("unexpected data in %s", b.Date)
		}
	}
}

func TestIntervalEnumeration(t *testing.T) {
	cases := []struct {
		r     model.TimeRange
		iv    model.Interval
		count int
		first string
		label string
	}{
		{r: model.RangeMonth, iv: model.IntervalDaily, count: 30, first: "2024-02-13", label: "Feb 13"},
		{r: model.RangeMonth, iv: model.IntervalWeekly, count: 5, first: "2024-02-12", label: "Feb 12"},
		{r: model.Range3Months, iv: model.IntervalMonthly, count: 4, first: "2023-12-01", label: "Dec 2023"},
		{r: model.RangeYear, iv: model.IntervalMonthly, count: 13, first: "2023-03-01", label: "Mar 2023"},
	}
	for _, tc := range cases {
		buckets := AggregateDailyActivity(nil, tc.r, tc.iv, now)
		if len(buckets) != tc.count {
			t.Fatalf("%s/%s: expected %d buckets, got %d", tc.r, tc.iv, tc.count, len(buckets))
		}
		if buckets[0].Date != tc.first || buckets[0].DateLabel != tc.label {
			t.Fatalf("%s/%s: unexpected first bucket %+v", tc.r, tc.iv, buckets[0])
		}
		for i := 1; i < len(buckets); i++ {
			if buckets[i].Date <= buckets[i-1].Date {
				t.Fatalf("%s/%s: buckets out of order at %d", tc.r, tc.iv, i)
			}
		}
	}
}

type fakeSource struct {
	rows   []model.DailyActivityRow
	verses []model.TypedVerse
	since  time.Time
}

func (f *fakeSource) ListDailyActivity(context.Context, string) ([]model.DailyActivityRow, error) {
	return f.rows, nil
}

func (f *fakeSource) ListTypedVerses(_ context.Context, _ string, since time.Time) ([]model.TypedVerse, error) {
	f.since = since
	return f.verses, nil
}

func TestBuildReportFromVerses(t *testing.T) {
	tv := model.TypedVerse{
		UserID:    "u1",
		CreatedAt: now.Add(-time.Hour),
		TypingData: model.TypingData{
			UserActions:  typeSteadily("abcdefghij", 0, 2000),
			UserNodes:    words("abcdefghij"),
			CorrectNodes: words("abcdefghij"),
		},
	}
	broken := model.TypedVerse{UserID: "u1", CreatedAt: now.Add(-time.Hour)}
	src := &fakeSource{verses: []model.TypedVerse{tv, broken}}
	cfg := model.ChartConfig{UserID: "u1", Range: model.RangeWeek, Interval: model.IntervalDaily, Source: model.SourceVerses}

	report, err := BuildReport(context.Background(), src, cfg, now)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if !src.since.Equal(day(2024, 3, 7)) {
		t.Fatalf("expected verses since window start, got %s", src.since)
	}
	last := report.Buckets[len(report.Buckets)-1]
	if last.AverageWPM == nil || *last.AverageWPM != 60 || last.VersesWithData != 1 {
		t.Fatalf("unexpected bucket: %+v", last)
	}
}

func TestRenderChartAndBuckets(t *testing.T) {
	rows := []model.DailyActivityRow{dailyRow(day(2024, 3, 12), 50, 90, 95, 2)}
	report, err := BuildReport(context.Background(), &fakeSource{rows: rows},
		model.ChartConfig{UserID: "u1", Range: model.RangeWeek, Interval: model.IntervalDaily, Source: model.SourceDaily}, now)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}

	var buf bytes.Buffer
	if err := RenderChart(&buf, report, 20, 4, false); err != nil {
		t.Fatalf("render chart: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Legend:") || !strings.Contains(out, "Corrected") {
		t.Fatalf("chart missing legend:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected color codes in chart")
	}

	buf.Reset()
	if err := RenderBuckets(&buf, report.Buckets); err != nil {
		t.Fatalf("render buckets: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 9 {
		t.Fatalf("expected header, 7 rows and a blank line, got %d lines:\n%s", got, buf.String())
	}
}

func TestPlotSeriesNoData(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotSeries(&buf, "WPM", []Series{{Name: "WPM", Values: []float64{math.NaN(), math.NaN()}}}, 20, 4, false); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if !strings.Contains(buf.String(), "No data in range.") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestResampleSeriesKeepsGaps(t *testing.T) {
	got := resampleSeries([]float64{1, math.NaN(), math.NaN(), 3}, 2)
	if got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected downsample: %v", got)
	}
	got = resampleSeries([]float64{math.NaN(), math.NaN(), 5, 5}, 2)
	if !math.IsNaN(got[0]) {
		t.Fatalf("expected gap to survive downsampling: %v", got)
	}
}

func TestPlotWidthFor(t *testing.T) {
	if got := PlotWidthFor(80, 6); got != 74 {
		t.Fatalf("expected 74, got %d", got)
	}
	if got := PlotWidthFor(5, 6); got != minPlotWidth {
		t.Fatalf("expected minimum width, got %d", got)
	}
}
