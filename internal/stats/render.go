package stats

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/versetype/internal/model"
)

const missing = "-"

// RenderVerseStats prints the stats of a single verse.
func RenderVerseStats(w io.Writer, s *model.VerseStats) error {
	if s == nil {
		_, err := fmt.Fprintln(w, "No stats: typing data is missing, too short or implausible.")
		return err
	}
	_, err := fmt.Fprintf(w, "WPM: %d\nAccuracy: %d%%\nCorrected accuracy: %d%%\n", s.WPM, s.Accuracy, s.CorrectedAccuracy)
	return err
}

// RenderSummary prints totals across all daily rows.
func RenderSummary(w io.Writer, rows []model.DailyActivityRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No activity found.")
		return err
	}
	verses, withStats := 0, 0
	passages := map[string]struct{}{}
	var wpm, acc float64
	for _, row := range rows {
		verses += row.VerseCount
		for _, p := range row.Passages {
			passages[p] = struct{}{}
		}
		if row.VersesWithStats > 0 && row.AverageWPM != nil && row.AverageAccuracy != nil {
			wpm += float64(*row.AverageWPM * row.VersesWithStats)
			acc += float64(*row.AverageAccuracy * row.VersesWithStats)
			withStats += row.VersesWithStats
		}
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Days active: %d", len(rows)),
		fmt.Sprintf("Verses typed: %d", verses),
		fmt.Sprintf("Distinct passages: %d", len(passages)),
	}
	if withStats > 0 {
		lines = append(lines,
			fmt.Sprintf("Avg WPM: %.0f", math.Round(wpm/float64(withStats))),
			fmt.Sprintf("Avg Accuracy: %.0f%%", math.Round(acc/float64(withStats))),
		)
	}
	_, err := fmt.Fprintln(w, strings.Join(lines, "\n")+"\n")
	return err
}

// DailyLogTable returns the headers and cells of the daily log.
func DailyLogTable(rows []model.DailyActivityRow) ([]string, [][]string) {
	headers := []string{"Date", "Verses", "With Stats", "WPM", "Accuracy", "Corrected", "Passages"}
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, []string{
			row.Day.Format(isoDate),
			fmt.Sprintf("%d", row.VerseCount),
			fmt.Sprintf("%d", row.VersesWithStats),
			formatOptional(row.AverageWPM, ""),
			formatOptional(row.AverageAccuracy, "%"),
			formatOptional(row.AverageCorrectedAccuracy, "%"),
			strings.Join(row.Passages, ", "),
		})
	}
	return headers, cells
}

// RenderDailyLog prints one line per day, newest first.
func RenderDailyLog(w io.Writer, rows []model.DailyActivityRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No activity found.")
		return err
	}
	headers, cells := DailyLogTable(rows)
	return writeLines(w, formatTable(headers, cells, map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true}))
}

// RenderBuckets prints the chart series as a table.
func RenderBuckets(w io.Writer, buckets []model.AggregatedStats) error {
	headers := []string{"Period", "Date", "Verses", "WPM", "Accuracy", "Corrected"}
	cells := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		cells = append(cells, []string{
			b.DateLabel,
			b.Date,
			fmt.Sprintf("%d", b.VersesWithData),
			formatOptional(b.AverageWPM, ""),
			formatOptional(b.AverageAccuracy, "%"),
			formatOptional(b.AverageCorrectedAccuracy, "%"),
		})
	}
	return writeLines(w, formatTable(headers, cells, map[int]bool{2: true, 3: true, 4: true, 5: true}))
}

// RenderChart plots WPM and accuracy series of the report.
func RenderChart(w io.Writer, report Report, width, height int, useColor bool) error {
	title := fmt.Sprintf("Progress (%s, %s, from %s)", report.Config.Range, report.Config.Interval, report.Config.Source)
	if err := PlotSeries(w, title+" WPM", []Series{
		{Name: "WPM", Values: bucketValues(report.Buckets, func(b model.AggregatedStats) *int { return b.AverageWPM })},
	}, width, height, useColor); err != nil {
		return err
	}
	return PlotSeries(w, title+" Accuracy", []Series{
		{Name: "Accuracy", Values: bucketValues(report.Buckets, func(b model.AggregatedStats) *int { return b.AverageAccuracy })},
		{Name: "Corrected", Values: bucketValues(report.Buckets, func(b model.AggregatedStats) *int { return b.AverageCorrectedAccuracy })},
	}, width, height, useColor)
}

func bucketValues(buckets []model.AggregatedStats, pick func(model.AggregatedStats) *int) []float64 {
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		if v := pick(b); v != nil {
			values[i] = float64(*v)
		} else {
			values[i] = math.NaN()
		}
	}
	return values
}

func formatOptional(v *int, suffix string) string {
	if v == nil {
		return missing
	}
	return fmt.Sprintf("%d%s", *v, suffix)
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}
