// Package main provides the CLI entrypoint for versetype.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/versetype/internal/activity"
	"github.com/verte-zerg/versetype/internal/config"
	"github.com/verte-zerg/versetype/internal/model"
	"github.com/verte-zerg/versetype/internal/stats"
	"github.com/verte-zerg/versetype/internal/statsui"
	"github.com/verte-zerg/versetype/internal/store"
)

const (
	defaultDriver      = "sqlite"
	defaultUser        = "local"
	defaultRange       = string(model.RangeWeek)
	defaultInterval    = string(model.IntervalDaily)
	defaultSource      = string(model.SourceDaily)
	defaultPlotHeight  = 8
	defaultAddress     = ":8080"
	defaultShutdown    = 10 * time.Second
	defaultBackfillJob = 0
)

var (
	dbDriver string
	dbDSN    string
	userID   string

	verseStatsJSON bool

	recordBook    string
	recordChapter int
	recordVerse   int
	recordAt      string

	dailyJSON    bool
	dailySummary bool

	chartRange    string
	chartInterval string
	chartSource   string
	chartHeight   int
	chartWidth    int
	chartJSON     bool
	chartNoPlot   bool

	backfillAll     bool
	backfillWorkers int

	serveAddr     string
	serveShutdown time.Duration
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "versetype",
		Short:         "Bible verse typing analytics",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", defaultDriver, "database driver (sqlite or postgres)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "dsn", "", "database file path (sqlite) or connection string (postgres)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", defaultUser, "user id")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVerseStatsCmd())
	rootCmd.AddCommand(newRecordCmd())
	rootCmd.AddCommand(newDailyCmd())
	rootCmd.AddCommand(newChartCmd())
	rootCmd.AddCommand(newBackfillCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatsCmd())

	return rootCmd
}

// loadSettings overlays the config file and environment onto flags the
// user did not set explicitly.
func loadSettings(cmd *cobra.Command) (config.FileConfig, error) {
	config.LoadDotEnv()
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(&fileCfg); err != nil {
		return config.FileConfig{}, err
	}
	applyStringConfig(cmd, "db-driver", &dbDriver, fileCfg.Store.Driver)
	applyStringConfig(cmd, "dsn", &dbDSN, fileCfg.Store.DSN)
	applyStringConfig(cmd, "user", &userID, fileCfg.User.ID)
	return fileCfg, nil
}

func openStore() (*store.Store, error) {
	dsn := dbDSN
	if dsn == "" && (dbDriver == "" || dbDriver == "sqlite") {
		dsn = config.DefaultDBPath()
	}
	st, err := store.Open(dbDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func newVerseStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verse-stats [file]",
		Short: "Compute stats for one verse from TypingData JSON (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runVerseStatsCmd,
	}
	cmd.Flags().BoolVar(&verseStatsJSON, "json", false, "print stats as JSON")
	return cmd
}

func runVerseStatsCmd(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	verseStats := stats.StatsFromJSON(raw)
	if verseStatsJSON {
		return writeJSON(cmd.OutOrStdout(), verseStats)
	}
	return stats.RenderVerseStats(cmd.OutOrStdout(), verseStats)
}

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record [file]",
		Short: "Store a typed verse and update the daily activity",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRecordCmd,
	}
	cmd.Flags().StringVar(&recordBook, "book", "", "book key (e.g. john, 1_samuel)")
	cmd.Flags().IntVar(&recordChapter, "chapter", 0, "chapter number")
	cmd.Flags().IntVar(&recordVerse, "verse", 0, "verse number")
	cmd.Flags().StringVar(&recordAt, "at", "", "time the verse was typed (RFC 3339, default now)")
	return cmd
}

func runRecordCmd(cmd *cobra.Command, args []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	if recordBook == "" || recordChapter <= 0 || recordVerse <= 0 {
		return fmt.Errorf("--book, --chapter and --verse are required")
	}
	createdAt := time.Now().UTC()
	if recordAt != "" {
		parsed, err := time.Parse(time.RFC3339, recordAt)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		createdAt = parsed.UTC()
	}
	raw, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	data, err := stats.ParseTypingData(raw)
	if err != nil {
		logErrf("Counting verse without stats: %v\n", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	aggregator := activity.NewAggregator(st, nil)
	recorder := activity.NewRecorder(st, aggregator, nil)
	sub, err := recorder.RecordTypedVerse(context.Background(), model.TypedVerse{
		UserID:     userID,
		Book:       recordBook,
		Chapter:    recordChapter,
		Verse:      recordVerse,
		CreatedAt:  createdAt,
		TypingData: data,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if _, err := fmt.Fprintf(out, "Recorded %s for %s on %s\n",
		activity.PassageLabel(recordBook, recordChapter, recordVerse), userID, sub.Day.Day.Format("2006-01-02")); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := stats.RenderVerseStats(out, sub.Stats); err != nil {
		return err
	}
	return stats.RenderDailyLog(out, []model.DailyActivityRow{sub.Day})
}

func newDailyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show the daily activity log, newest first",
		Args:  cobra.NoArgs,
		RunE:  runDailyCmd,
	}
	cmd.Flags().BoolVar(&dailyJSON, "json", false, "print rows as JSON")
	cmd.Flags().BoolVar(&dailySummary, "summary", false, "print totals before the log")
	return cmd
}

func runDailyCmd(cmd *cobra.Command, _ []string) error {
	if _, err := loadSettings(cmd); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	rows, err := activity.NewAggregator(st, nil).GetByUserID(context.Background(), userID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if dailyJSON {
		if rows == nil {
			rows = []model.DailyActivityRow{}
		}
		return writeJSON(out, rows)
	}
	if dailySummary {
		if err := stats.RenderSummary(out, rows); err != nil {
			return err
		}
	}
	return stats.RenderDailyLog(out, rows)
}

func newChartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Show WPM and accuracy over time",
		Args:  cobra.NoArgs,
		RunE:  runChartCmd,
	}
	cmd.Flags().StringVar(&chartRange, "range", defaultRange, "time range (week, month, 3months, year)")
	cmd.Flags().StringVar(&chartInterval, "interval", defaultInterval, "bucket size (daily, weekly, monthly)")
	cmd.Flags().StringVar(&chartSource, "source", defaultSource, "input (daily rows or raw verses)")
	cmd.Flags().IntVar(&chartHeight, "height", defaultPlotHeight, "plot height in rows")
	cmd.Flags().IntVar(&chartWidth, "width", 0, "plot width in columns (default: terminal width)")
	cmd.Flags().BoolVar(&chartJSON, "json", false, "print buckets as JSON")
	cmd.Flags().BoolVar(&chartNoPlot, "no-plot", false, "print the bucket table only")
	return cmd
}

func runChartCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "range", &chartRange, fileCfg.Chart.Range)
	applyStringConfig(cmd, "interval", &chartInterval, fileCfg.Chart.Interval)
	applyStringConfig(cmd, "source", &chartSource, fileCfg.Chart.Source)
	applyIntConfig(cmd, "height", &chartHeight, fileCfg.Chart.Height)

	cfg, err := chartConfig()
	if err != nil {
		return err
	}
	if chartHeight <= 0 {
		return fmt.Errorf("--height must be > 0")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := stats.BuildReport(context.Background(), st, cfg, time.Now())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if chartJSON {
		return writeJSON(out, report.Buckets)
	}
	if !chartNoPlot {
		if err := stats.RenderChart(out, report, chartWidth, chartHeight, false); err != nil {
			return err
		}
	}
	return stats.RenderBuckets(out, report.Buckets)
}

func chartConfig() (model.ChartConfig, error) {
	r, err := model.ParseTimeRange(chartRange)
	if err != nil {
		return model.ChartConfig{}, fmt.Errorf("invalid --range: %w", err)
	}
	iv, err := model.ParseInterval(chartInterval)
	if err != nil {
		return model.ChartConfig{}, fmt.Errorf("invalid --interval: %w", err)
	}
	src, err := model.ParseChartSource(chartSource)
	if err != nil {
		return model.ChartConfig{}, fmt.Errorf("invalid --source: %w", err)
	}
	return model.ChartConfig{UserID: userID, Range: r, Interval: iv, Source: src}, nil
}

func newBackfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Recompute daily activity from stored verses (stop live recording first)",
		Args:  cobra.NoArgs,
		RunE:  runBackfillCmd,
	}
	cmd.Flags().BoolVar(&backfillAll, "all", false, "recompute every user instead of --user")
	cmd.Flags().IntVar(&backfillWorkers, "workers", defaultBackfillJob, "parallel stats workers (default: GOMAXPROCS)")
	return cmd
}

func runBackfillCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyIntConfig(cmd, "workers", &backfillWorkers, fileCfg.Backfill.Workers)
	if backfillWorkers < 0 {
		return fmt.Errorf("--workers must be >= 0")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	target := userID
	if backfillAll {
		target = ""
	}
	aggregator := activity.NewAggregator(st, nil)
	count, err := activity.Backfill(context.Background(), st, aggregator, target, backfillWorkers)
	if err != nil {
		return err
	}
	logErrf("Rewrote %d daily rows\n", count)
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Browse daily activity and progress interactively",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&chartRange, "range", defaultRange, "time range (week, month, 3months, year)")
	cmd.Flags().StringVar(&chartInterval, "interval", defaultInterval, "bucket size (daily, weekly, monthly)")
	cmd.Flags().StringVar(&chartSource, "source", defaultSource, "input (daily rows or raw verses)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "range", &chartRange, fileCfg.Chart.Range)
	applyStringConfig(cmd, "interval", &chartInterval, fileCfg.Chart.Interval)
	applyStringConfig(cmd, "source", &chartSource, fileCfg.Chart.Source)
	cfg, err := chartConfig()
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ui := statsui.NewModel(st, cfg)
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run stats TUI: %w", err)
	}
	return nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return raw, nil
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return raw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *config.Duration) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = value.Duration
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# versetype configuration
# Uncomment a value to enable it. Environment variables override config
# values; CLI flags override both.

[store]
# driver = %q          # sqlite or postgres (%s)
# dsn = ""                 # SQLite file path or postgres connection string (%s)

[user]
# id = %q               # Default user for CLI commands (%s)

[chart]
# range = %q            # week, month, 3months or year
# interval = %q        # daily, weekly or monthly
# source = %q          # daily rows or raw verses
# height = %d               # Plot height in rows

[server]
# address = %q         # Listen address (%s)
# shutdown-timeout = %q  # Graceful shutdown timeout (%s)

[backfill]
# workers = 0              # Parallel stats workers (0 = GOMAXPROCS)
`,
		defaultDriver, config.EnvDBDriver,
		config.EnvDatabaseURL,
		defaultUser, config.EnvUser,
		defaultRange,
		defaultInterval,
		defaultSource,
		defaultPlotHeight,
		defaultAddress, config.EnvAddress,
		defaultShutdown.String(), config.EnvShutdownTimeout,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
