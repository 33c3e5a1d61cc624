package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/versetype/internal/config"
	"github.com/verte-zerg/versetype/internal/model"
)

const typingDataJSON = `{
	"userActions": [
		{"type": "insertText", "key": "a", "datetime": "2024-03-12T09:00:00Z"},
		{"type": "insertText", "key": "b", "datetime": "2024-03-12T09:00:01Z"},
		{"type": "insertText", "key": "x", "datetime": "2024-03-12T09:00:02Z"},
		{"type": "deleteContentBackward", "datetime": "2024-03-12T09:00:02.500Z"},
		{"type": "insertText", "key": "c", "datetime": "2024-03-12T09:00:03Z"}
	],
	"userNodes": [{"letters": ["a", "b", "c"]}],
	"correctNodes": [{"letters": ["a", "b", "c"]}]
}`

func isolate(t *testing.T) (dbPath, dataPath string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{"VERSETYPE_DB_DRIVER", "VERSETYPE_DATABASE_URL", "VERSETYPE_USER", "VERSETYPE_ADDR", "VERSETYPE_SHUTDOWN_TIMEOUT"} {
		t.Setenv(key, "")
	}
	dataPath = filepath.Join(dir, "verse.json")
	if err := os.WriteFile(dataPath, []byte(typingDataJSON), 0o644); err != nil {
		t.Fatalf("write typing data: %v", err)
	}
	return filepath.Join(dir, "versetype.db"), dataPath
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("versetype %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestVerseStatsCommand(t *testing.T) {
	_, dataPath := isolate(t)

	out := run(t, "verse-stats", dataPath)
	for _, want := range []string{"WPM: 12", "Accuracy: 75%", "Corrected accuracy: 100%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	out = run(t, "verse-stats", "--json", dataPath)
	var got model.VerseStats
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if got.WPM != 12 {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestRecordDailyAndBackfill(t *testing.T) {
	dbPath, dataPath := isolate(t)
	common := []string{"--dsn", dbPath, "--user", "alice"}

	for i := 0; i < 2; i++ {
		args := append([]string{"record", "--book", "1_john", "--chapter", "4", "--verse", "8", "--at", "2024-03-12T09:00:00Z"}, common...)
		out := run(t, append(args, dataPath)...)
		if !strings.Contains(out, "Recorded 1 John 4:8 for alice on 2024-03-12") {
			t.Fatalf("unexpected record output:\n%s", out)
		}
	}

	var rows []model.DailyActivityRow
	out := run(t, append([]string{"daily", "--json"}, common...)...)
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].VerseCount != 2 || len(rows[0].Passages) != 1 || *rows[0].AverageWPM != 12 {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	run(t, append([]string{"backfill"}, common...)...)
	out = run(t, append([]string{"daily", "--summary"}, common...)...)
	for _, want := range []string{"Verses typed: 2", "Distinct passages: 1", "2024-03-12", "1 John 4:8"} {
		if !strings.Contains(out, want) {
			t.Fatalf("daily output missing %q:\n%s", want, out)
		}
	}
}

func TestRecordMalformedTypingDataCountsVerse(t *testing.T) {
	dbPath, _ := isolate(t)
	badPath := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badPath, []byte(`{"userActions": [{"type": "bogus"}]}`), 0o644); err != nil {
		t.Fatalf("write typing data: %v", err)
	}
	common := []string{"--dsn", dbPath, "--user", "alice"}

	out := run(t, append([]string{"record", "--book", "john", "--chapter", "3", "--verse", "17", "--at", "2024-03-12T09:00:00Z", badPath}, common...)...)
	if !strings.Contains(out, "No stats") {
		t.Fatalf("expected null stats output:\n%s", out)
	}

	var rows []model.DailyActivityRow
	out = run(t, append([]string{"daily", "--json"}, common...)...)
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].VerseCount != 1 || rows[0].VersesWithStats != 0 || rows[0].AverageWPM != nil {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestChartRejectsUnknownRange(t *testing.T) {
	dbPath, _ := isolate(t)
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"chart", "--dsn", dbPath, "--range", "decade"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for unknown range")
	}
}

func TestChartUsesConfigFile(t *testing.T) {
	dbPath, _ := isolate(t)
	cfgPath := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "versetype", "config.toml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "[chart]\nrange = \"year\"\ninterval = \"monthly\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var buckets []model.AggregatedStats
	out := run(t, "chart", "--dsn", dbPath, "--json")
	if err := json.Unmarshal([]byte(out), &buckets); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(buckets) < 12 {
		t.Fatalf("expected a year of monthly buckets from config, got %d", len(buckets))
	}
	for _, b := range buckets {
		if !strings.HasSuffix(b.Date, "-01") {
			t.Fatalf("expected month starts, got %s", b.Date)
		}
	}

	out = run(t, "chart", "--dsn", dbPath, "--json", "--range", "week", "--interval", "daily")
	if err := json.Unmarshal([]byte(out), &buckets); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(buckets) != 7 {
		t.Fatalf("flags must override config, got %d buckets", len(buckets))
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("template must decode: %v", err)
	}
	if cfg.Store.Driver != nil || cfg.Chart.Range != nil {
		t.Fatalf("template values must be commented out: %+v", cfg)
	}
}
