// Package store handles persistence of typed verses and daily activity.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver.

	"github.com/verte-zerg/versetype/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

const dayLayout = "2006-01-02"

var (
	// ErrNotFound is returned when a daily activity row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnknownDriver is returned by Open for unsupported backends.
	ErrUnknownDriver = errors.New("unknown database driver")
)

// Store wraps SQL access for typed verses and daily activity rows.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects to the backend named by driver ("sqlite" or "postgres")
// and applies migrations. For sqlite the dsn is a file path.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(dsn)
	case "postgres", "postgresql":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// OpenSQLite opens or creates the SQLite database at path.
func OpenSQLite(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open(sqliteDialect.driver, path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	return newStore(db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL using a lib/pq connection string.
func OpenPostgres(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres connection string is empty")
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on ping failure.
			_ = cerr
		}
		return nil, err
	}
	return newStore(db, postgresDialect)
}

func newStore(db *sql.DB, d dialect) (*Store, error) {
	store := &Store{db: db, dialect: d, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports the backend name.
func (s *Store) Driver() string {
	return s.dialect.name
}

func (s *Store) migrate() error {
	for _, stmt := range s.dialect.migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

// InsertTypedVerse stores a verse submission. A missing ID is generated.
func (s *Store) InsertTypedVerse(ctx context.Context, tv model.TypedVerse) (model.TypedVerse, error) {
	return s.insertTypedVerse(ctx, s.db, tv)
}

// RecordVerse stores a verse submission and folds it into the (userID, day)
// row in one transaction. A failed upsert leaves no verse behind.
func (s *Store) RecordVerse(ctx context.Context, tv model.TypedVerse, day time.Time, label string, stats *model.VerseStats) (saved model.TypedVerse, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.TypedVerse{}, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	saved, err = s.insertTypedVerse(ctx, tx, tv)
	if err != nil {
		return model.TypedVerse{}, err
	}
	if err = s.applyVerse(ctx, tx, saved.UserID, day, label, stats); err != nil {
		return model.TypedVerse{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.TypedVerse{}, err
	}
	return saved, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertTypedVerse(ctx context.Context, ex execer, tv model.TypedVerse) (model.TypedVerse, error) {
	if tv.ID == "" {
		tv.ID = uuid.NewString()
	}
	if tv.CreatedAt.IsZero() {
		tv.CreatedAt = s.now()
	}
	tv.CreatedAt = tv.CreatedAt.UTC()
	payload, err := json.Marshal(tv.TypingData)
	if err != nil {
		return model.TypedVerse{}, fmt.Errorf("encode typing data: %w", err)
	}
	if _, err := ex.ExecContext(ctx, s.dialect.insertTypedVerse,
		tv.ID,
		tv.UserID,
		tv.Book,
		tv.Chapter,
		tv.Verse,
		s.dialect.encodeTime(tv.CreatedAt),
		string(payload),
	); err != nil {
		return model.TypedVerse{}, err
	}
	return tv, nil
}

// ListTypedVerses returns verses created at or after since, oldest first.
// An empty userID lists verses for every user.
func (s *Store) ListTypedVerses(ctx context.Context, userID string, since time.Time) ([]model.TypedVerse, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.listTypedVerses, userID, userID, s.dialect.encodeTime(since))
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var verses []model.TypedVerse
	for rows.Next() {
		var tv model.TypedVerse
		var createdAt, payload string
		if err := rows.Scan(&tv.ID, &tv.UserID, &tv.Book, &tv.Chapter, &tv.Verse, &createdAt, &payload); err != nil {
			return nil, err
		}
		if tv.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at of verse %s: %w", tv.ID, err)
		}
		if err := json.Unmarshal([]byte(payload), &tv.TypingData); err != nil {
			return nil, fmt.Errorf("decode typing data of verse %s: %w", tv.ID, err)
		}
		verses = append(verses, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return verses, nil
}

// ApplyVerse folds one typed verse into the (userID, day) row with a single
// upsert. The running averages are computed by the database from the
// committed row, so concurrent calls for the same key serialize correctly.
func (s *Store) ApplyVerse(ctx context.Context, userID string, day time.Time, label string, stats *model.VerseStats) error {
	return s.applyVerse(ctx, s.db, userID, day, label, stats)
}

func (s *Store) applyVerse(ctx context.Context, ex execer, userID string, day time.Time, label string, stats *model.VerseStats) error {
	var wpm, acc, corrected any
	withStats := 0
	if stats != nil {
		wpm, acc, corrected = stats.WPM, stats.Accuracy, stats.CorrectedAccuracy
		withStats = 1
	}
	_, err := ex.ExecContext(ctx, s.dialect.applyVerse,
		uuid.NewString(),
		userID,
		day.UTC().Format(dayLayout),
		label,
		wpm,
		acc,
		corrected,
		withStats,
		s.dialect.encodeTime(s.now()),
		label,
		label,
	)
	return err
}

// ReplaceDailyActivity overwrites every given row in one transaction.
// Existing values for the same key are replaced, never merged.
func (s *Store) ReplaceDailyActivity(ctx context.Context, rows []model.DailyActivityRow) (err error) {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.dialect.replaceDaily)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()

	now := s.now()
	for _, row := range rows {
		id := row.ID
		if id == "" {
			id = uuid.NewString()
		}
		passages := row.Passages
		if passages == nil {
			passages = []string{}
		}
		encoded, err := json.Marshal(passages)
		if err != nil {
			return fmt.Errorf("encode passages: %w", err)
		}
		updatedAt := row.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			row.UserID,
			row.Day.UTC().Format(dayLayout),
			row.VerseCount,
			string(encoded),
			nullableInt(row.AverageWPM),
			nullableInt(row.AverageAccuracy),
			nullableInt(row.AverageCorrectedAccuracy),
			row.VersesWithStats,
			s.dialect.encodeTime(updatedAt),
		); err != nil {
			return fmt.Errorf("replace row %s/%s: %w", row.UserID, row.Day.UTC().Format(dayLayout), err)
		}
	}

	return tx.Commit()
}

// ListDailyActivity returns all rows for a user, newest day first.
func (s *Store) ListDailyActivity(ctx context.Context, userID string) ([]model.DailyActivityRow, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.listDaily, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.DailyActivityRow
	for rows.Next() {
		row, err := scanDailyRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetDailyActivity returns the row for a user and UTC day.
func (s *Store) GetDailyActivity(ctx context.Context, userID string, day time.Time) (model.DailyActivityRow, error) {
	row, err := scanDailyRow(s.db.QueryRowContext(ctx, s.dialect.getDaily, userID, day.UTC().Format(dayLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyActivityRow{}, ErrNotFound
	}
	return row, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDailyRow(sc scanner) (model.DailyActivityRow, error) {
	var row model.DailyActivityRow
	var day, passages, updatedAt string
	var wpm, acc, corrected sql.NullInt64
	if err := sc.Scan(&row.ID, &row.UserID, &day, &row.VerseCount, &passages, &wpm, &acc, &corrected, &row.VersesWithStats, &updatedAt); err != nil {
		return model.DailyActivityRow{}, err
	}
	var err error
	if row.Day, err = time.Parse(dayLayout, day); err != nil {
		return model.DailyActivityRow{}, fmt.Errorf("parse day %q: %w", day, err)
	}
	if row.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return model.DailyActivityRow{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	if err := json.Unmarshal([]byte(passages), &row.Passages); err != nil {
		return model.DailyActivityRow{}, fmt.Errorf("decode passages: %w", err)
	}
	row.AverageWPM = intPtr(wpm)
	row.AverageAccuracy = intPtr(acc)
	row.AverageCorrectedAccuracy = intPtr(corrected)
	return row, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
