package store

import "time"

// timeLayout is fixed-width so text timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dialect holds the SQL that differs between backends. Every query takes
// the same arguments in the same order on both backends.
type dialect struct {
	name       string
	driver     string
	migrations []string

	insertTypedVerse string
	// listTypedVerses args: user_id filter (twice, empty = all), since.
	listTypedVerses string
	// applyVerse args: id, user_id, day, label, wpm, accuracy,
	// corrected_accuracy, verses_with_stats (0 or 1), updated_at, label, label.
	applyVerse string
	// replaceDaily args: id, user_id, day, verse_count, passages, wpm,
	// accuracy, corrected_accuracy, verses_with_stats, updated_at.
	replaceDaily string
	listDaily    string
	getDaily     string

	encodeTime func(time.Time) any
}

const dailyColumns = `id, user_id, day, verse_count, passages, average_wpm, average_accuracy,
	average_corrected_accuracy, verses_with_stats, updated_at`

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS typed_verses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			book TEXT NOT NULL,
			chapter INTEGER NOT NULL,
			verse INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			typing_data TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_activity (
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			day TEXT NOT NULL,
			verse_count INTEGER NOT NULL,
			passages TEXT NOT NULL DEFAULT '[]',
			average_wpm INTEGER,
			average_accuracy INTEGER,
			average_corrected_accuracy INTEGER,
			verses_with_stats INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_typed_verses_user_created ON typed_verses(user_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_typed_verses_created ON typed_verses(created_at);`,
	},
	insertTypedVerse: `INSERT INTO typed_verses (id, user_id, book, chapter, verse, created_at, typing_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	listTypedVerses: `SELECT id, user_id, book, chapter, verse, created_at, typing_data
		FROM typed_verses
		WHERE (? = '' OR user_id = ?) AND created_at >= ?
		ORDER BY created_at ASC, id ASC`,
	applyVerse: `INSERT INTO daily_activity (` + dailyColumns + `)
		VALUES (?, ?, ?, 1, json_array(?), ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			verse_count = daily_activity.verse_count + 1,
			passages = CASE
				WHEN EXISTS (SELECT 1 FROM json_each(daily_activity.passages) WHERE json_each.value = ?)
					THEN daily_activity.passages
				ELSE json_insert(daily_activity.passages, '$[#]', ?)
			END,
			average_wpm = CASE WHEN excluded.verses_with_stats = 0 THEN daily_activity.average_wpm
				ELSE CAST(ROUND((COALESCE(daily_activity.average_wpm, 0) * daily_activity.verses_with_stats + excluded.average_wpm) * 1.0
					/ (daily_activity.verses_with_stats + 1)) AS INTEGER) END,
			average_accuracy = CASE WHEN excluded.verses_with_stats = 0 THEN daily_activity.average_accuracy
				ELSE CAST(ROUND((COALESCE(daily_activity.average_accuracy, 0) * daily_activity.verses_with_stats + excluded.average_accuracy) * 1.0
					/ (daily_activity.verses_with_stats + 1)) AS INTEGER) END,
			average_corrected_accuracy = CASE WHEN excluded.verses_with_stats = 0 THEN daily_activity.average_corrected_accuracy
				ELSE CAST(ROUND((COALESCE(daily_activity.average_corrected_accuracy, 0) * daily_activity.verses_with_stats + excluded.average_corrected_accuracy) * 1.0
					/ (daily_activity.verses_with_stats + 1)) AS INTEGER) END,
			verses_with_stats = daily_activity.verses_with_stats + excluded.verses_with_stats,
			updated_at = excluded.updated_at`,
	replaceDaily: `INSERT INTO daily_activity (` + dailyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			verse_count = excluded.verse_count,
			passages = excluded.passages,
			average_wpm = excluded.average_wpm,
			average_accuracy = excluded.average_accuracy,
			average_corrected_accuracy = excluded.average_corrected_accuracy,
			verses_with_stats = excluded.verses_with_stats,
			updated_at = excluded.updated_at`,
	listDaily: `SELECT ` + dailyColumns + `
		FROM daily_activity
		WHERE user_id = ?
		ORDER BY day DESC`,
	getDaily: `SELECT ` + dailyColumns + `
		FROM daily_activity
		WHERE user_id = ? AND day = ?`,
	encodeTime: func(t time.Time) any {
		return t.UTC().Format(timeLayout)
	},
}

const pgDailySelect = `id, user_id, to_char(day, 'YYYY-MM-DD'), verse_count, passages::text, average_wpm,
	average_accuracy, average_corrected_accuracy, verses_with_stats,
	to_char(updated_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"000Z"')`

var postgresDialect = dialect{
	name:   "postgres",
	driver: "postgres",
	migrations: []string{
		`CREATE TABLE IF NOT EXISTS typed_verses (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			book TEXT NOT NULL,
			chapter INTEGER NOT NULL,
			verse INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			typing_data JSONB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_activity (
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			day DATE NOT NULL,
			verse_count INTEGER NOT NULL,
			passages JSONB NOT NULL DEFAULT '[]'::jsonb,
			average_wpm INTEGER,
			average_accuracy INTEGER,
			average_corrected_accuracy INTEGER,
			verses_with_stats INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, day)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_typed_verses_user_created ON typed_verses(user_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_typed_verses_created ON typed_verses(created_at);`,
	},
	insertTypedVerse: `INSERT INTO typed_verses (id, user_id, book, chapter, verse, created_at, typing_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`,
	listTypedVerses: `SELECT id, user_id, book, chapter, verse,
			to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS.US"000Z"'), typing_data::text
		FROM typed_verses
		WHERE ($1::text = '' OR user_id = $2) AND created_at >= $3
		ORDER BY created_at ASC, id ASC`,
	applyVerse: `INSERT INTO daily_activity (` + dailyColumns + `)
		VALUES ($1, $2, $3::date, 1, jsonb_build_array($4::text), $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, day) DO UPDATE SET
			verse_count = daily_activity.verse_count + 1,
			passages = CASE
				WHEN daily_activity.passages @> jsonb_build_array($10::text) THEN daily_activity.passages
				ELSE daily_activity.passages || jsonb_build_array($11::text)
			END,
			average_wpm = CASE WHEN EXCLUDED.verses_with_stats = 0 THEN daily_activity.average_wpm
				ELSE ROUND((COALESCE(daily_activity.average_wpm, 0) * daily_activity.verses_with_stats + EXCLUDED.average_wpm)::numeric
					/ (daily_activity.verses_with_stats + 1))::integer END,
			average_accuracy = CASE WHEN EXCLUDED.verses_with_stats = 0 THEN daily_activity.average_accuracy
				ELSE ROUND((COALESCE(daily_activity.average_accuracy, 0) * daily_activity.verses_with_stats + EXCLUDED.average_accuracy)::numeric
					/ (daily_activity.verses_with_stats + 1))::integer END,
			average_corrected_accuracy = CASE WHEN EXCLUDED.verses_with_stats = 0 THEN daily_activity.average_corrected_accuracy
				ELSE ROUND((COALESCE(daily_activity.average_corrected_accuracy, 0) * daily_activity.verses_with_stats + EXCLUDED.average_corrected_accuracy)::numeric
					/ (daily_activity.verses_with_stats + 1))::integer END,
			verses_with_stats = daily_activity.verses_with_stats + EXCLUDED.verses_with_stats,
			updated_at = EXCLUDED.updated_at`,
	replaceDaily: `INSERT INTO daily_activity (` + dailyColumns + `)
		VALUES ($1, $2, $3::date, $4, $5::jsonb, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, day) DO UPDATE SET
			verse_count = EXCLUDED.verse_count,
			passages = EXCLUDED.passages,
			average_wpm = EXCLUDED.average_wpm,
			average_accuracy = EXCLUDED.average_accuracy,
			average_corrected_accuracy = EXCLUDED.average_corrected_accuracy,
			verses_with_stats = EXCLUDED.verses_with_stats,
			updated_at = EXCLUDED.updated_at`,
	listDaily: `SELECT ` + pgDailySelect + `
		FROM daily_activity
		WHERE user_id = $1
		ORDER BY day DESC`,
	getDaily: `SELECT ` + pgDailySelect + `
		FROM daily_activity
		WHERE user_id = $1 AND day = $2::date`,
	encodeTime: func(t time.Time) any {
		return t.UTC()
	},
}
