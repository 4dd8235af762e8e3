package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the voiceflowd tables. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS modes (
    id               BIGSERIAL PRIMARY KEY,
    name             TEXT NOT NULL UNIQUE,
    description      TEXT NOT NULL DEFAULT '',
    system_prompt    TEXT NOT NULL DEFAULT '',
    tone             TEXT NOT NULL DEFAULT 'formal',
    use_ai_polish    BOOLEAN NOT NULL DEFAULT FALSE,
    use_cleanup      BOOLEAN NOT NULL DEFAULT TRUE,
    use_dictionary   BOOLEAN NOT NULL DEFAULT TRUE,
    use_snippets     BOOLEAN NOT NULL DEFAULT TRUE,
    ai_model         TEXT NOT NULL DEFAULT '',
    auto_switch_apps JSONB NOT NULL DEFAULT '[]',
    shortcut         TEXT NOT NULL DEFAULT '',
    sort_order       INTEGER NOT NULL DEFAULT 0,
    is_default       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS snippets (
    id         BIGSERIAL PRIMARY KEY,
    trigger    TEXT NOT NULL UNIQUE,
    content    TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    use_count  BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS dictionary_entries (
    original    TEXT PRIMARY KEY,
    replacement TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS transcriptions (
    id            UUID PRIMARY KEY,
    session_id    TEXT NOT NULL DEFAULT '',
    raw_text      TEXT NOT NULL DEFAULT '',
    text          TEXT NOT NULL DEFAULT '',
    mode_name     TEXT NOT NULL DEFAULT '',
    command_type  TEXT NOT NULL DEFAULT 'none',
    app_name      TEXT NOT NULL DEFAULT '',
    audio_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    word_count    INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created ON transcriptions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transcriptions_session ON transcriptions(session_id);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgres creates a [PostgresStore] using the given connection or pool.
// The caller is responsible for calling [PostgresStore.Migrate] to ensure the
// schema exists before issuing queries.
func NewPostgres(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL and seeds the default dictation modes if
// the modes table is empty.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}

	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM modes`).Scan(&count); err != nil {
		return fmt.Errorf("store: count modes: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, m := range DefaultModes() {
		if err := s.CreateMode(ctx, &m); err != nil {
			return fmt.Errorf("store: seed mode %q: %w", m.Name, err)
		}
	}
	return nil
}

const modeColumns = `id, name, description, system_prompt, tone,
       use_ai_polish, use_cleanup, use_dictionary, use_snippets,
       ai_model, auto_switch_apps, shortcut, sort_order, is_default,
       created_at, updated_at`

func scanMode(row pgx.Row) (*Mode, error) {
	var m Mode
	var apps []byte
	err := row.Scan(
		&m.ID, &m.Name, &m.Description, &m.SystemPrompt, &m.Tone,
		&m.UseAIPolish, &m.UseCleanup, &m.UseDictionary, &m.UseSnippets,
		&m.AIModel, &apps, &m.Shortcut, &m.SortOrder, &m.IsDefault,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(apps, &m.AutoSwitchApps); err != nil {
		return nil, fmt.Errorf("store: unmarshal auto_switch_apps: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) Modes(ctx context.Context) ([]Mode, error) {
	rows, err := s.db.Query(ctx, `SELECT `+modeColumns+` FROM modes ORDER BY sort_order, name`)
	if err != nil {
		return nil, fmt.Errorf("store: list modes: %w", err)
	}
	defer rows.Close()

	var modes []Mode
	for rows.Next() {
		m, err := scanMode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan mode: %w", err)
		}
		modes = append(modes, *m)
	}
	return modes, rows.Err()
}

func (s *PostgresStore) Mode(ctx context.Context, id int64) (*Mode, error) {
	m, err := scanMode(s.db.QueryRow(ctx, `SELECT `+modeColumns+` FROM modes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get mode %d: %w", id, err)
	}
	return m, nil
}

func (s *PostgresStore) DefaultMode(ctx context.Context) (*Mode, error) {
	m, err := scanMode(s.db.QueryRow(ctx, `SELECT `+modeColumns+` FROM modes WHERE is_default ORDER BY id LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: default mode: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) CreateMode(ctx context.Context, m *Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}
	apps, err := json.Marshal(emptySlice(m.AutoSwitchApps))
	if err != nil {
		return fmt.Errorf("store: marshal auto_switch_apps: %w", err)
	}

	const query = `
		INSERT INTO modes (
			name, description, system_prompt, tone,
			use_ai_polish, use_cleanup, use_dictionary, use_snippets,
			ai_model, auto_switch_apps, shortcut, sort_order, is_default
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		m.Name, m.Description, m.SystemPrompt, defaultTone(m.Tone),
		m.UseAIPolish, m.UseCleanup, m.UseDictionary, m.UseSnippets,
		m.AIModel, apps, m.Shortcut, m.SortOrder, m.IsDefault,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: mode %q already exists", m.Name)
		}
		return fmt.Errorf("store: create mode: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMode(ctx context.Context, m *Mode) error {
	if err := ValidateMode(m); err != nil {
		return err
	}
	apps, err := json.Marshal(emptySlice(m.AutoSwitchApps))
	if err != nil {
		return fmt.Errorf("store: marshal auto_switch_apps: %w", err)
	}

	const query = `
		UPDATE modes SET
			name = $2, description = $3, system_prompt = $4, tone = $5,
			use_ai_polish = $6, use_cleanup = $7, use_dictionary = $8, use_snippets = $9,
			ai_model = $10, auto_switch_apps = $11, shortcut = $12,
			sort_order = $13, is_default = $14, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err = s.db.QueryRow(ctx, query,
		m.ID, m.Name, m.Description, m.SystemPrompt, defaultTone(m.Tone),
		m.UseAIPolish, m.UseCleanup, m.UseDictionary, m.UseSnippets,
		m.AIModel, apps, m.Shortcut, m.SortOrder, m.IsDefault,
	).Scan(&m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: update mode %d: %w", m.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteMode(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM modes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete mode %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Snippets(ctx context.Context) ([]Snippet, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, trigger, content, description, use_count, created_at, updated_at
		 FROM snippets ORDER BY trigger`)
	if err != nil {
		return nil, fmt.Errorf("store: list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		if err := rows.Scan(&sn.ID, &sn.Trigger, &sn.Content, &sn.Description,
			&sn.UseCount, &sn.CreatedAt, &sn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan snippet: %w", err)
		}
		snippets = append(snippets, sn)
	}
	return snippets, rows.Err()
}

func (s *PostgresStore) CreateSnippet(ctx context.Context, sn *Snippet) error {
	if err := ValidateSnippet(sn); err != nil {
		return err
	}

	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM snippets`).Scan(&count); err != nil {
		return fmt.Errorf("store: count snippets: %w", err)
	}
	if count >= MaxSnippets {
		return fmt.Errorf("store: snippet limit of %d reached", MaxSnippets)
	}

	err := s.db.QueryRow(ctx,
		`INSERT INTO snippets (trigger, content, description) VALUES ($1,$2,$3)
		 RETURNING id, use_count, created_at, updated_at`,
		strings.ToLower(strings.TrimSpace(sn.Trigger)), sn.Content, sn.Description,
	).Scan(&sn.ID, &sn.UseCount, &sn.CreatedAt, &sn.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("store: snippet trigger %q already exists", sn.Trigger)
		}
		return fmt.Errorf("store: create snippet: %w", err)
	}
	sn.Trigger = strings.ToLower(strings.TrimSpace(sn.Trigger))
	return nil
}

func (s *PostgresStore) UpdateSnippet(ctx context.Context, sn *Snippet) error {
	if err := ValidateSnippet(sn); err != nil {
		return err
	}
	err := s.db.QueryRow(ctx,
		`UPDATE snippets SET trigger = $2, content = $3, description = $4, updated_at = now()
		 WHERE id = $1 RETURNING updated_at`,
		sn.ID, strings.ToLower(strings.TrimSpace(sn.Trigger)), sn.Content, sn.Description,
	).Scan(&sn.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("store: update snippet %d: %w", sn.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteSnippet(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM snippets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete snippet %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementSnippetUse(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `UPDATE snippets SET use_count = use_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: increment snippet %d: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) Dictionary(ctx context.Context) ([]DictionaryEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT original, replacement FROM dictionary_entries ORDER BY original`)
	if err != nil {
		return nil, fmt.Errorf("store: list dictionary: %w", err)
	}
	defer rows.Close()

	var entries []DictionaryEntry
	for rows.Next() {
		var e DictionaryEntry
		if err := rows.Scan(&e.Original, &e.Replacement); err != nil {
			return nil, fmt.Errorf("store: scan dictionary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) PutDictionaryEntry(ctx context.Context, e DictionaryEntry) error {
	if err := ValidateDictionaryEntry(e); err != nil {
		return err
	}

	var count int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM dictionary_entries`).Scan(&count); err != nil {
		return fmt.Errorf("store: count dictionary: %w", err)
	}
	if count >= MaxDictionaryEntries {
		return fmt.Errorf("store: dictionary limit of %d entries reached", MaxDictionaryEntries)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO dictionary_entries (original, replacement) VALUES ($1,$2)
		 ON CONFLICT (original) DO UPDATE SET replacement = EXCLUDED.replacement`,
		strings.ToLower(strings.TrimSpace(e.Original)), strings.TrimSpace(e.Replacement),
	)
	if err != nil {
		return fmt.Errorf("store: put dictionary entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDictionaryEntry(ctx context.Context, original string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM dictionary_entries WHERE original = $1`,
		strings.ToLower(strings.TrimSpace(original)))
	if err != nil {
		return fmt.Errorf("store: delete dictionary entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveTranscription(ctx context.Context, rec *TranscriptionRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO transcriptions (
			id, session_id, raw_text, text, mode_name, command_type,
			app_name, audio_seconds, word_count, created_at
		 ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.SessionID, rec.RawText, rec.Text, rec.ModeName, rec.CommandType,
		rec.AppName, rec.AudioSeconds, rec.WordCount, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save transcription: %w", err)
	}
	return nil
}

const transcriptionColumns = `id, session_id, raw_text, text, mode_name, command_type,
       app_name, audio_seconds, word_count, created_at`

func (s *PostgresStore) Transcription(ctx context.Context, id uuid.UUID) (*TranscriptionRecord, error) {
	var rec TranscriptionRecord
	err := s.db.QueryRow(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.SessionID, &rec.RawText, &rec.Text, &rec.ModeName, &rec.CommandType,
		&rec.AppName, &rec.AudioSeconds, &rec.WordCount, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get transcription %s: %w", id, err)
	}
	return &rec, nil
}

func (s *PostgresStore) Transcriptions(ctx context.Context, limit, offset int) ([]TranscriptionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+transcriptionColumns+` FROM transcriptions
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list transcriptions: %w", err)
	}
	defer rows.Close()

	var recs []TranscriptionRecord
	for rows.Next() {
		var rec TranscriptionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.RawText, &rec.Text, &rec.ModeName,
			&rec.CommandType, &rec.AppName, &rec.AudioSeconds, &rec.WordCount, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan transcription: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *PostgresStore) DeleteTranscription(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM transcriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: delete transcription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRow(ctx,
		`SELECT count(*), coalesce(sum(word_count), 0) FROM transcriptions`,
	).Scan(&st.TotalTranscriptions, &st.TotalWords)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	// Dictation averages roughly 40 words a minute.
	st.EstimatedMinutes = st.TotalWords / 40
	return &st, nil
}

func defaultTone(tone string) string {
	if tone == "" {
		return "formal"
	}
	return tone
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique-violation
// (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
