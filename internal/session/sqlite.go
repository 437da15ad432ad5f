package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/falanarh/lms-sub001/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps sessions in an sqlite database, one row per content id.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) the session database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attempt_sessions (
		key TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		captured_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts the session row for its content id.
func (s *SQLiteStore) Save(sess *model.AttemptSession) error {
	sess.CapturedAt = time.Now()
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO attempt_sessions (key, content_id, payload, captured_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = ?, captured_at = ?`,
		Key(sess.ContentID), sess.ContentID, string(payload), sess.CapturedAt,
		string(payload), sess.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ContentID, err)
	}
	return nil
}

// Load returns the stored session for contentID, or nil when no entry exists.
// A row whose payload no longer decodes is dropped and treated as absent.
func (s *SQLiteStore) Load(contentID string) (*model.AttemptSession, error) {
	var payload string
	err := s.db.QueryRow(
		`SELECT payload FROM attempt_sessions WHERE key = ?`, Key(contentID),
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", contentID, err)
	}

	var sess model.AttemptSession
	if err := json.Unmarshal([]byte(payload), &sess); err != nil {
		slog.Warn("dropping undecodable session payload", "content_id", contentID, "error", err)
		_ = s.Clear(contentID)
		return nil, nil
	}
	sess.Normalize()
	return &sess, nil
}

// Clear removes the entry for contentID. Missing entries are not an error.
func (s *SQLiteStore) Clear(contentID string) error {
	_, err := s.db.Exec(`DELETE FROM attempt_sessions WHERE key = ?`, Key(contentID))
	if err != nil {
		return fmt.Errorf("clear session %s: %w", contentID, err)
	}
	return nil
}

// List returns all stored sessions, newest capture first. Undecodable rows
// are skipped.
func (s *SQLiteStore) List() ([]*model.AttemptSession, error) {
	rows, err := s.db.Query(`SELECT content_id, payload FROM attempt_sessions ORDER BY captured_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.AttemptSession
	for rows.Next() {
		var contentID, payload string
		if err := rows.Scan(&contentID, &payload); err != nil {
			return nil, err
		}
		var sess model.AttemptSession
		if err := json.Unmarshal([]byte(payload), &sess); err != nil {
			slog.Warn("skipping undecodable session payload", "content_id", contentID, "error", err)
			continue
		}
		sess.Normalize()
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}
