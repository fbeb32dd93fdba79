// Package history persists dialogue messages in SQLite. The database is
// opened lazily; if opening or writing fails the store degrades to
// in-memory so the translation pipeline never blocks on persistence.
package history

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"transvoice/logger"
	"transvoice/model"
)

// Store saves and lists dialogue messages per session.
type Store struct {
	dbPath string

	mu     sync.Mutex
	memory []model.DialogueMessage // fallback and write-through cache

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// NewStore creates a store writing to the SQLite file at dbPath. An empty
// path keeps the store purely in-memory.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) initDB() {
	if s.dbPath == "" {
		s.initErr = errors.New("history: no database path configured")
		return
	}
	db, err := sql.Open("sqlite", "file:"+s.dbPath+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY,
        session_id TEXT,
        speaker TEXT,
        language TEXT,
        target_language TEXT,
        original_text TEXT,
        translated_text TEXT,
        confidence REAL,
        created_at DATETIME
    );`); err != nil {
		s.initErr = err
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		return
	}
	s.db = db
	logger.L.Info("sqlite history DB initialized", "path", s.dbPath)
}

// Save persists a message. Failures are logged, never returned: history
// must not break the pipeline. Messages land in memory only when SQLite
// cannot take them, so the fallback slice stays empty on a healthy store.
func (s *Store) Save(msg model.DialogueMessage) {
	s.dbOnce.Do(s.initDB)

	if s.initErr == nil && s.db != nil {
		_, err := s.db.Exec(`INSERT INTO messages
            (id, session_id, speaker, language, target_language, original_text, translated_text, confidence, created_at)
            VALUES (?,?,?,?,?,?,?,?,?);`,
			msg.ID, msg.SessionID, msg.Speaker, msg.Language, msg.TargetLanguage,
			msg.OriginalText, msg.TranslatedText, msg.Confidence, msg.Timestamp)
		if err == nil {
			return
		}
		logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
	}

	s.mu.Lock()
	s.memory = append(s.memory, msg)
	s.mu.Unlock()
}

// List returns all messages of a session in chronological order. When
// limit > 0 only the most recent limit messages are returned.
func (s *Store) List(sessionID string, limit int) []model.DialogueMessage {
	s.dbOnce.Do(s.initDB)

	var out []model.DialogueMessage
	if s.initErr == nil && s.db != nil {
		rows, err := s.db.Query(`SELECT id, session_id, speaker, language, target_language,
            original_text, translated_text, confidence, created_at
            FROM messages WHERE session_id = ? ORDER BY created_at ASC, id ASC;`, sessionID)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var m model.DialogueMessage
				var ts time.Time
				if err := rows.Scan(&m.ID, &m.SessionID, &m.Speaker, &m.Language, &m.TargetLanguage,
					&m.OriginalText, &m.TranslatedText, &m.Confidence, &ts); err == nil {
					m.Timestamp = ts
					out = append(out, m)
				}
			}
		}
	}

	// The memory slice holds whatever SQLite could not take.
	s.mu.Lock()
	for _, m := range s.memory {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	s.mu.Unlock()
	return tail(out, limit)
}

// Clear removes all messages of a session.
func (s *Store) Clear(sessionID string) {
	s.dbOnce.Do(s.initDB)

	if s.initErr == nil && s.db != nil {
		if _, err := s.db.Exec(`DELETE FROM messages WHERE session_id = ?;`, sessionID); err != nil {
			logger.L.Error("failed to clear session history", "error", err)
		}
	}

	s.mu.Lock()
	kept := s.memory[:0]
	for _, m := range s.memory {
		if m.SessionID != sessionID {
			kept = append(kept, m)
		}
	}
	s.memory = kept
	s.mu.Unlock()
}

// Stats counts messages per speaker for a session.
func (s *Store) Stats(sessionID string) map[string]int {
	stats := map[string]int{}
	for _, m := range s.List(sessionID, 0) {
		stats[m.Speaker]++
	}
	return stats
}

// Close releases the underlying database, if one was opened.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func tail(msgs []model.DialogueMessage, limit int) []model.DialogueMessage {
	if limit > 0 && len(msgs) > limit {
		return msgs[len(msgs)-limit:]
	}
	return msgs
}
