// Package authstore persists the client's credentials: the bearer token and
// the last-known user profile. Both live under fixed, distinct keys in a
// small SQLite database so that the presence or absence of each can be
// observed independently when the client restarts.
package authstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"tradesphere/internal/domain"
)

const (
	tokenKey = "token"
	userKey  = "user"
)

// Store is the durable two-key credential store. A valid session requires
// both a token and a user record; callers that find only one of the two
// should clear both via ClearAuth.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the credential database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening credential db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating credentials table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Token returns the stored bearer token, or "" when absent.
func (s *Store) Token() string {
	return s.get(tokenKey)
}

// SetToken stores the bearer token. An empty token is a no-op: a good token
// is never overwritten with nothing.
func (s *Store) SetToken(token string) error {
	if token == "" {
		return nil
	}
	return s.set(tokenKey, token)
}

// ClearToken removes the stored token.
func (s *Store) ClearToken() error {
	return s.del(tokenKey)
}

// User returns the stored user profile, or nil when absent. A record that
// fails to parse is treated as corrupt and reported as absent rather than
// surfaced as an error.
func (s *Store) User() *domain.UserProfile {
	raw := s.get(userKey)
	if raw == "" {
		return nil
	}
	var u domain.UserProfile
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil
	}
	return &u
}

// SetUser stores the user profile. A nil profile is a no-op.
func (s *Store) SetUser(u *domain.UserProfile) error {
	if u == nil {
		return nil
	}
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	return s.set(userKey, string(raw))
}

// ClearUser removes the stored user profile.
func (s *Store) ClearUser() error {
	return s.del(userKey)
}

// ClearAuth removes the token and the user in a single transaction, so no
// reader ever observes one cleared and the other remaining. Safe to call
// redundantly; clearing an already-empty store succeeds.
func (s *Store) ClearAuth() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting clear: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM credentials WHERE key IN (?, ?)`, tokenKey, userKey); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return tx.Commit()
}

func (s *Store) get(key string) string {
	var value string
	if err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value); err != nil {
		return ""
	}
	return value
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) del(key string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE key = ?`, key)
	return err
}
