package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/fuerzas/internal/model"
)

// SaveSession inserts or replaces the stored copy of a quiz session.
func (s *Store) SaveSession(sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	now := time.Now()
	created := sess.CreatedAt
	if created.IsZero() {
		created = now
	}
	_, err = s.db.Exec(
		`INSERT INTO quiz_sessions (id, state, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = ?, data = ?, updated_at = ?`,
		sess.ID, sess.State(), string(data), created, now,
		sess.State(), string(data), now,
	)
	return err
}

// GetSession returns the session with the given id, or nil if not found.
func (s *Store) GetSession(id string) (*model.Session, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM quiz_sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

// DeleteSession discards a session. Deleting a missing session is not an error.
func (s *Store) DeleteSession(id string) error {
	_, err := s.db.Exec(`DELETE FROM quiz_sessions WHERE id = ?`, id)
	return err
}

// CountSessionsByState returns how many stored sessions are in each state.
func (s *Store) CountSessionsByState() (map[model.State]int, error) {
	rows, err := s.db.Query(`SELECT state, COUNT(*) FROM quiz_sessions GROUP BY state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[model.State]int)
	for rows.Next() {
		var state model.State
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// CleanupStaleSessions removes sessions not touched since before cutoff.
// It returns the number of sessions removed.
func (s *Store) CleanupStaleSessions(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM quiz_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
