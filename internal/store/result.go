package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/pavelanni/fuerzas/internal/model"
)

const resultColumns = `id, session_id, student_name, quiz_key, score, total, gradable, digest, filename, payload, issued_at`

// InsertResult records a grading file handed out for a session. A session
// issues at most one result; inserting it again keeps the first record.
func (s *Store) InsertResult(r model.IssuedResult) (int64, error) {
	if r.IssuedAt.IsZero() {
		r.IssuedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO results (session_id, student_name, quiz_key, score, total, gradable, digest, filename, payload, issued_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO NOTHING`,
		r.SessionID, r.StudentName, r.Key, r.Score, r.Total, r.Gradable, r.Digest, r.Filename, r.Payload, r.IssuedAt,
	)
	if err != nil {
		slog.Error("failed to record result", "session_id", r.SessionID, "error", err)
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var id int64
		err := s.db.QueryRow(`SELECT id FROM results WHERE session_id = ?`, r.SessionID).Scan(&id)
		return id, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("recorded result", "id", id, "session_id", r.SessionID, "score", r.Score, "digest", r.Digest)
	return id, nil
}

// ListResults returns all issued results, newest first.
func (s *Store) ListResults() ([]model.IssuedResult, error) {
	rows, err := s.db.Query(`SELECT ` + resultColumns + ` FROM results ORDER BY issued_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.IssuedResult
	for rows.Next() {
		var r model.IssuedResult
		if err := rows.Scan(&r.ID, &r.SessionID, &r.StudentName, &r.Key, &r.Score, &r.Total, &r.Gradable,
			&r.Digest, &r.Filename, &r.Payload, &r.IssuedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetResultByDigest returns the issued result carrying digest, or nil if
// this server never issued it.
func (s *Store) GetResultByDigest(digest string) (*model.IssuedResult, error) {
	var r model.IssuedResult
	err := s.db.QueryRow(
		`SELECT `+resultColumns+` FROM results WHERE digest = ? ORDER BY id LIMIT 1`, digest,
	).Scan(&r.ID, &r.SessionID, &r.StudentName, &r.Key, &r.Score, &r.Total, &r.Gradable,
		&r.Digest, &r.Filename, &r.Payload, &r.IssuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ResultCount returns the number of issued results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}
