package store

import (
	"testing"
	"time"

	"github.com/pavelanni/fuerzas/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fp(v float64) *float64 { return &v }

func startedSession(id string) *model.Session {
	return &model.Session{
		ID:          id,
		StudentName: "Ana María",
		Key:         10,
		Questions: []model.Question{
			{Index: 0, Text: "uno", Image: "images2/1.jpg"},
			{Index: 1, Text: "dos"},
		},
		CurrentIndex: 1,
		Answers:      []model.Answer{{QuestionIndex: 0, RawInputs: []string{" 1.5 "}}},
		Expected:     model.ExpectedAnswers{1: fp(1.5), 2: nil},
		Started:      true,
		CreatedAt:    time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)

	// Missing session.
	got, err := s.GetSession("missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing session, got %+v", got)
	}

	want := startedSession("abc")
	if err := s.SaveSession(want); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err = s.GetSession("abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("expected session, got nil")
	}
	if got.StudentName != "Ana María" || got.Key != 10 || got.CurrentIndex != 1 {
		t.Errorf("unexpected session header: %+v", got)
	}
	if got.State() != model.StateInProgress {
		t.Errorf("expected in_progress, got %q", got.State())
	}
	if len(got.Answers) != 1 || got.Answers[0].RawInputs[0] != " 1.5 " {
		t.Errorf("raw input not preserved: %+v", got.Answers)
	}
	if got.Expected[1] == nil || *got.Expected[1] != 1.5 {
		t.Errorf("expected answer 1 = 1.5, got %v", got.Expected[1])
	}
	if v, ok := got.Expected[2]; !ok || v != nil {
		t.Errorf("expected answer 2 to be present and nil, got %v (present %v)", v, ok)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("expected created_at %v, got %v", want.CreatedAt, got.CreatedAt)
	}
}

func TestSaveSessionOverwrites(t *testing.T) {
	s := newTestStore(t)

	sess := startedSession("abc")
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	sess.Answers = append(sess.Answers, model.Answer{QuestionIndex: 1, RawInputs: []string{"abc"}})
	sess.CurrentIndex = 2
	sess.Finished = true
	sess.ExportPayload = "eyJ9"
	sess.ExportFilename = "calificacion_Ana_María_10.0.dat"
	if err := s.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession (update): %v", err)
	}

	got, err := s.GetSession("abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.State() != model.StateComplete {
		t.Errorf("expected complete, got %q", got.State())
	}
	if len(got.Answers) != 2 || got.ExportFilename != sess.ExportFilename {
		t.Errorf("update not stored: %+v", got)
	}

	counts, err := s.CountSessionsByState()
	if err != nil {
		t.Fatalf("CountSessionsByState: %v", err)
	}
	if counts[model.StateComplete] != 1 || len(counts) != 1 {
		t.Errorf("expected one complete session, got %v", counts)
	}
}

func TestDeleteSession(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveSession(startedSession("abc")); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if err := s.DeleteSession("abc"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	got, err := s.GetSession("abc")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Errorf("expected session to be gone, got %+v", got)
	}

	// Deleting again is fine.
	if err := s.DeleteSession("abc"); err != nil {
		t.Errorf("DeleteSession (missing): %v", err)
	}
}

func TestCleanupStaleSessions(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"a", "b"} {
		if err := s.SaveSession(startedSession(id)); err != nil {
			t.Fatalf("SaveSession: %v", err)
		}
	}

	n, err := s.CleanupStaleSessions(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CleanupStaleSessions: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing removed, got %d", n)
	}

	n, err = s.CleanupStaleSessions(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CleanupStaleSessions: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
}

func testResult(sessionID, digest string, issued time.Time) model.IssuedResult {
	return model.IssuedResult{
		SessionID:   sessionID,
		StudentName: "José Pérez",
		Key:         10,
		Score:       3,
		Total:       5,
		Gradable:    5,
		Digest:      digest,
		Filename:    "calificacion_José_Pérez_10.0.dat",
		Payload:     "eyJ9",
		IssuedAt:    issued,
	}
}

func TestResults(t *testing.T) {
	s := newTestStore(t)

	count, err := s.ResultCount()
	if err != nil {
		t.Fatalf("ResultCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 results, got %d", count)
	}

	t0 := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	id1, err := s.InsertResult(testResult("s1", "d1", t0))
	if err != nil {
		t.Fatalf("InsertResult: %v", err)
	}
	id2, err := s.InsertResult(testResult("s2", "d2", t0.Add(time.Minute)))
	if err != nil {
		t.Fatalf("InsertResult: %v", err)
	}

	// Same session again keeps the first record.
	dup, err := s.InsertResult(testResult("s1", "other", t0.Add(time.Hour)))
	if err != nil {
		t.Fatalf("InsertResult (duplicate): %v", err)
	}
	if dup != id1 {
		t.Errorf("expected duplicate to return id %d, got %d", id1, dup)
	}

	list, err := s.ListResults()
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 results, got %d", len(list))
	}
	if list[0].ID != id2 || list[1].ID != id1 {
		t.Errorf("expected newest first, got ids %d, %d", list[0].ID, list[1].ID)
	}
	if list[1].Digest != "d1" {
		t.Errorf("expected first digest kept, got %q", list[1].Digest)
	}

	r, err := s.GetResultByDigest("d2")
	if err != nil {
		t.Fatalf("GetResultByDigest: %v", err)
	}
	if r == nil || r.SessionID != "s2" || r.StudentName != "José Pérez" {
		t.Errorf("unexpected result: %+v", r)
	}

	r, err = s.GetResultByDigest("nope")
	if err != nil {
		t.Fatalf("GetResultByDigest (missing): %v", err)
	}
	if r != nil {
		t.Errorf("expected nil, got %+v", r)
	}
}

func TestExportResults(t *testing.T) {
	s := newTestStore(t)

	exp, err := s.ExportResults(false)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if exp.NumResults != 0 || exp.Results == nil {
		t.Errorf("expected empty, non-nil results, got %+v", exp)
	}

	if err := s.SetMetadata(MetaCourse, "Física I"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if _, err := s.InsertResult(testResult("s1", "d1", time.Now())); err != nil {
		t.Fatalf("InsertResult: %v", err)
	}

	exp, err = s.ExportResults(false)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if exp.Course != "Física I" || exp.NumResults != 1 {
		t.Errorf("unexpected export: %+v", exp)
	}
	if exp.Results[0].Payload != "" {
		t.Errorf("expected payload to be omitted, got %q", exp.Results[0].Payload)
	}

	exp, err = s.ExportResults(true)
	if err != nil {
		t.Fatalf("ExportResults: %v", err)
	}
	if exp.Results[0].Payload != "eyJ9" {
		t.Errorf("expected payload, got %q", exp.Results[0].Payload)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata(MetaCourse)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value, got %q", v)
	}

	for _, want := range []string{"Física I", "Física II"} {
		if err := s.SetMetadata(MetaCourse, want); err != nil {
			t.Fatalf("SetMetadata: %v", err)
		}
		v, err = s.GetMetadata(MetaCourse)
		if err != nil {
			t.Fatalf("GetMetadata: %v", err)
		}
		if v != want {
			t.Errorf("expected %q, got %q", want, v)
		}
	}
}

func TestUsersAndAuthSessions(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(model.User{
		Username:     "profe",
		DisplayName:  "Profesora",
		PasswordHash: "hash",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUserByUsername("profe")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id || u.Role != model.UserRoleInstructor || !u.Active {
		t.Fatalf("unexpected user: %+v", u)
	}

	missing, err := s.GetUserByID(9999)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil user, got %+v", missing)
	}

	if _, err := s.CreateUser(model.User{Username: "profe", PasswordHash: "x"}); err == nil {
		t.Error("expected duplicate username to fail")
	}

	token, err := s.CreateAuthSession(id)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}
	as, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if as == nil || as.UserID != id {
		t.Fatalf("unexpected auth session: %+v", as)
	}

	// Disabling the user ends the session.
	if err := s.SetUserActive(id, false); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}
	as, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if as != nil {
		t.Errorf("expected session to be gone, got %+v", as)
	}

	users, err := s.ListUsers()
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 || users[0].Active {
		t.Errorf("unexpected users: %+v", users)
	}
	n, err := s.UserCount()
	if err != nil {
		t.Fatalf("UserCount: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}

func TestExpiredAuthSession(t *testing.T) {
	s := newTestStore(t)

	id, err := s.CreateUser(model.User{Username: "profe", PasswordHash: "hash", Active: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	past := time.Now().Add(-time.Hour)
	if _, err := s.db.Exec(
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		"old", id, past.Add(-AuthSessionTTL), past,
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	as, err := s.GetAuthSession("old")
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if as != nil {
		t.Errorf("expected expired session to be rejected, got %+v", as)
	}
	if err := s.CleanupExpiredAuthSessions(); err != nil {
		t.Fatalf("CleanupExpiredAuthSessions: %v", err)
	}
}
