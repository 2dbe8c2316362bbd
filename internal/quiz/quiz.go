// Package quiz drives a session through registration, the five questions,
// grading and export.
//
// Every transition is a method that mutates the session it is given and
// returns the resulting state. Callers own the session: they may keep it in
// memory or persist it between requests.
package quiz

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/fuerzas/internal/codec"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/physics"
)

var (
	// ErrNameRequired rejects a registration without a student name.
	ErrNameRequired = errors.New("name required")
	// ErrKeyInvalid rejects a key that is not a finite number greater than zero.
	ErrKeyInvalid = errors.New("key must be a positive number")
	// ErrAlreadyStarted rejects a second registration.
	ErrAlreadyStarted = errors.New("quiz already started")
	// ErrNotStarted rejects answers before registration.
	ErrNotStarted = errors.New("quiz not started")
	// ErrFinished rejects answers after the last question.
	ErrFinished = errors.New("quiz already finished")
)

// Controller runs the state transitions.
type Controller struct {
	now func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used to stamp grading time.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller.
func New(opts ...Option) *Controller {
	c := &Controller{now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewSession returns a session at registration with every field at its default.
func NewSession(id string, now time.Time) *model.Session {
	return &model.Session{ID: id, CreatedAt: now}
}

// ParseKey validates the key typed at registration.
func ParseKey(input string) (float64, error) {
	key, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil || math.IsNaN(key) || math.IsInf(key, 0) || key <= 0 {
		return 0, ErrKeyInvalid
	}
	return key, nil
}

// Register starts the quiz. On a validation error the session is left
// untouched and registration may be retried.
func (c *Controller) Register(s *model.Session, name, keyInput string) (model.State, error) {
	if s.State() != model.StateRegistration {
		return s.State(), ErrAlreadyStarted
	}
	if strings.TrimSpace(name) == "" {
		return s.State(), ErrNameRequired
	}
	key, err := ParseKey(keyInput)
	if err != nil {
		return s.State(), err
	}

	s.StudentName = name
	s.Key = key
	s.Expected = physics.ComputeExpectedAnswers(key)
	s.Questions = physics.Questions(key)
	s.CurrentIndex = 0
	s.Answers = nil
	s.Started = true

	slog.Info("quiz started", "session_id", s.ID, "student", name, "key", key)
	return s.State(), nil
}

// Submit logs the answer to the current question and moves to the next one.
// The answer is not validated here. Answering the last question grades the
// session and produces the grading file.
func (c *Controller) Submit(s *model.Session, answer string) (model.State, error) {
	switch s.State() {
	case model.StateRegistration:
		return s.State(), ErrNotStarted
	case model.StateGrading:
		return c.Finish(s)
	case model.StateComplete:
		return s.State(), ErrFinished
	}

	s.Answers = append(s.Answers, model.Answer{
		QuestionIndex: s.CurrentIndex,
		RawInputs:     []string{answer},
	})
	s.CurrentIndex++

	if s.State() == model.StateGrading {
		return c.Finish(s)
	}
	return s.State(), nil
}

// Finish grades a session whose questions are all answered, encodes the
// grading file and freezes the session. Calling it on a complete session is
// a no-op.
func (c *Controller) Finish(s *model.Session) (model.State, error) {
	switch s.State() {
	case model.StateComplete:
		return s.State(), nil
	case model.StateRegistration:
		return s.State(), ErrNotStarted
	case model.StateInProgress:
		return s.State(), fmt.Errorf("finish with %d of %d answers: %w", len(s.Answers), len(s.Questions), ErrNotStarted)
	}

	report := Grade(s, c.now())
	exp, err := codec.Encode(report)
	if err != nil {
		return s.State(), fmt.Errorf("encode result: %w", err)
	}

	s.Report = &report
	s.ExportPayload = exp.Payload
	s.ExportFilename = exp.Filename
	s.ExportDigest = exp.Digest
	s.Finished = true

	slog.Info("quiz finished",
		"session_id", s.ID,
		"student", s.StudentName,
		"score", report.Score,
		"gradable", report.Gradable,
		"digest", exp.Digest,
	)
	return s.State(), nil
}
