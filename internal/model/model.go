package model

import (
	"context"
	"time"
)

// UserRole represents an instructor account's access level.
type UserRole string

const (
	// UserRoleInstructor can review and verify issued results.
	UserRoleInstructor UserRole = "instructor"
	// UserRoleAdmin can additionally manage instructor accounts.
	UserRoleAdmin UserRole = "admin"
)

// User represents an instructor account. Students never log in.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an instructor authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// State is the position of a quiz session in its flow.
type State string

const (
	StateRegistration State = "registration"
	StateInProgress   State = "in_progress"
	StateGrading      State = "grading"
	StateComplete     State = "complete"
)

// Question is one personalized problem shown to the student.
type Question struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Answer is one entry of the append-only answer log. Inputs are kept exactly
// as typed; they are only parsed at grading time.
type Answer struct {
	QuestionIndex int      `json:"question_index"`
	RawInputs     []string `json:"raw_inputs"`
}

// ExpectedAnswers maps question number (1..5) to the expected value.
// A nil entry means the question cannot be graded.
type ExpectedAnswers map[int]*float64

// Session holds all state of one student's attempt.
type Session struct {
	ID             string          `json:"id"`
	StudentName    string          `json:"student_name"`
	Key            float64         `json:"key"`
	Questions      []Question      `json:"questions"`
	CurrentIndex   int             `json:"current_index"`
	Answers        []Answer        `json:"answers"`
	Expected       ExpectedAnswers `json:"expected"`
	Started        bool            `json:"started"`
	Finished       bool            `json:"finished"`
	Report         *GradeReport    `json:"report,omitempty"`
	ExportPayload  string          `json:"export_payload,omitempty"`
	ExportFilename string          `json:"export_filename,omitempty"`
	ExportDigest   string          `json:"export_digest,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// State derives the flow position from the session flags.
func (s *Session) State() State {
	switch {
	case s.Finished:
		return StateComplete
	case !s.Started:
		return StateRegistration
	case s.CurrentIndex >= len(s.Questions):
		return StateGrading
	default:
		return StateInProgress
	}
}

// CurrentQuestion returns the question awaiting an answer, or nil outside InProgress.
func (s *Session) CurrentQuestion() *Question {
	if s.State() != StateInProgress {
		return nil
	}
	return &s.Questions[s.CurrentIndex]
}

// GradedAnswer is the grading outcome of a single logged answer.
type GradedAnswer struct {
	Question string   `json:"question"`
	Entered  string   `json:"entered"`
	Parsed   *float64 `json:"parsed,omitempty"`
	Expected *float64 `json:"expected"`
	Correct  bool     `json:"correct"`
}

// GradeReport is the frozen result of a finished session.
type GradeReport struct {
	StudentName string         `json:"student_name"`
	Key         float64        `json:"key"`
	Score       int            `json:"score"`
	Total       int            `json:"total"`
	Gradable    int            `json:"gradable"`
	Timestamp   string         `json:"timestamp"`
	Details     []GradedAnswer `json:"details"`
}

// QuizConfig holds runtime parameters set via CLI flags.
type QuizConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/fisica")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	ImagesDir     string // Local directory holding question images; empty disables /assets
	ImageBaseURL  string // Public URL prefix replacing local image paths
	FeedbackTone  string // LLM feedback prompt variant (brief, standard, detailed)
}
