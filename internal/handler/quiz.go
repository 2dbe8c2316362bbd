package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pavelanni/fuerzas/internal/codec"
	"github.com/pavelanni/fuerzas/internal/handler/views"
	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/physics"
	"github.com/pavelanni/fuerzas/internal/quiz"
	"github.com/pavelanni/fuerzas/internal/telemetry"
)

const quizCookieName = "quiz_session"

// loadSession returns the session named by the quiz cookie, or a fresh one
// with a new cookie. A fresh session is not stored until it registers.
func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*model.Session, error) {
	if c, err := r.Cookie(quizCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			s, err := h.store.GetSession(c.Value)
			if err != nil {
				return nil, fmt.Errorf("load session: %w", err)
			}
			if s != nil {
				return s, nil
			}
		}
	}

	s := quiz.NewSession(uuid.NewString(), time.Now())
	http.SetCookie(w, &http.Cookie{
		Name:     quizCookieName,
		Value:    s.ID,
		Path:     h.cookiePath(),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

func startSpan(ctx context.Context, name string, s *model.Session) (context.Context, trace.Span) {
	ctx, span := telemetry.Tracer().Start(ctx, name)
	span.SetAttributes(
		attribute.String("quiz.session_id", s.ID),
		attribute.String("quiz.state", string(s.State())),
	)
	return ctx, span
}

func endSpan(span trace.Span, s *model.Session, err error) {
	span.SetAttributes(attribute.String("quiz.next_state", string(s.State())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	s, err := h.loadSession(w, r)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if s.State() == model.StateGrading {
		// A previous finish failed after the last answer was stored; retry it.
		if err := h.finish(r.Context(), s); err != nil {
			slog.Error("failed to finish session", "session_id", s.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}
	h.renderState(w, r, http.StatusOK, s, "")
}

// renderState renders the page for the session's current state. errMsg is
// shown inline on the registration and question pages.
func (h *Handler) renderState(w http.ResponseWriter, r *http.Request, status int, s *model.Session, errMsg string) {
	switch s.State() {
	case model.StateInProgress:
		render(w, r, status, views.QuestionPage(h.questionView(r.Context(), s, errMsg)))
	case model.StateComplete:
		render(w, r, status, views.CompletePage(views.CompleteView{
			Name:      s.StudentName,
			Filename:  s.ExportFilename,
			Available: s.ExportPayload != "" && s.ExportFilename != "",
		}))
	default:
		render(w, r, status, views.RegistrationPage(views.RegistrationView{Error: errMsg}))
	}
}

func (h *Handler) questionView(ctx context.Context, s *model.Session, errMsg string) views.QuestionView {
	q := s.CurrentQuestion()
	v := views.QuestionView{
		Name:  s.StudentName,
		Key:   physics.FormatKey(s.Key),
		Index: q.Index,
		Total: len(s.Questions),
		Text:  q.Text,
		Error: errMsg,
	}
	src, unresolved := h.imageSource(q.Image)
	v.Image = src
	if unresolved != "" {
		v.Warning = appI18n.Td(ctx, "ImageLocalWarning", map[string]any{"N": q.Index + 1, "Path": unresolved})
	}
	return v
}

// imageSource resolves an image reference to a URL. A local reference that
// cannot be served is returned as unresolved.
func (h *Handler) imageSource(image string) (src, unresolved string) {
	ref := physics.ImageRef(image)
	switch {
	case ref == "":
		return "", ""
	case !ref.Local():
		return string(ref), ""
	case h.config.ImageBaseURL != "":
		return strings.TrimRight(h.config.ImageBaseURL, "/") + "/" + strings.TrimLeft(string(ref), "/"), ""
	case h.config.ImagesDir != "":
		if _, err := os.Stat(filepath.Join(h.config.ImagesDir, filepath.FromSlash(string(ref)))); err == nil {
			return h.path("/assets/" + string(ref)), ""
		}
	}
	return "", string(ref)
}

// UnresolvedImages lists the question images that cannot be served with the
// current configuration.
func (h *Handler) UnresolvedImages() []string {
	var out []string
	for i := 0; i < physics.NumQuestions; i++ {
		if _, unresolved := h.imageSource(string(physics.Images[i])); unresolved != "" {
			out = append(out, unresolved)
		}
	}
	return out
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	s, err := h.loadSession(w, r)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	name := r.FormValue("name")
	key := r.FormValue("key")

	_, span := startSpan(r.Context(), "quiz.register", s)
	_, err = h.quiz.Register(s, name, key)
	endSpan(span, s, err)

	switch {
	case errors.Is(err, quiz.ErrNameRequired), errors.Is(err, quiz.ErrKeyInvalid):
		render(w, r, http.StatusUnprocessableEntity, views.RegistrationPage(views.RegistrationView{
			Name:  name,
			Key:   key,
			Error: appI18n.T(r.Context(), errorMessageID(err)),
		}))
		return
	case errors.Is(err, quiz.ErrAlreadyStarted):
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	case err != nil:
		slog.Error("failed to register", "session_id", s.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.store.SaveSession(s); err != nil {
		slog.Error("failed to save session", "session_id", s.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	s, err := h.loadSession(w, r)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// A resubmitted form for a question already answered is ignored.
	if q, err := strconv.Atoi(r.FormValue("question")); err == nil && q != s.CurrentIndex {
		slog.Debug("ignoring stale answer", "session_id", s.ID, "question", q, "current", s.CurrentIndex)
		http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
		return
	}

	ctx, span := startSpan(r.Context(), "quiz.submit", s)
	state, err := h.quiz.Submit(s, r.FormValue("answer"))
	endSpan(span, s, err)

	switch {
	case errors.Is(err, quiz.ErrNotStarted), errors.Is(err, quiz.ErrFinished):
		h.renderState(w, r, http.StatusUnprocessableEntity, s, appI18n.T(r.Context(), errorMessageID(err)))
		return
	case err != nil:
		slog.Error("failed to submit answer", "session_id", s.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if state == model.StateComplete {
		h.recordResult(ctx, s)
	}
	if err := h.store.SaveSession(s); err != nil {
		slog.Error("failed to save session", "session_id", s.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// finish completes a session stuck in grading and stores it.
func (h *Handler) finish(ctx context.Context, s *model.Session) error {
	ctx, span := startSpan(ctx, "quiz.finish", s)
	_, err := h.quiz.Finish(s)
	endSpan(span, s, err)
	if err != nil {
		return err
	}
	h.recordResult(ctx, s)
	return h.store.SaveSession(s)
}

// recordResult keeps a copy of the issued grading file. Failing to record it
// does not keep the student from downloading the file.
func (h *Handler) recordResult(ctx context.Context, s *model.Session) {
	if s.Report == nil {
		return
	}
	_, span := telemetry.Tracer().Start(ctx, "store.insert_result")
	defer span.End()
	_, err := h.store.InsertResult(model.IssuedResult{
		SessionID:   s.ID,
		StudentName: s.StudentName,
		Key:         s.Key,
		Score:       s.Report.Score,
		Total:       s.Report.Total,
		Gradable:    s.Report.Gradable,
		Digest:      s.ExportDigest,
		Filename:    s.ExportFilename,
		Payload:     s.ExportPayload,
		IssuedAt:    time.Now(),
	})
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to record issued result", "session_id", s.ID, "error", err)
	}
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	s, err := h.loadSession(w, r)
	if err != nil {
		slog.Error("failed to load session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if s.State() != model.StateComplete || s.ExportPayload == "" {
		http.NotFound(w, r)
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": s.ExportFilename})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", codec.MIMEType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(len(s.ExportPayload)))
	_, _ = w.Write([]byte(s.ExportPayload))
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(quizCookieName); err == nil && c.Value != "" {
		if err := h.store.DeleteSession(c.Value); err != nil {
			slog.Error("failed to delete session", "session_id", c.Value, "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     quizCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// errorMessageID maps a controller error to its translation ID.
func errorMessageID(err error) string {
	switch {
	case errors.Is(err, quiz.ErrNameRequired):
		return "ErrNameRequired"
	case errors.Is(err, quiz.ErrKeyInvalid):
		return "ErrKeyInvalid"
	case errors.Is(err, quiz.ErrAlreadyStarted):
		return "ErrAlreadyStarted"
	case errors.Is(err, quiz.ErrFinished):
		return "ErrFinished"
	default:
		return "ErrNotStarted"
	}
}
