package handler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/fuerzas/internal/llm"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/quiz"
	"github.com/pavelanni/fuerzas/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	quiz   *quiz.Controller
	llm    *llm.Client // nil disables review feedback
	config model.QuizConfig
}

// New creates a new Handler. l may be nil.
func New(s *store.Store, q *quiz.Controller, l *llm.Client, cfg model.QuizConfig) *Handler {
	return &Handler{store: s, quiz: q, llm: l, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Get("/", h.handleIndex)
	r.Post("/register", h.handleRegister)
	r.Post("/answer", h.handleAnswer)
	r.Get("/download", h.handleDownload)
	r.Post("/restart", h.handleRestart)
	if h.config.ImagesDir != "" {
		r.Handle("/assets/*", http.StripPrefix(h.path("/assets/"), http.FileServer(http.Dir(h.config.ImagesDir))))
	}

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/results", h.handleResults)
		r.Get("/verify", h.handleVerifyPage)
		r.Post("/verify", h.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/admin/users", h.handleAdminUsersPage)
			r.Post("/admin/users", h.handleCreateUser)
			r.Post("/admin/users/{userID}/active", h.handleSetUserActive)
		})
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// render writes c with the given status. The component is rendered into a
// buffer first so a render error can still become a 500.
func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		slog.Error("render error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
