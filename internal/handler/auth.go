package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/fuerzas/internal/handler/views"
	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/store"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
	csrfFieldName     = "csrf_token"

	// nextParam carries the review page an instructor asked for through login.
	nextParam = "next"

	// maxFormBytes bounds every POST body; grading files are a few kilobytes.
	maxFormBytes = 1 << 20
)

var (
	errCSRFMissing  = errors.New("csrf token missing")
	errCSRFMismatch = errors.New("invalid csrf token")
)

// csrfMiddleware implements the double-submit cookie pattern: unsafe requests
// must echo the csrf_token cookie in a form field, and every request that
// passes gets a fresh token for the page it renders.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
			if err := checkCSRF(r); err != nil {
				slog.Warn("rejected form", "path", r.URL.Path, "error", err)
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}
		}

		token, err := h.issueCSRFToken(w)
		if err != nil {
			slog.Error("failed to generate CSRF token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithCSRFToken(r.Context(), token)))
	})
}

func checkCSRF(r *http.Request) error {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return errCSRFMissing
	}
	// Parses the whole body, multipart uploads included.
	formToken := r.FormValue(csrfFieldName)
	if formToken == "" {
		return errCSRFMissing
	}
	if subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

func (h *Handler) issueCSRFToken(w http.ResponseWriter) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// currentInstructor resolves the login cookie to an active user, or nil.
func (h *Handler) currentInstructor(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	authSess, err := h.store.GetAuthSession(cookie.Value)
	if err != nil || authSess == nil {
		return nil, err
	}
	user, err := h.store.GetUserByID(authSess.UserID)
	if err != nil || user == nil || !user.Active {
		return nil, err
	}
	return user, nil
}

// requireAuth guards the review pages. Anonymous visitors are sent to the
// login form, which brings them back to the page they asked for.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.currentInstructor(r)
		if err != nil {
			slog.Error("failed to resolve instructor session", "error", err)
		}
		if user == nil {
			h.redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(model.ContextWithUser(r.Context(), user)))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

// redirectToLogin remembers the requested page for GET requests only; a
// form posted with an expired login cannot be replayed.
func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := h.path("/login")
	if r.Method == http.MethodGet {
		target += "?" + url.Values{nextParam: {r.URL.RequestURI()}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// reviewTarget returns where to go after login: next when it is a page of
// this server under the base path, the results list otherwise.
func (h *Handler) reviewTarget(next string) string {
	fallback := h.path("/results")
	if next == "" || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || !strings.HasPrefix(u.Path, h.path("/")) {
		return fallback
	}
	if u.Path == h.path("/login") {
		return fallback
	}
	return next
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get(nextParam)
	if user, _ := h.currentInstructor(r); user != nil {
		http.Redirect(w, r, h.reviewTarget(next), http.StatusSeeOther)
		return
	}
	render(w, r, http.StatusOK, views.LoginPage("", next))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	next := r.FormValue(nextParam)

	user, err := h.store.GetUserByUsername(username)
	switch {
	case err != nil:
		slog.Error("failed to get user", "error", err)
		h.renderLoginError(w, r, next)
		return
	case user == nil || !user.Active:
		slog.Warn("failed login", "username", username, "reason", "unknown or disabled")
		h.renderLoginError(w, r, next)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(r.FormValue("password"))); err != nil {
		slog.Warn("failed login", "username", username, "reason", "password")
		h.renderLoginError(w, r, next)
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.setLoginCookie(w, token, int(store.AuthSessionTTL.Seconds()))

	target := h.reviewTarget(next)
	slog.Info("instructor logged in", "username", user.Username, "role", user.Role, "target", target)
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.store.DeleteAuthSession(cookie.Value); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}
	h.setLoginCookie(w, "", -1)
	http.Redirect(w, r, h.path("/login"), http.StatusSeeOther)
}

// setLoginCookie writes the instructor session cookie; maxAge < 0 clears it.
func (h *Handler) setLoginCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, next string) {
	render(w, r, http.StatusUnauthorized, views.LoginPage(appI18n.T(r.Context(), "LoginError"), next))
}
