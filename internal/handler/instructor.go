package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/fuerzas/internal/codec"
	"github.com/pavelanni/fuerzas/internal/handler/views"
	appI18n "github.com/pavelanni/fuerzas/internal/i18n"
	"github.com/pavelanni/fuerzas/internal/model"
	"github.com/pavelanni/fuerzas/internal/telemetry"
)

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.store.ListResults()
	if err != nil {
		slog.Error("failed to list results", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render(w, r, http.StatusOK, views.ResultsPage(results))
}

func (h *Handler) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.VerifyPage(nil))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	ctx, span := telemetry.Tracer().Start(r.Context(), "codec.verify")
	ver, err := codec.Decode(string(data))
	span.End()

	v := &views.VerifyView{Filename: header.Filename}
	switch {
	case errors.Is(err, codec.ErrMalformed):
		slog.Info("uploaded file is not a grading file", "filename", header.Filename, "error", err)
		v.Malformed = true
		render(w, r, http.StatusUnprocessableEntity, views.VerifyPage(v))
		return
	case err != nil:
		slog.Error("failed to verify file", "filename", header.Filename, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	v.Verification = ver

	issued, err := h.store.GetResultByDigest(ver.StoredDigest)
	if err != nil {
		slog.Error("failed to look up issued result", "error", err)
	}
	v.Issued = issued

	if h.llm != nil && ver.Valid && r.FormValue("feedback") != "" {
		v.Hints = h.llm.ReportFeedback(ctx, ver.Report, appI18n.Lang(r.Context()))
	}

	slog.Info("verified grading file",
		"filename", header.Filename,
		"student", ver.Report.StudentName,
		"valid", ver.Valid,
		"issued_here", issued != nil,
	)
	render(w, r, http.StatusOK, views.VerifyPage(v))
}

func (h *Handler) handleAdminUsersPage(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, "")
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	users, err := h.store.ListUsers()
	if err != nil {
		slog.Error("failed to list users", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	render(w, r, status, views.AdminUsersPage(users, errMsg))
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	displayName := strings.TrimSpace(r.FormValue("display_name"))
	password := r.FormValue("password")
	role := model.UserRole(r.FormValue("role"))

	if username == "" || password == "" {
		h.renderUsers(w, r, http.StatusUnprocessableEntity, "username and password required")
		return
	}
	if role != model.UserRoleAdmin {
		role = model.UserRoleInstructor
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	_, err = h.store.CreateUser(model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Active:       true,
	})
	if err != nil {
		h.renderUsers(w, r, http.StatusUnprocessableEntity, "failed to create user: "+err.Error())
		return
	}

	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}

func (h *Handler) handleSetUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user ID", http.StatusBadRequest)
		return
	}
	active := r.FormValue("active") == "1"

	if u := model.UserFromContext(r.Context()); u != nil && u.ID == id && !active {
		h.renderUsers(w, r, http.StatusUnprocessableEntity, "cannot disable your own account")
		return
	}

	if err := h.store.SetUserActive(id, active); err != nil {
		slog.Error("failed to update user", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	slog.Info("updated user", "id", id, "active", active)
	http.Redirect(w, r, h.path("/admin/users"), http.StatusSeeOther)
}
