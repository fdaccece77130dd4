package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-blog/pkg/simpleblog"
)

// SessionsHandler handles signup, login and logout
type SessionsHandler struct {
	sessions *simpleblog.SessionGateway
	auth     *Auth
}

func NewSessionsHandler(sessions *simpleblog.SessionGateway, auth *Auth) *SessionsHandler {
	return &SessionsHandler{sessions: sessions, auth: auth}
}

// Routes returns the router for session endpoints
func (h *SessionsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Required)
		r.Get("/me", h.Me)
		r.Delete("/", h.Logout)
	})
	return r
}

// SessionResponse is returned by signup and login
type SessionResponse struct {
	Token   string              `json:"token"`
	Session *simpleblog.Session `json:"session"`
}

// Signup creates an account and signs it in
func (h *SessionsHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req simpleblog.SignupInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode signup request", "error", err)
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.sessions.CreateAccountAndSession(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, simpleblog.ErrInvalidAccount):
			renderError(w, r, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, simpleblog.ErrAccountExists):
			renderError(w, r, http.StatusConflict, "An account with this email already exists")
		default:
			slog.Error("Failed to create account", "error", err)
			renderError(w, r, http.StatusInternalServerError, "Failed to create account")
		}
		return
	}

	h.respondSession(w, r, http.StatusCreated, session)
}

// Login starts an email and password session
func (h *SessionsHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req simpleblog.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode login request", "error", err)
		renderError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, simpleblog.ErrInvalidCredentials) {
			renderError(w, r, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		slog.Error("Failed to create session", "error", err)
		renderError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}

	h.respondSession(w, r, http.StatusOK, session)
}

// Me returns the identity of the caller
func (h *SessionsHandler) Me(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, IdentityFromContext(r.Context()))
}

// Logout ends every session of the caller. It always succeeds.
func (h *SessionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), SessionIDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionsHandler) respondSession(w http.ResponseWriter, r *http.Request, status int, session *simpleblog.Session) {
	token, err := h.auth.IssueToken(session)
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		renderError(w, r, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	render.Status(r, status)
	render.JSON(w, r, SessionResponse{Token: token, Session: session})
}
