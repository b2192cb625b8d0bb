package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/auth"
)

// authViewModel holds data for the login and signup pages.
type authViewModel struct {
	Error    string
	Username string
	Email    string
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	// Already logged in users land on the home page.
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, _, err := s.store.GetSessionUser(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
	}
	s.render(w, r, "login.html", authViewModel{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "login.html", authViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		s.render(w, r, "login.html", authViewModel{Error: "Username and password are required", Username: username})
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil || !auth.CheckPassword(password, user.PasswordHash) {
		s.render(w, r, "login.html", authViewModel{Error: "Invalid username or password", Username: username})
		return
	}

	if err := s.startSession(w, r, user.ID); err != nil {
		slog.ErrorContext(r.Context(), "Failed to start session", "error", err)
		s.render(w, r, "login.html", authViewModel{Error: "An error occurred. Please try again.", Username: username})
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup.html", authViewModel{})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "signup.html", authViewModel{Error: "Invalid form submission"})
		return
	}

	username := sanitizeInput(r.FormValue("username"))
	email := sanitizeInput(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("password_confirm")

	vm := authViewModel{Username: username, Email: email}

	switch {
	case username == "" || password == "":
		vm.Error = "Username and password are required"
	case len(password) < 8:
		vm.Error = "Password must be at least 8 characters"
	case password != confirm:
		vm.Error = "Passwords do not match"
	}
	if vm.Error != "" {
		s.render(w, r, "signup.html", vm)
		return
	}

	if _, err := s.store.GetUserByUsername(r.Context(), username); err == nil {
		vm.Error = "Username is already taken"
		s.render(w, r, "signup.html", vm)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to hash password", "error", err)
		vm.Error = "An error occurred. Please try again."
		s.render(w, r, "signup.html", vm)
		return
	}

	userID, err := s.store.CreateUser(r.Context(), username, email, hash)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create user", "error", err)
		vm.Error = "An error occurred. Please try again."
		s.render(w, r, "signup.html", vm)
		return
	}

	if err := s.startSession(w, r, userID); err != nil {
		// Account exists; fall back to a manual login.
		slog.ErrorContext(r.Context(), "Failed to start session after signup", "error", err)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.store.DeleteSession(r.Context(), cookie.Value); err != nil {
			slog.ErrorContext(r.Context(), "Failed to delete session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// startSession issues a fresh session token and cookie for the user.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	token, err := auth.GenerateSessionToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(s.sessionDuration)
	if err := s.store.CreateSession(r.Context(), token, userID, expiresAt); err != nil {
		return err
	}

	s.setSessionCookie(w, token)
	return nil
}
