package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/astelwilliam/expense-tracker/internal/core"
	applog "github.com/astelwilliam/expense-tracker/internal/log"
)

type contextKey string

const (
	userContextKey      contextKey = "user"
	requestIDContextKey contextKey = "request_id"

	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
)

// userFrom retrieves the authenticated user from the request context.
func userFrom(r *http.Request) *core.User {
	if user, ok := r.Context().Value(userContextKey).(*core.User); ok {
		return user
	}
	return nil
}

// withSecurity adds security headers, rate limiting, and request logging.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r, s.metrics)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		r = r.WithContext(ctx)

		logger := applog.FromContext(ctx)
		logger.InfoContext(ctx, "Request started",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, clientIP,
			applog.FieldUserAgent, r.Header.Get("User-Agent"))

		if class, limited := limitClassFor(r); limited {
			if ok, retryAfter := s.rateLimiter.allow(clientIP, class, s.metrics); !ok {
				logger.WarnContext(ctx, "Rate limit exceeded",
					applog.FieldClientIP, clientIP,
					applog.FieldMethod, r.Method,
					applog.FieldPath, r.URL.Path)
				secs := int(retryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				msg := "Too many requests, please slow down."
				ErrorResponse(http.StatusTooManyRequests, msg).
					Header("Retry-After", strconv.Itoa(secs)).
					TriggerErrorNotification(msg).
					Write(w)
				return
			}
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logger.InfoContext(ctx, "Request completed",
			applog.FieldRequestID, requestID,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldStatusCode, rw.statusCode,
			applog.FieldDuration, duration.Milliseconds(),
			applog.FieldClientIP, clientIP)
	}
}

// requireAuth resolves the session cookie into a user and rejects
// anonymous requests. Sessions past the halfway point of their lifetime
// are renewed, so active users stay logged in while idle sessions
// still expire.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		user, expiresAt, err := s.store.GetSessionUser(r.Context(), cookie.Value)
		if err != nil {
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		if time.Until(expiresAt) < s.sessionDuration/2 {
			newExpiresAt := time.Now().Add(s.sessionDuration)
			if err := s.store.RenewSession(r.Context(), cookie.Value, newExpiresAt); err == nil {
				s.setSessionCookie(w, cookie.Value)
			}
			// A failed renewal just leaves the current expiry in place.
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
