package controllers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/core"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/engine"
	"github.com/docuflow/docuflow/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type AuthController struct {
	UserRepo engine.UserRepo
}

func NewAuthController(userRepo engine.UserRepo) *AuthController {
	return &AuthController{UserRepo: userRepo}
}

func (c *AuthController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", c.handleLogin)
	mux.HandleFunc("POST /api/logout", c.handleLogout)
}

// RequireAuth authenticates the request via session cookie or X-API-Key and
// puts the acting user into the request context.
func (wc *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 1) Try session cookie
		if c, err := r.Cookie("sessionId"); err == nil && c.Value != "" {
			u, err := wc.UserRepo.FindBySessionID(c.Value, time.Now().UTC())
			if err == nil && u != nil {
				next(w, withUser(r, u))
				return
			}
		}
		// 2) Try API key from headers
		// Supported headers: X-API-Key: <key>
		apiKey := r.Header.Get("X-API-Key")
		if apiKey != "" {
			u, err := wc.UserRepo.FindByApiKey(apiKey)
			if err == nil && u != nil {
				next(w, withUser(r, u))
				return
			}
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
}

// withUser attaches the authenticated user to the request context so
// handlers can read the acting identity.
func withUser(r *http.Request, u *domain.User) *http.Request {
	ctx := context.WithValue(r.Context(), core.CtxKeyUser, u)
	ctx = context.WithValue(ctx, core.CtxKeyUsername, u.Username)
	return r.WithContext(ctx)
}

func (wc *AuthController) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	u, err := wc.UserRepo.FindByUsername(req.Username)
	if err != nil {
		slog.Error("FindByUsername failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	if u == nil {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}
	// Compare bcrypt hashed password
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	// Generate session id
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("rand.Read failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	sessionID := hex.EncodeToString(buf)
	expiryHours := config.GetSystemSettingInteger(config.WEB_SESSION_EXPIRY_HOURS)
	expires := time.Now().Add(time.Duration(expiryHours) * time.Hour)
	if err := wc.UserRepo.UpdateSession(u.ID, sessionID, expires); err != nil {
		slog.Error("UpdateSession failed", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "sessionId",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (wc *AuthController) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("sessionId")
	if err == nil && c.Value != "" {
		// Best-effort clear in DB
		if err := wc.UserRepo.ClearSessionBySessionID(c.Value); err != nil {
			slog.Warn("Failed to clear session in DB during logout", "error", err)
		}
		http.SetCookie(w, &http.Cookie{
			Name:     "sessionId",
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   false,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}
