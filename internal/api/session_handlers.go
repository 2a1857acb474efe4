package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/technest/internal/api/middleware"
	"github.com/example/technest/internal/auth"
	"github.com/example/technest/internal/session"
)

const refreshCookiePath = "/session/refresh"

// SessionHandlers issues and refreshes storefront session tokens.
type SessionHandlers struct {
	jwtService *auth.JWTService
	registry   *session.Registry
}

func NewSessionHandlers(jwtService *auth.JWTService, registry *session.Registry) *SessionHandlers {
	return &SessionHandlers{
		jwtService: jwtService,
		registry:   registry,
	}
}

// CreateSessionRequest binds an optional backend identity to the session.
type CreateSessionRequest struct {
	BackendToken string `json:"backendToken"`
	UserID       string `json:"userId"`
}

// RefreshRequest is used by API clients that do not keep cookies.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionResponse carries the tokens for clients that do not use cookies.
type SessionResponse struct {
	SessionID        string    `json:"sessionId"`
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// CreateSession starts a new storefront session.
func (h *SessionHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decode(r, &req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.issue(w, r, uuid.New().String(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.BackendToken))
	if err != nil {
		respondJSONError(w, "Failed to issue session", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

// RefreshSession exchanges a refresh token for a new token pair on the same
// session.
func (h *SessionHandlers) RefreshSession(w http.ResponseWriter, r *http.Request) {
	token := ""
	if cookie, err := r.Cookie("refresh_token"); err == nil {
		token = cookie.Value
	} else {
		var req RefreshRequest
		if err := decode(r, &req); err != nil {
			respondJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		respondJSONError(w, "No refresh token", http.StatusUnauthorized)
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(token)
	if err != nil {
		clearSessionCookies(w)
		respondJSONError(w, "Invalid refresh token", http.StatusUnauthorized)
		return
	}

	resp, err := h.issue(w, r, claims.SessionID, claims.UserID, claims.BackendToken)
	if err != nil {
		respondJSONError(w, "Failed to issue session", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// EndSession forgets the session's storefront and clears the cookies.
func (h *SessionHandlers) EndSession(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.GetSessionID(r.Context()); sessionID != "" {
		h.registry.Remove(sessionID)
	}
	clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandlers) issue(w http.ResponseWriter, r *http.Request, sessionID, userID, backendToken string) (SessionResponse, error) {
	accessToken, accessExpiry, err := h.jwtService.GenerateAccessToken(sessionID, userID, backendToken)
	if err != nil {
		return SessionResponse{}, err
	}
	refreshToken, refreshExpiry, err := h.jwtService.GenerateRefreshToken(sessionID, userID, backendToken)
	if err != nil {
		return SessionResponse{}, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    accessToken,
		Path:     "/",
		Expires:  accessExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    refreshToken,
		Path:     refreshCookiePath,
		Expires:  refreshExpiry,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	return SessionResponse{
		SessionID:        sessionID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

func clearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
	})
}
