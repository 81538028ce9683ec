package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/livescript/livescript/internal/httputil"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const subjectKey contextKey = "subject"

const maxPasswordLength = 72

type Handler struct {
	jwtSecret    string
	passwordHash string
}

// NewHandler returns an auth handler. With an empty passwordHash the login
// route is disabled and operators need a token minted by the CLI.
func NewHandler(jwtSecret string, passwordHash string) *Handler {
	return &Handler{jwtSecret: jwtSecret, passwordHash: passwordHash}
}

type loginRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if h.passwordHash == "" {
		httputil.WriteError(w, http.StatusServiceUnavailable, "password login is not configured")
		return
	}

	var req loginRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		slog.Warn("auth: operator login rejected", "remote_addr", r.RemoteAddr)
		httputil.WriteError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	accessToken, err := GenerateAccessToken(h.jwtSecret, OperatorSubject, AccessTokenDuration)
	if err != nil {
		slog.Error("auth: failed to generate access token", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tokenResponse{AccessToken: accessToken})
}

func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := ValidateToken(h.jwtSecret, tokenStr)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if claims.TokenType != "access" {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token type")
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func SubjectFromContext(ctx context.Context) string {
	subject, _ := ctx.Value(subjectKey).(string)
	return subject
}

// HashPassword produces the value expected in OPERATOR_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is required")
	}
	if len(password) > maxPasswordLength {
		return "", fmt.Errorf("password must be at most %d bytes", maxPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
