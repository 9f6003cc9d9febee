package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"stemboard/core/auth"
	"stemboard/logger"
	"stemboard/model"
	"stemboard/repository"
)

type contextKey string

const userIDKey contextKey = "userID"

// credentials is the body of register and login requests.
type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

const minPasswordLength = 8

// RegisterHandler creates an account and signs it in.
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeMessage(w, http.StatusBadRequest, "A valid email is required")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeMessage(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] failed to hash password", logger.ErrorField(err))
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user := &model.User{Email: req.Email, PasswordHash: hash}
	userID, err := h.users.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			logger.Warn("[Register] email already registered", logger.String("email", req.Email))
			writeMessage(w, http.StatusConflict, "Email already registered")
			return
		}
		logger.Error("[Register] failed to create user", logger.ErrorField(err))
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	user.ID = userID

	h.respondWithToken(w, user)
}

// LoginHandler exchanges email and password for a session token.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		logger.Error("[Login] failed to look up user", logger.ErrorField(err))
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("[Login] invalid credentials", logger.String("email", req.Email))
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	logger.Info("[Login] signed in", logger.User(user.ID))
	h.respondWithToken(w, user)
}

func (h *APIHandler) respondWithToken(w http.ResponseWriter, user *model.User) {
	token, err := h.tokens.Generate(user.ID, user.Email)
	if err != nil {
		logger.Error("failed to generate token", logger.ErrorField(err))
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

// AuthMiddleware rejects requests without a valid bearer token and puts the
// user id in the request context.
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeMessage(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeMessage(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := h.tokens.Parse(parts[1])
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// GetUserIDFromContext returns the id set by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}
