package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/auth"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/middleware"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// sessionTTL bounds how long an issued session token stays valid.
const sessionTTL = 24 * time.Hour

// PresenceTracker records login/logout activity outside the store. The redis
// implementation lives in internal/presence; handlers only see this contract.
type PresenceTracker interface {
	MarkActive(ctx context.Context, userID int64) error
	Clear(ctx context.Context, userID int64) error
}

// AuthHandler verifies credentials and drives the online/offline transitions.
// These endpoints are public — a session token is something login produces,
// not something it requires.
type AuthHandler struct {
	users     repository.UserRepository
	presence  PresenceTracker
	jwtSecret string
	logger    *zap.Logger
}

func NewAuthHandler(
	users repository.UserRepository,
	presence PresenceTracker,
	jwtSecret string,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		users:     users,
		presence:  presence,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type logoutRequest struct {
	ID int64 `json:"id" binding:"required"`
}

// Login handles POST /v1/auth/login
//
// On a match the user is marked online and last_seen is stamped before the
// response is written; the returned profile reflects the updated row. A
// session token rides along in the X-Session-Token header so the body stays
// exactly the profile shape.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password required"})
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		h.logger.Error("failed to look up user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	// Same 401 for "no such email" and "wrong password" — a 401 must not
	// tell the caller which emails are registered.
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	updated, err := h.users.SetOnline(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to mark user online", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if updated == nil {
		// Row vanished between lookup and update. Treat like a bad credential.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// Presence is best-effort: a redis hiccup must not fail a login the
	// store already recorded. The sweeper just won't see this activity mark.
	if h.presence != nil {
		if err := h.presence.MarkActive(c.Request.Context(), updated.ID); err != nil {
			h.logger.Warn("failed to mark presence", zap.Int64("user_id", updated.ID), zap.Error(err))
		}
	}

	token, err := auth.GenerateToken(updated.ID, updated.Email, h.jwtSecret, sessionTTL)
	if err != nil {
		h.logger.Error("failed to generate session token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.Header("X-Session-Token", token)

	c.JSON(http.StatusOK, updated.Profile())
}

// Logout handles POST /v1/auth/logout
//
// The inverse transition login never had: clears is_online and stamps
// last_seen. Logging out an unknown id is still a success, consistent with
// the directory's update semantics.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID required"})
		return
	}

	if err := h.users.SetOffline(c.Request.Context(), req.ID); err != nil {
		h.logger.Error("failed to mark user offline", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}

	if h.presence != nil {
		if err := h.presence.Clear(c.Request.Context(), req.ID); err != nil {
			h.logger.Warn("failed to clear presence", zap.Int64("user_id", req.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Session handles GET /v1/auth/session
//
// Runs behind the session middleware, so a request that reaches here carries
// a valid token. Returns the caller's current profile.
func (h *AuthHandler) Session(c *gin.Context) {
	userID := middleware.GetUserID(c)

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get session user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get session"})
		return
	}
	if user == nil {
		// Valid token for a deleted user. 404, not 500 — the token itself
		// checked out.
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, user.Profile())
}
