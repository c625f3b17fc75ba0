package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserHandler is the staff directory: list, create, rename, delete.
type UserHandler struct {
	users  repository.UserRepository
	logger *zap.Logger
}

func NewUserHandler(users repository.UserRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

type createUserRequest struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type updateUserRequest struct {
	ID          int64  `json:"id" binding:"required"`
	DisplayName string `json:"displayName"`
}

// List handles GET /v1/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	profiles := make([]models.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}

	c.JSON(http.StatusOK, profiles)
}

// Create handles POST /v1/users
//
// The password is hashed before it goes anywhere near the store; only the
// bcrypt hash is persisted. There is no duplicate-email pre-check — the
// unique index is the enforcement point, and a violation surfaces as a 500
// like any other store fault.
func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	// bcrypt salts internally; two users with the same password end up with
	// different hashes.
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	user, err := h.users.Create(c.Request.Context(), req.Email, string(hash), req.FirstName, req.LastName)
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

// Update handles PUT /v1/users
//
// displayName is the only mutable field. When it is absent (or empty) the
// call is an idempotent no-op success — nothing is written, nothing fails.
func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID required"})
		return
	}

	if req.DisplayName != "" {
		if err := h.users.UpdateDisplayName(c.Request.Context(), req.ID, req.DisplayName); err != nil {
			h.logger.Error("failed to update display name", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete handles DELETE /v1/users?id=N
//
// The store runs the cascade (links, then messages, then the user row) in a
// single transaction; by the time this returns 200 no orphaned recipient
// link or dangling author reference exists.
func (h *UserHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID required"})
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("failed to delete user", zap.Int64("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
