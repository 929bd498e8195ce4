package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/clapserv/backend/internal/auth"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Register creates a new account with email/password
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	authResp, err := h.auth.RegisterUser(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			util.RespondConflict(c, "account")
		case errors.Is(err, auth.ErrUsernameExists):
			util.RespondValidationError(c, "username", "username already taken")
		default:
			logger.ErrorWithErr("registration failed", err)
			util.RespondInternalError(c, "registration failed")
		}
		return
	}

	c.JSON(http.StatusCreated, authResp)
}

// Login authenticates with email/password
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	authResp, err := h.auth.LoginUser(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
			util.RespondUnauthorized(c, "invalid email or password")
		default:
			logger.ErrorWithErr("login failed", err)
			util.RespondInternalError(c, "login failed")
		}
		return
	}

	c.JSON(http.StatusOK, authResp)
}

// Me returns the authenticated user
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// RequestPasswordReset starts the password reset flow
// POST /api/v1/auth/reset-password
func (h *Handlers) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	token, err := h.auth.RequestPasswordReset(req.Email)
	if err != nil {
		logger.ErrorWithErr("password reset request failed", err)
		util.RespondInternalError(c, "failed to process reset request")
		return
	}

	// Same response whether or not the account exists
	if token != nil && h.email != nil {
		if err := h.email.SendPasswordResetEmail(c.Request.Context(), req.Email, token.Token); err != nil {
			logger.ErrorWithErr("failed to send password reset email", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "if the account exists, a reset email has been sent",
	})
}

// ConfirmPasswordReset completes the password reset flow
// POST /api/v1/auth/reset-password/confirm
func (h *Handlers) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.ResetPassword(req.Token, req.NewPassword); err != nil {
		util.RespondBadRequest(c, "invalid or expired reset token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// AuthMiddleware validates the bearer token and loads the user into the context
func (h *Handlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			util.RespondUnauthorized(c, "no token provided")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		if tokenString == header {
			util.RespondUnauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}

		user, err := h.auth.ValidateToken(tokenString)
		if err != nil {
			logger.Log.Debug("token validation failed", zap.Error(err))
			util.RespondUnauthorized(c, "invalid token")
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}
