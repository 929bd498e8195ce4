package handlers

import (
	"net/http"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/push"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

// RegisterPushToken registers a device's Expo push token
// POST /api/v1/push-tokens
func (h *Handlers) RegisterPushToken(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if !push.IsValidToken(req.Token) {
		util.RespondValidationError(c, "token", "not a valid Expo push token")
		return
	}

	token := models.PushToken{
		UserID:   user.ID,
		Token:    req.Token,
		Platform: req.Platform,
	}

	// A token moving between accounts (device re-login) reassigns ownership
	err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "updated_at"}),
	}).Create(&token).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "push token")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"push_token": token})
}

// RemovePushToken removes a device's push token (logout)
// DELETE /api/v1/push-tokens
func (h *Handlers) RemovePushToken(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	err := database.DB.Where("user_id = ? AND token = ?", user.ID, req.Token).
		Delete(&models.PushToken{}).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "push token")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
