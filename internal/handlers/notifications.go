package handlers

import (
	"net/http"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// GetNotifications gets the user's notifications with unseen/unread counts
// GET /api/v1/notifications
func (h *Handlers) GetNotifications(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.PaginationParams(c, 20, 100)

	var notifs []models.Notification
	err := database.DB.Where("recipient_id = ?", user.ID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&notifs).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "notifications")
		return
	}

	var unseen, unread int64
	database.DB.Model(&models.Notification{}).Where("recipient_id = ? AND seen = false", user.ID).Count(&unseen)
	database.DB.Model(&models.Notification{}).Where("recipient_id = ? AND read = false", user.ID).Count(&unread)

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifs,
		"unseen":        unseen,
		"unread":        unread,
		"meta": gin.H{
			"limit":  limit,
			"offset": offset,
			"count":  len(notifs),
		},
	})
}

// GetNotificationCounts gets just the unseen/unread counts for badge display
// GET /api/v1/notifications/counts
func (h *Handlers) GetNotificationCounts(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var unseen, unread int64
	database.DB.Model(&models.Notification{}).Where("recipient_id = ? AND seen = false", user.ID).Count(&unseen)
	database.DB.Model(&models.Notification{}).Where("recipient_id = ? AND read = false", user.ID).Count(&unread)

	c.JSON(http.StatusOK, gin.H{
		"unseen": unseen,
		"unread": unread,
	})
}

// MarkNotificationsRead marks all notifications as read
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	err := database.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = false", user.ID).
		Updates(map[string]interface{}{"read": true, "seen": true}).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "all_notifications_marked_read",
	})
}

// MarkNotificationsSeen marks all notifications as seen (clears badge)
// POST /api/v1/notifications/seen
func (h *Handlers) MarkNotificationsSeen(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	err := database.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND seen = false", user.ID).
		Update("seen", true).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "all_notifications_marked_seen",
	})
}
