package handlers

import (
	"net/http"
	"time"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateConversation opens (or returns) the conversation between the
// authenticated user and another participant
// POST /api/v1/conversations
func (h *Handlers) CreateConversation(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		ParticipantID string  `json:"participant_id" binding:"required"`
		ProjectID     *string `json:"project_id"`
		ProposalID    *string `json:"proposal_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.ParticipantID == user.ID {
		util.RespondBadRequest(c, "cannot start a conversation with yourself")
		return
	}

	var other models.User
	if err := database.DB.Where("id = ?", req.ParticipantID).First(&other).Error; err != nil {
		util.RespondDatabaseError(c, err, "user")
		return
	}

	// The initiating user is the buyer side of the pair
	buyerID, providerID := user.ID, other.ID

	// Reuse an existing conversation for the same pair and scope
	var existing models.Conversation
	query := database.DB.Where(
		"((buyer_id = ? AND provider_id = ?) OR (buyer_id = ? AND provider_id = ?))",
		buyerID, providerID, providerID, buyerID,
	)
	if req.ProjectID != nil {
		query = query.Where("project_id = ?", *req.ProjectID)
	} else if req.ProposalID != nil {
		query = query.Where("proposal_id = ?", *req.ProposalID)
	} else {
		query = query.Where("project_id IS NULL AND proposal_id IS NULL")
	}
	if err := query.First(&existing).Error; err == nil {
		c.JSON(http.StatusOK, gin.H{"conversation": existing})
		return
	}

	conversation := models.Conversation{
		BuyerID:    buyerID,
		ProviderID: providerID,
		ProjectID:  req.ProjectID,
		ProposalID: req.ProposalID,
	}

	if err := database.DB.Create(&conversation).Error; err != nil {
		util.RespondDatabaseError(c, err, "conversation")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"conversation": conversation})
}

// ListConversations returns the authenticated user's conversations,
// most recently active first
// GET /api/v1/conversations
func (h *Handlers) ListConversations(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.PaginationParams(c, 20, 100)

	var conversations []models.Conversation
	err := database.DB.Preload("Buyer").Preload("Provider").
		Where("buyer_id = ? OR provider_id = ?", user.ID, user.ID).
		Order("last_message_at DESC NULLS LAST, created_at DESC").
		Limit(limit).Offset(offset).
		Find(&conversations).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "conversations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"meta":          gin.H{"limit": limit, "offset": offset, "count": len(conversations)},
	})
}

// GetConversation returns a single conversation the caller participates in
// GET /api/v1/conversations/:id
func (h *Handlers) GetConversation(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conversation := loadConversationForParticipant(c, c.Param("id"), user.ID)
	if conversation == nil {
		return
	}

	if err := database.DB.Preload("Buyer").Preload("Provider").
		First(conversation, "id = ?", conversation.ID).Error; err != nil {
		util.RespondDatabaseError(c, err, "conversation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversation})
}

// loadConversationForParticipant loads a conversation and checks membership.
// Responds and returns nil when the caller is not a participant.
func loadConversationForParticipant(c *gin.Context, conversationID, userID string) *models.Conversation {
	var conversation models.Conversation
	if err := database.DB.Where("id = ?", conversationID).First(&conversation).Error; err != nil {
		util.RespondDatabaseError(c, err, "conversation")
		return nil
	}

	if conversation.BuyerID != userID && conversation.ProviderID != userID {
		util.RespondForbidden(c, "not a conversation participant")
		return nil
	}

	return &conversation
}

// SendMessage posts a text message into a conversation
// POST /api/v1/conversations/:id/messages
func (h *Handlers) SendMessage(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conversation := loadConversationForParticipant(c, c.Param("id"), user.ID)
	if conversation == nil {
		return
	}

	var req struct {
		Body string `json:"body" binding:"required,min=1,max=5000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       user.ID,
		Body:           req.Body,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(conversation).Update("last_message_at", &now).Error
	})
	if err != nil {
		util.RespondDatabaseError(c, err, "message")
		return
	}

	recipientID := conversation.ProviderID
	if user.ID == conversation.ProviderID {
		recipientID = conversation.BuyerID
	}
	h.dispatcher.NotifyNewMessage(c.Request.Context(), recipientID, &message)

	c.JSON(http.StatusCreated, gin.H{"message": message})
}

// ListMessages returns messages in a conversation, newest first
// GET /api/v1/conversations/:id/messages
func (h *Handlers) ListMessages(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conversation := loadConversationForParticipant(c, c.Param("id"), user.ID)
	if conversation == nil {
		return
	}

	limit, offset := util.PaginationParams(c, 50, 200)

	var messages []models.Message
	err := database.DB.Where("conversation_id = ?", conversation.ID).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&messages).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"meta":     gin.H{"limit": limit, "offset": offset, "count": len(messages)},
	})
}

// MarkMessagesRead marks all messages from the other participant as read
// POST /api/v1/conversations/:id/read
func (h *Handlers) MarkMessagesRead(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	conversation := loadConversationForParticipant(c, c.Param("id"), user.ID)
	if conversation == nil {
		return
	}

	now := time.Now()
	err := database.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id != ? AND read_at IS NULL", conversation.ID, user.ID).
		Update("read_at", &now).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
