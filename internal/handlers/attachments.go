package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/clapserv/backend/internal/attachments"
	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/metrics"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Multipart form memory cap; larger bodies spill to disk
const maxUploadMemory = 32 << 20

// UploadAttachment validates an uploaded file, stores it in S3, and
// creates the attachment message in the conversation
// POST /api/v1/conversations/:id/attachments
func (h *Handlers) UploadAttachment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if h.uploader == nil {
		util.RespondInternalError(c, "attachment storage is not configured")
		return
	}

	conversation := loadConversationForParticipant(c, c.Param("id"), user.ID)
	if conversation == nil {
		return
	}

	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		util.RespondBadRequest(c, "invalid multipart form")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		util.RespondBadRequest(c, "file field is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		util.RespondBadRequest(c, "could not read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		util.RespondInternalError(c, "could not read uploaded file")
		return
	}

	validated, err := attachments.Validate(attachments.Attachment{
		Filename: fileHeader.Filename,
		MIMEType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		var verr *attachments.ValidationError
		if errors.As(err, &verr) {
			util.RespondValidationError(c, "file", verr.Detail)
			return
		}
		util.RespondBadRequest(c, "invalid attachment")
		return
	}

	result, err := h.uploader.UploadAttachment(
		c.Request.Context(), data, validated.MIMEType,
		conversation.ID, user.ID, validated.SafeName,
	)
	if err != nil {
		logger.Log.Error("attachment upload failed",
			zap.String("conversation_id", conversation.ID),
			logger.WithUserID(user.ID),
			zap.Error(err),
		)
		util.RespondInternalError(c, "failed to store attachment")
		return
	}

	metrics.Get().AttachmentUploadsTotal.WithLabelValues(string(validated.Kind)).Inc()

	message := models.Message{
		ConversationID: conversation.ID,
		SenderID:       user.ID,
		Body:           c.PostForm("body"),
		AttachmentURL:  result.URL,
		AttachmentName: validated.SafeName,
		AttachmentKind: validated.Kind,
		AttachmentSize: validated.Size,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
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

	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"upload":  result,
	})
}
