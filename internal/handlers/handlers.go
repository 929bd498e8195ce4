package handlers

import (
	"github.com/clapserv/backend/internal/auth"
	"github.com/clapserv/backend/internal/email"
	"github.com/clapserv/backend/internal/notifications"
	"github.com/clapserv/backend/internal/storage"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth       auth.AuthServiceInterface
	dispatcher *notifications.Dispatcher
	uploader   storage.AttachmentUploader
	email      *email.EmailService
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService auth.AuthServiceInterface, dispatcher *notifications.Dispatcher) *Handlers {
	return &Handlers{
		auth:       authService,
		dispatcher: dispatcher,
	}
}

// SetUploader sets the attachment uploader for chat uploads
func (h *Handlers) SetUploader(uploader storage.AttachmentUploader) {
	h.uploader = uploader
}

// SetEmailService sets the email service for password reset mail
func (h *Handlers) SetEmailService(emailService *email.EmailService) {
	h.email = emailService
}
