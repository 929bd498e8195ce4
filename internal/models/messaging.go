package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation links a buyer and a provider, optionally scoped to a
// project or proposal. One conversation per participant pair per scope.
type Conversation struct {
	ID string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`

	BuyerID    string `gorm:"not null;index" json:"buyer_id"`
	Buyer      User   `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	ProviderID string `gorm:"not null;index" json:"provider_id"`
	Provider   User   `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`

	ProjectID  *string `gorm:"index" json:"project_id,omitempty"`
	ProposalID *string `gorm:"index" json:"proposal_id,omitempty"`

	LastMessageAt *time.Time `gorm:"index" json:"last_message_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AttachmentKind groups attachments for size-limit purposes
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentDocument AttachmentKind = "document"
)

// Message is a chat message inside a conversation. Attachment fields are
// set when the message carries a validated upload.
type Message struct {
	ID             string       `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ConversationID string       `gorm:"not null;index" json:"conversation_id"`
	Conversation   Conversation `gorm:"foreignKey:ConversationID" json:"-"`

	SenderID string `gorm:"not null;index" json:"sender_id"`
	Sender   User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`

	Body string `gorm:"type:text" json:"body"`

	// Attachment metadata (nil for plain text messages)
	AttachmentURL  string         `json:"attachment_url,omitempty"`
	AttachmentName string         `json:"attachment_name,omitempty"`
	AttachmentKind AttachmentKind `gorm:"type:varchar(16)" json:"attachment_kind,omitempty"`
	AttachmentSize int64          `json:"attachment_size,omitempty"`

	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// NotificationType categorizes in-app notifications
type NotificationType string

const (
	NotificationRequestMatch     NotificationType = "request_match"
	NotificationProposalReceived NotificationType = "proposal_received"
	NotificationProposalAccepted NotificationType = "proposal_accepted"
	NotificationProposalRejected NotificationType = "proposal_rejected"
	NotificationNewMessage       NotificationType = "new_message"
	NotificationProjectUpdate    NotificationType = "project_update"
)

// Notification is a per-recipient in-app notification row. The push send
// is a separate, non-transactional effect.
type Notification struct {
	ID          string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RecipientID string `gorm:"not null;index" json:"recipient_id"`
	Recipient   User   `gorm:"foreignKey:RecipientID" json:"-"`

	Type  NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title string           `gorm:"not null" json:"title"`
	Body  string           `gorm:"type:text" json:"body"`

	// Data carries deep-link payload (request/proposal/project IDs)
	Data map[string]string `gorm:"type:jsonb;serializer:json" json:"data,omitempty"`

	Read bool `gorm:"default:false" json:"read"`
	Seen bool `gorm:"default:false" json:"seen"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hooks

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	return nil
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = generateUUID()
	}
	return nil
}
