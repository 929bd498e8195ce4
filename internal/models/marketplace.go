package models

import (
	"time"

	"gorm.io/gorm"
)

// ServiceCategory is a bookable service type. MaxDistanceKM bounds local
// matching; nil means the category is offered statewide with no distance
// filter at all.
type ServiceCategory struct {
	ID          string   `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name        string   `gorm:"uniqueIndex;not null" json:"name"`
	Slug        string   `gorm:"uniqueIndex;not null" json:"slug"`
	Description string   `gorm:"type:text" json:"description"`
	IconName    string   `json:"icon_name"`
	MaxDistanceKM *float64 `json:"max_distance_km"`
	IsActive    bool     `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServiceRegion is a named service area. Region centers double as the
// geocoding gazetteer for city/zip lookups.
type ServiceRegion struct {
	ID       string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Name     string  `gorm:"not null" json:"name"`
	City     string  `gorm:"index" json:"city"`
	State    string  `json:"state"`
	Zip      string  `gorm:"index" json:"zip"`
	Lat      float64 `gorm:"not null" json:"lat"`
	Lng      float64 `gorm:"not null" json:"lng"`
	RadiusKM float64 `gorm:"default:0" json:"radius_km"`
	IsActive bool    `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegionCategory enables a category inside a region
type RegionCategory struct {
	ID         string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RegionID   string          `gorm:"not null;index" json:"region_id"`
	Region     ServiceRegion   `gorm:"foreignKey:RegionID" json:"region,omitempty"`
	CategoryID string          `gorm:"not null;index" json:"category_id"`
	Category   ServiceCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// RequestStatus is the lifecycle state of a service request
type RequestStatus string

const (
	RequestStatusOpen      RequestStatus = "open"
	RequestStatusMatched   RequestStatus = "matched"
	RequestStatusCancelled RequestStatus = "cancelled"
	RequestStatusClosed    RequestStatus = "closed"
)

// ServiceRequest is a buyer's posted job
type ServiceRequest struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	BuyerID string `gorm:"not null;index" json:"buyer_id"`
	Buyer   User   `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`

	CategoryID string          `gorm:"not null;index" json:"category_id"`
	Category   ServiceCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	Title       string  `gorm:"not null" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	BudgetCents *int64  `json:"budget_cents,omitempty"`

	// Request location; coordinates take precedence over city/zip
	City  string   `json:"city"`
	State string   `json:"state"`
	Zip   string   `json:"zip"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`

	Status RequestStatus `gorm:"type:varchar(16);default:open;index" json:"status"`

	// Cached proposal count for list views
	ProposalCount int `gorm:"default:0" json:"proposal_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProposalStatus is the lifecycle state of a proposal
type ProposalStatus string

const (
	ProposalStatusPending   ProposalStatus = "pending"
	ProposalStatusAccepted  ProposalStatus = "accepted"
	ProposalStatusRejected  ProposalStatus = "rejected"
	ProposalStatusWithdrawn ProposalStatus = "withdrawn"
)

// Proposal is a provider's bid against a service request.
// One proposal per provider per request (unique index in migrations).
type Proposal struct {
	ID        string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RequestID string         `gorm:"not null;index" json:"request_id"`
	Request   ServiceRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`

	ProviderID string `gorm:"not null;index" json:"provider_id"`
	Provider   User   `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`

	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Message     string `gorm:"type:text" json:"message"`

	Status ProposalStatus `gorm:"type:varchar(16);default:pending;index" json:"status"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProjectStatus is the lifecycle state of a project
type ProjectStatus string

const (
	ProjectStatusActive     ProjectStatus = "active"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// Project is the work unit created when a proposal is accepted
type Project struct {
	ID         string         `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RequestID  string         `gorm:"not null;index" json:"request_id"`
	Request    ServiceRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	ProposalID string         `gorm:"uniqueIndex;not null" json:"proposal_id"`
	Proposal   Proposal       `gorm:"foreignKey:ProposalID" json:"proposal,omitempty"`

	BuyerID    string `gorm:"not null;index" json:"buyer_id"`
	Buyer      User   `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
	ProviderID string `gorm:"not null;index" json:"provider_id"`
	Provider   User   `gorm:"foreignKey:ProviderID" json:"provider,omitempty"`

	AgreedAmountCents int64 `gorm:"not null" json:"agreed_amount_cents"`

	Status      ProjectStatus `gorm:"type:varchar(16);default:active;index" json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Review is a buyer's review of a completed project (one per project)
type Review struct {
	ID        string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ProjectID string  `gorm:"uniqueIndex;not null" json:"project_id"`
	Project   Project `gorm:"foreignKey:ProjectID" json:"-"`

	ReviewerID string `gorm:"not null;index" json:"reviewer_id"`
	Reviewer   User   `gorm:"foreignKey:ReviewerID" json:"reviewer,omitempty"`
	ProviderID string `gorm:"not null;index" json:"provider_id"`

	Rating  int    `gorm:"not null" json:"rating"` // 1-5
	Comment string `gorm:"type:text" json:"comment"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hooks

func (c *ServiceCategory) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateUUID()
	}
	return nil
}

func (r *ServiceRegion) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (rc *RegionCategory) BeforeCreate(tx *gorm.DB) error {
	if rc.ID == "" {
		rc.ID = generateUUID()
	}
	return nil
}

func (r *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateUUID()
	}
	return nil
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = generateUUID()
	}
	return nil
}
