package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/logger"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateRequest posts a new service request and fans out match
// notifications in the background
// POST /api/v1/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		CategoryID  string   `json:"category_id" binding:"required"`
		Title       string   `json:"title" binding:"required,min=3,max=200"`
		Description string   `json:"description"`
		BudgetCents *int64   `json:"budget_cents"`
		City        string   `json:"city"`
		State       string   `json:"state"`
		Zip         string   `json:"zip"`
		Lat         *float64 `json:"lat"`
		Lng         *float64 `json:"lng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	var category models.ServiceCategory
	if err := database.DB.Where("id = ? AND is_active = true", req.CategoryID).First(&category).Error; err != nil {
		util.RespondDatabaseError(c, err, "category")
		return
	}

	request := models.ServiceRequest{
		BuyerID:     user.ID,
		CategoryID:  category.ID,
		Title:       req.Title,
		Description: req.Description,
		BudgetCents: req.BudgetCents,
		City:        req.City,
		State:       req.State,
		Zip:         req.Zip,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Status:      models.RequestStatusOpen,
	}

	// Fall back to the buyer's stored location when the request has none
	if request.Lat == nil && request.City == "" && request.Zip == "" {
		request.City = user.City
		request.State = user.State
		request.Zip = user.Zip
		request.Lat = user.Lat
		request.Lng = user.Lng
	}

	if err := database.DB.Create(&request).Error; err != nil {
		util.RespondDatabaseError(c, err, "request")
		return
	}

	// Matching and push fan-out happen off the request path. A fan-out
	// failure never fails the create.
	go func(r models.ServiceRequest) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.dispatcher.DispatchRequestCreated(ctx, &r); err != nil {
			logger.Log.Error("request match dispatch failed",
				zap.String("request_id", r.ID),
				zap.Error(err),
			)
		}
	}(request)

	c.JSON(http.StatusCreated, gin.H{"request": request})
}

// ListMyRequests returns the authenticated buyer's requests
// GET /api/v1/requests/mine
func (h *Handlers) ListMyRequests(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.PaginationParams(c, 20, 100)

	query := database.DB.Preload("Category").Where("buyer_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var requests []models.ServiceRequest
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&requests).Error; err != nil {
		util.RespondDatabaseError(c, err, "requests")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"meta":     gin.H{"limit": limit, "offset": offset, "count": len(requests)},
	})
}

// ListOpenRequests returns open requests matching the provider's skills
// GET /api/v1/requests/open
func (h *Handlers) ListOpenRequests(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var profile models.ProviderProfile
	if err := database.DB.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		util.RespondForbidden(c, "provider profile required")
		return
	}

	if len(profile.Skills) == 0 {
		c.JSON(http.StatusOK, gin.H{"requests": []models.ServiceRequest{}})
		return
	}

	limit, offset := util.PaginationParams(c, 20, 100)

	var requests []models.ServiceRequest
	err := database.DB.Preload("Category").Preload("Buyer").
		Where("status = ? AND category_id IN ?", models.RequestStatusOpen, []string(profile.Skills)).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&requests).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "requests")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"requests": requests,
		"meta":     gin.H{"limit": limit, "offset": offset, "count": len(requests)},
	})
}

// GetRequest returns a single service request
// GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	var request models.ServiceRequest
	err := database.DB.Preload("Category").Preload("Buyer").
		Where("id = ?", c.Param("id")).First(&request).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "request")
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": request})
}

// CancelRequest cancels an open request. Only the owning buyer may cancel.
// POST /api/v1/requests/:id/cancel
func (h *Handlers) CancelRequest(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var request models.ServiceRequest
	if err := database.DB.Where("id = ?", c.Param("id")).First(&request).Error; err != nil {
		util.RespondDatabaseError(c, err, "request")
		return
	}

	if request.BuyerID != user.ID {
		util.RespondForbidden(c, "only the request owner can cancel it")
		return
	}

	if request.Status != models.RequestStatusOpen {
		util.RespondBadRequest(c, "only open requests can be cancelled")
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&request).Update("status", models.RequestStatusCancelled).Error; err != nil {
			return err
		}
		// Pending proposals die with the request
		return tx.Model(&models.Proposal{}).
			Where("request_id = ? AND status = ?", request.ID, models.ProposalStatusPending).
			Update("status", models.ProposalStatusRejected).Error
	})
	if err != nil {
		util.RespondDatabaseError(c, err, "request")
		return
	}

	request.Status = models.RequestStatusCancelled
	c.JSON(http.StatusOK, gin.H{"request": request})
}
