package handlers

import (
	"net/http"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// ListCategories returns all active service categories
// GET /api/v1/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	var categories []models.ServiceCategory
	if err := database.DB.Where("is_active = true").Order("name").Find(&categories).Error; err != nil {
		util.RespondDatabaseError(c, err, "categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory returns a single category by ID or slug
// GET /api/v1/categories/:id
func (h *Handlers) GetCategory(c *gin.Context) {
	id := c.Param("id")

	var category models.ServiceCategory
	if err := database.DB.Where("id = ? OR slug = ?", id, id).First(&category).Error; err != nil {
		util.RespondDatabaseError(c, err, "category")
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}

// CreateCategory creates a new service category (admin only)
// POST /api/v1/admin/categories
func (h *Handlers) CreateCategory(c *gin.Context) {
	var req struct {
		Name          string   `json:"name" binding:"required"`
		Slug          string   `json:"slug" binding:"required"`
		Description   string   `json:"description"`
		IconName      string   `json:"icon_name"`
		MaxDistanceKM *float64 `json:"max_distance_km"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.MaxDistanceKM != nil && *req.MaxDistanceKM <= 0 {
		util.RespondValidationError(c, "max_distance_km", "max_distance_km must be positive")
		return
	}

	category := models.ServiceCategory{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		IconName:      req.IconName,
		MaxDistanceKM: req.MaxDistanceKM,
		IsActive:      true,
	}

	if err := database.DB.Create(&category).Error; err != nil {
		util.RespondDatabaseError(c, err, "category")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory updates a service category (admin only)
// PUT /api/v1/admin/categories/:id
func (h *Handlers) UpdateCategory(c *gin.Context) {
	var category models.ServiceCategory
	if err := database.DB.Where("id = ?", c.Param("id")).First(&category).Error; err != nil {
		util.RespondDatabaseError(c, err, "category")
		return
	}

	var req struct {
		Name          *string  `json:"name"`
		Description   *string  `json:"description"`
		IconName      *string  `json:"icon_name"`
		MaxDistanceKM *float64 `json:"max_distance_km"`
		IsActive      *bool    `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.IconName != nil {
		updates["icon_name"] = *req.IconName
	}
	if req.MaxDistanceKM != nil {
		if *req.MaxDistanceKM <= 0 {
			util.RespondValidationError(c, "max_distance_km", "max_distance_km must be positive")
			return
		}
		updates["max_distance_km"] = *req.MaxDistanceKM
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := database.DB.Model(&category).Updates(updates).Error; err != nil {
		util.RespondDatabaseError(c, err, "category")
		return
	}

	c.JSON(http.StatusOK, gin.H{"category": category})
}
