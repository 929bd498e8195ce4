package handlers

import (
	"net/http"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// ListRegions returns all active service regions
// GET /api/v1/regions
func (h *Handlers) ListRegions(c *gin.Context) {
	var regions []models.ServiceRegion
	query := database.DB.Where("is_active = true")

	if state := c.Query("state"); state != "" {
		query = query.Where("state = ?", state)
	}

	if err := query.Order("name").Find(&regions).Error; err != nil {
		util.RespondDatabaseError(c, err, "regions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"regions": regions})
}

// CreateRegion creates a new service region (admin only)
// POST /api/v1/admin/regions
func (h *Handlers) CreateRegion(c *gin.Context) {
	var req struct {
		Name     string  `json:"name" binding:"required"`
		City     string  `json:"city"`
		State    string  `json:"state"`
		Zip      string  `json:"zip"`
		Lat      float64 `json:"lat" binding:"required"`
		Lng      float64 `json:"lng" binding:"required"`
		RadiusKM float64 `json:"radius_km"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		util.RespondValidationError(c, "lat", "coordinates out of range")
		return
	}

	region := models.ServiceRegion{
		Name:     req.Name,
		City:     req.City,
		State:    req.State,
		Zip:      req.Zip,
		Lat:      req.Lat,
		Lng:      req.Lng,
		RadiusKM: req.RadiusKM,
		IsActive: true,
	}

	if err := database.DB.Create(&region).Error; err != nil {
		util.RespondDatabaseError(c, err, "region")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"region": region})
}

// EnableRegionCategory enables a category within a region (admin only)
// POST /api/v1/admin/regions/:id/categories
func (h *Handlers) EnableRegionCategory(c *gin.Context) {
	var region models.ServiceRegion
	if err := database.DB.Where("id = ?", c.Param("id")).First(&region).Error; err != nil {
		util.RespondDatabaseError(c, err, "region")
		return
	}

	var req struct {
		CategoryID string `json:"category_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	var category models.ServiceCategory
	if err := database.DB.Where("id = ?", req.CategoryID).First(&category).Error; err != nil {
		util.RespondDatabaseError(c, err, "category")
		return
	}

	link := models.RegionCategory{
		RegionID:   region.ID,
		CategoryID: category.ID,
	}
	if err := database.DB.Create(&link).Error; err != nil {
		util.RespondDatabaseError(c, err, "region category")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"region_category": link})
}
