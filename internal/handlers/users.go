package handlers

import (
	"net/http"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
)

// GetUser returns a user's public profile
// GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	var user models.User
	err := database.DB.Preload("ProviderProfile").Where("id = ?", c.Param("id")).First(&user).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile updates the authenticated user's profile
// PUT /api/v1/users/me
func (h *Handlers) UpdateProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		DisplayName *string  `json:"display_name"`
		Bio         *string  `json:"bio"`
		Phone       *string  `json:"phone"`
		AvatarURL   *string  `json:"avatar_url"`
		City        *string  `json:"city"`
		State       *string  `json:"state"`
		Zip         *string  `json:"zip"`
		Lat         *float64 `json:"lat"`
		Lng         *float64 `json:"lng"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.City != nil {
		updates["city"] = *req.City
	}
	if req.State != nil {
		updates["state"] = *req.State
	}
	if req.Zip != nil {
		updates["zip"] = *req.Zip
	}
	if req.Lat != nil {
		updates["lat"] = *req.Lat
	}
	if req.Lng != nil {
		updates["lng"] = *req.Lng
	}

	if len(updates) == 0 {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	if err := database.DB.Model(user).Updates(updates).Error; err != nil {
		util.RespondDatabaseError(c, err, "user")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// SwitchRole toggles the authenticated user's active role
// POST /api/v1/users/me/role
func (h *Handlers) SwitchRole(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Role models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if req.Role != models.RoleBuyer && req.Role != models.RoleProvider {
		util.RespondValidationError(c, "role", "role must be buyer or provider")
		return
	}

	// Switching to provider requires a provider profile
	if req.Role == models.RoleProvider {
		var count int64
		database.DB.Model(&models.ProviderProfile{}).Where("user_id = ?", user.ID).Count(&count)
		if count == 0 {
			util.RespondBadRequest(c, "create a provider profile before switching to provider role")
			return
		}
	}

	if err := database.DB.Model(user).Update("active_role", req.Role).Error; err != nil {
		util.RespondDatabaseError(c, err, "user")
		return
	}

	user.ActiveRole = req.Role
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpsertProviderProfile creates or updates the authenticated user's provider profile
// PUT /api/v1/users/me/provider-profile
func (h *Handlers) UpsertProviderProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		BusinessName string             `json:"business_name"`
		Bio          string             `json:"bio"`
		Skills       models.StringArray `json:"skills"`
		City         string             `json:"city"`
		State        string             `json:"state"`
		Zip          string             `json:"zip"`
		Lat          *float64           `json:"lat"`
		Lng          *float64           `json:"lng"`
		IsActive     *bool              `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	// Skills must reference existing active categories
	if len(req.Skills) > 0 {
		var count int64
		database.DB.Model(&models.ServiceCategory{}).
			Where("id IN ? AND is_active = true", []string(req.Skills)).
			Count(&count)
		if count != int64(len(req.Skills)) {
			util.RespondValidationError(c, "skills", "skills must reference active service categories")
			return
		}
	}

	var profile models.ProviderProfile
	err := database.DB.Where("user_id = ?", user.ID).First(&profile).Error
	isNew := err != nil

	profile.UserID = user.ID
	profile.BusinessName = req.BusinessName
	profile.Bio = req.Bio
	profile.Skills = req.Skills
	profile.City = req.City
	profile.State = req.State
	profile.Zip = req.Zip
	profile.Lat = req.Lat
	profile.Lng = req.Lng
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
	} else if isNew {
		profile.IsActive = true
	}

	if err := database.DB.Save(&profile).Error; err != nil {
		util.RespondDatabaseError(c, err, "provider profile")
		return
	}

	status := http.StatusOK
	if isNew {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"provider_profile": profile})
}

// GetProviderProfile returns a provider profile by user ID
// GET /api/v1/users/:id/provider-profile
func (h *Handlers) GetProviderProfile(c *gin.Context) {
	var profile models.ProviderProfile
	err := database.DB.Preload("User").Where("user_id = ?", c.Param("id")).First(&profile).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "provider profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"provider_profile": profile})
}
