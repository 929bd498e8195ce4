package handlers

import (
	"net/http"
	"time"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/errors"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// validProjectTransitions maps each status to the statuses it may move to.
var validProjectTransitions = map[models.ProjectStatus][]models.ProjectStatus{
	models.ProjectStatusActive:     {models.ProjectStatusInProgress, models.ProjectStatusCancelled},
	models.ProjectStatusInProgress: {models.ProjectStatusCompleted, models.ProjectStatusCancelled},
}

func transitionAllowed(from, to models.ProjectStatus) bool {
	for _, s := range validProjectTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ListProjects returns the authenticated user's projects on either side
// GET /api/v1/projects
func (h *Handlers) ListProjects(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.PaginationParams(c, 20, 100)

	query := database.DB.Preload("Request").Preload("Request.Category").
		Preload("Buyer").Preload("Provider").
		Where("buyer_id = ? OR provider_id = ?", user.ID, user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var projects []models.Project
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&projects).Error; err != nil {
		util.RespondDatabaseError(c, err, "projects")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": projects,
		"meta":     gin.H{"limit": limit, "offset": offset, "count": len(projects)},
	})
}

// GetProject returns a single project visible to its participants
// GET /api/v1/projects/:id
func (h *Handlers) GetProject(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var project models.Project
	err := database.DB.Preload("Request").Preload("Request.Category").
		Preload("Buyer").Preload("Provider").Preload("Proposal").
		Where("id = ?", c.Param("id")).First(&project).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "project")
		return
	}

	if project.BuyerID != user.ID && project.ProviderID != user.ID {
		util.RespondForbidden(c, "not a project participant")
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// UpdateProjectStatus moves a project through its lifecycle
// POST /api/v1/projects/:id/status
func (h *Handlers) UpdateProjectStatus(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var project models.Project
	if err := database.DB.Where("id = ?", c.Param("id")).First(&project).Error; err != nil {
		util.RespondDatabaseError(c, err, "project")
		return
	}

	if project.BuyerID != user.ID && project.ProviderID != user.ID {
		util.RespondForbidden(c, "not a project participant")
		return
	}

	var req struct {
		Status models.ProjectStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if !transitionAllowed(project.Status, req.Status) {
		util.RespondBadRequest(c, "invalid status transition")
		return
	}

	// Only the buyer confirms completion
	if req.Status == models.ProjectStatusCompleted && project.BuyerID != user.ID {
		util.RespondForbidden(c, "only the buyer can mark a project completed")
		return
	}

	updates := map[string]interface{}{"status": req.Status}
	if req.Status == models.ProjectStatusCompleted {
		now := time.Now()
		updates["completed_at"] = &now
		project.CompletedAt = &now
	}

	if err := database.DB.Model(&project).Updates(updates).Error; err != nil {
		util.RespondDatabaseError(c, err, "project")
		return
	}

	project.Status = req.Status

	// Notify the other participant
	recipientID := project.ProviderID
	if user.ID == project.ProviderID {
		recipientID = project.BuyerID
	}
	h.dispatcher.NotifyProjectUpdate(c.Request.Context(), recipientID, &project)

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// CreateReview leaves a review on a completed project and refreshes the
// provider's rating cache
// POST /api/v1/projects/:id/review
func (h *Handlers) CreateReview(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var project models.Project
	if err := database.DB.Where("id = ?", c.Param("id")).First(&project).Error; err != nil {
		util.RespondDatabaseError(c, err, "project")
		return
	}

	if project.BuyerID != user.ID {
		util.RespondForbidden(c, "only the buyer can review a project")
		return
	}

	if project.Status != models.ProjectStatusCompleted {
		util.RespondBadRequest(c, "only completed projects can be reviewed")
		return
	}

	var req struct {
		Rating  int    `json:"rating" binding:"required,min=1,max=5"`
		Comment string `json:"comment" binding:"max=2000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	review := models.Review{
		ProjectID:  project.ID,
		ReviewerID: user.ID,
		ProviderID: project.ProviderID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return err
		}

		// Recompute the rating cache from the source of truth
		var stats struct {
			Avg   float64
			Count int64
		}
		if err := tx.Model(&models.Review{}).
			Select("COALESCE(AVG(rating), 0) as avg, COUNT(*) as count").
			Where("provider_id = ?", project.ProviderID).
			Scan(&stats).Error; err != nil {
			return err
		}

		return tx.Model(&models.ProviderProfile{}).
			Where("user_id = ?", project.ProviderID).
			Updates(map[string]interface{}{
				"rating_average": stats.Avg,
				"rating_count":   stats.Count,
			}).Error
	})
	if err != nil {
		if errors.IsUniqueViolation(err) {
			util.RespondWithAPIError(c, errors.AlreadyExists("review"))
			return
		}
		util.RespondDatabaseError(c, err, "review")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// ListProviderReviews returns reviews left for a provider
// GET /api/v1/users/:id/reviews
func (h *Handlers) ListProviderReviews(c *gin.Context) {
	limit, offset := util.PaginationParams(c, 20, 100)

	var reviews []models.Review
	err := database.DB.Preload("Reviewer").
		Where("provider_id = ?", c.Param("id")).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&reviews).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reviews": reviews,
		"meta":    gin.H{"limit": limit, "offset": offset, "count": len(reviews)},
	})
}
