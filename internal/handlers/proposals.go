package handlers

import (
	"net/http"

	"github.com/clapserv/backend/internal/database"
	"github.com/clapserv/backend/internal/errors"
	"github.com/clapserv/backend/internal/models"
	"github.com/clapserv/backend/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubmitProposal submits a provider's bid on an open request
// POST /api/v1/requests/:id/proposals
func (h *Handlers) SubmitProposal(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var request models.ServiceRequest
	if err := database.DB.Where("id = ?", c.Param("id")).First(&request).Error; err != nil {
		util.RespondDatabaseError(c, err, "request")
		return
	}

	if request.Status != models.RequestStatusOpen {
		util.RespondBadRequest(c, "request is not open for proposals")
		return
	}

	if request.BuyerID == user.ID {
		util.RespondBadRequest(c, "cannot bid on your own request")
		return
	}

	var profile models.ProviderProfile
	if err := database.DB.Where("user_id = ? AND is_active = true", user.ID).First(&profile).Error; err != nil {
		util.RespondForbidden(c, "active provider profile required")
		return
	}

	if !profile.Skills.Contains(request.CategoryID) {
		util.RespondForbidden(c, "provider does not offer this service category")
		return
	}

	var req struct {
		AmountCents int64  `json:"amount_cents" binding:"required,min=1"`
		Message     string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	proposal := models.Proposal{
		RequestID:   request.ID,
		ProviderID:  user.ID,
		AmountCents: req.AmountCents,
		Message:     req.Message,
		Status:      models.ProposalStatusPending,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&proposal).Error; err != nil {
			return err
		}
		return tx.Model(&request).
			UpdateColumn("proposal_count", gorm.Expr("proposal_count + 1")).Error
	})
	if err != nil {
		if errors.IsUniqueViolation(err) {
			util.RespondWithAPIError(c, errors.AlreadyExists("proposal"))
			return
		}
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	h.dispatcher.NotifyProposalReceived(c.Request.Context(), &request, &proposal)

	c.JSON(http.StatusCreated, gin.H{"proposal": proposal})
}

// ListProposals lists proposals on a request. Only the owning buyer sees them.
// GET /api/v1/requests/:id/proposals
func (h *Handlers) ListProposals(c *gin.Context) {
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
		util.RespondForbidden(c, "only the request owner can view proposals")
		return
	}

	var proposals []models.Proposal
	err := database.DB.Preload("Provider").Preload("Provider.ProviderProfile").
		Where("request_id = ?", request.ID).
		Order("created_at ASC").Find(&proposals).Error
	if err != nil {
		util.RespondDatabaseError(c, err, "proposals")
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// ListMyProposals lists the authenticated provider's proposals
// GET /api/v1/proposals/mine
func (h *Handlers) ListMyProposals(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.PaginationParams(c, 20, 100)

	query := database.DB.Preload("Request").Preload("Request.Category").
		Where("provider_id = ?", user.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var proposals []models.Proposal
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&proposals).Error; err != nil {
		util.RespondDatabaseError(c, err, "proposals")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"proposals": proposals,
		"meta":      gin.H{"limit": limit, "offset": offset, "count": len(proposals)},
	})
}

// AcceptProposal accepts a pending proposal: the request closes to new
// bids, sibling proposals are rejected, and a project is created, all in
// one transaction
// POST /api/v1/proposals/:id/accept
func (h *Handlers) AcceptProposal(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var proposal models.Proposal
	if err := database.DB.Preload("Request").Where("id = ?", c.Param("id")).First(&proposal).Error; err != nil {
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	if proposal.Request.BuyerID != user.ID {
		util.RespondForbidden(c, "only the request owner can accept proposals")
		return
	}

	if proposal.Status != models.ProposalStatusPending {
		util.RespondBadRequest(c, "proposal is not pending")
		return
	}

	if proposal.Request.Status != models.RequestStatusOpen {
		util.RespondBadRequest(c, "request is no longer open")
		return
	}

	var rejectedSiblings []models.Proposal
	project := models.Project{
		RequestID:         proposal.RequestID,
		ProposalID:        proposal.ID,
		BuyerID:           user.ID,
		ProviderID:        proposal.ProviderID,
		AgreedAmountCents: proposal.AmountCents,
		Status:            models.ProjectStatusActive,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		// Flipping the request out of open is the serialization point:
		// with two concurrent accepts, only one update finds an open row
		res := tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND status = ?", proposal.RequestID, models.RequestStatusOpen).
			Update("status", models.RequestStatusMatched)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.BadRequest("request is no longer open")
		}

		res = tx.Model(&models.Proposal{}).
			Where("id = ? AND status = ?", proposal.ID, models.ProposalStatusPending).
			Update("status", models.ProposalStatusAccepted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.BadRequest("proposal is not pending")
		}

		if err := tx.Where("request_id = ? AND id != ? AND status = ?",
			proposal.RequestID, proposal.ID, models.ProposalStatusPending).
			Find(&rejectedSiblings).Error; err != nil {
			return err
		}
		if len(rejectedSiblings) > 0 {
			if err := tx.Model(&models.Proposal{}).
				Where("request_id = ? AND id != ? AND status = ?",
					proposal.RequestID, proposal.ID, models.ProposalStatusPending).
				Update("status", models.ProposalStatusRejected).Error; err != nil {
				return err
			}
		}

		return tx.Create(&project).Error
	})
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			util.RespondWithAPIError(c, apiErr)
			return
		}
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	proposal.Status = models.ProposalStatusAccepted
	h.dispatcher.NotifyProposalDecision(c.Request.Context(), &proposal, true, project.ID)
	for i := range rejectedSiblings {
		rejectedSiblings[i].Status = models.ProposalStatusRejected
		h.dispatcher.NotifyProposalDecision(c.Request.Context(), &rejectedSiblings[i], false, "")
	}

	c.JSON(http.StatusOK, gin.H{
		"proposal": proposal,
		"project":  project,
	})
}

// RejectProposal rejects a pending proposal
// POST /api/v1/proposals/:id/reject
func (h *Handlers) RejectProposal(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var proposal models.Proposal
	if err := database.DB.Preload("Request").Where("id = ?", c.Param("id")).First(&proposal).Error; err != nil {
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	if proposal.Request.BuyerID != user.ID {
		util.RespondForbidden(c, "only the request owner can reject proposals")
		return
	}

	if proposal.Status != models.ProposalStatusPending {
		util.RespondBadRequest(c, "proposal is not pending")
		return
	}

	if err := database.DB.Model(&proposal).Update("status", models.ProposalStatusRejected).Error; err != nil {
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	proposal.Status = models.ProposalStatusRejected
	h.dispatcher.NotifyProposalDecision(c.Request.Context(), &proposal, false, "")

	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}

// WithdrawProposal lets a provider withdraw their own pending proposal
// POST /api/v1/proposals/:id/withdraw
func (h *Handlers) WithdrawProposal(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var proposal models.Proposal
	if err := database.DB.Where("id = ?", c.Param("id")).First(&proposal).Error; err != nil {
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	if proposal.ProviderID != user.ID {
		util.RespondForbidden(c, "only the proposal owner can withdraw it")
		return
	}

	if proposal.Status != models.ProposalStatusPending {
		util.RespondBadRequest(c, "proposal is not pending")
		return
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&proposal).Update("status", models.ProposalStatusWithdrawn).Error; err != nil {
			return err
		}
		return tx.Model(&models.ServiceRequest{}).
			Where("id = ? AND proposal_count > 0", proposal.RequestID).
			UpdateColumn("proposal_count", gorm.Expr("proposal_count - 1")).Error
	})
	if err != nil {
		util.RespondDatabaseError(c, err, "proposal")
		return
	}

	proposal.Status = models.ProposalStatusWithdrawn
	c.JSON(http.StatusOK, gin.H{"proposal": proposal})
}
