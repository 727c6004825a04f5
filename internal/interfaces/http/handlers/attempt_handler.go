package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/interfaces/http/response"
	"github.com/builders-garden/swifty/internal/usecases"
	"github.com/builders-garden/swifty/pkg/utils"
)

type PaymentService interface {
	Pay(ctx context.Context, in usecases.PayInput) (entities.Attempt, error)
	Cancel(attemptID uuid.UUID) error
}

type SettlementReplayService interface {
	Settle(ctx context.Context, attemptID uuid.UUID) (*entities.SettlementJournalEntry, error)
}

// AttemptHandler runs payment attempts with the checkout signer
type AttemptHandler struct {
	payments PaymentService
	replays  SettlementReplayService
}

func NewAttemptHandler(payments PaymentService, replays SettlementReplayService) *AttemptHandler {
	return &AttemptHandler{payments: payments, replays: replays}
}

// CreateAttemptRequest is the body of POST /api/v1/pay/:slug/attempts
type CreateAttemptRequest struct {
	SelectionKey     string `json:"selectionKey" binding:"required"`
	Email            string `json:"email" binding:"omitempty,email"`
	IdentityVerified bool   `json:"identityVerified"`
	AttemptID        string `json:"attemptId" binding:"omitempty,uuid"`
}

// CreateAttempt pays a link and reports the final attempt state. A failed
// attempt is returned along with the error.
// POST /api/v1/pay/:slug/attempts
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	var req CreateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	in := usecases.PayInput{
		Slug:             c.Param("slug"),
		SelectionKey:     req.SelectionKey,
		PayerEmail:       req.Email,
		IdentityVerified: req.IdentityVerified,
	}
	if req.AttemptID != "" {
		id, err := utils.ParseUUID(req.AttemptID)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid attempt ID"))
			return
		}
		in.AttemptID = &id
	}

	attempt, err := h.payments.Pay(c.Request.Context(), in)
	if err != nil {
		if !usecases.IsPaymentFailure(err) {
			response.Error(c, err)
			return
		}
		response.Failure(c, err, attempt)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"attempt": attempt})
}

// CancelAttempt cancels an in-flight attempt
// DELETE /api/v1/attempts/:id
func (h *AttemptHandler) CancelAttempt(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid attempt ID"))
		return
	}

	if err := h.payments.Cancel(id); err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Attempt is not in flight"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"attemptId": id, "cancelled": true})
}

// SettleAttempt replays the journaled settlement of an attempt
// POST /api/v1/attempts/:id/settle
func (h *AttemptHandler) SettleAttempt(c *gin.Context) {
	id, err := utils.ParseUUID(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid attempt ID"))
		return
	}

	entry, err := h.replays.Settle(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("No settlement journaled for attempt"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"settlement": entry})
}
