package handlers

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/infrastructure/settlementapi"
	"github.com/builders-garden/swifty/internal/interfaces/http/middleware"
	"github.com/builders-garden/swifty/internal/interfaces/http/response"
	"github.com/builders-garden/swifty/pkg/utils"
)

type SettlementService interface {
	SaveTransaction(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, bool, error)
	SaveSubscription(ctx context.Context, record *entities.SubscriptionRecord) (*entities.SubscriptionRecord, bool, error)
	ListTransactions(ctx context.Context, merchantID uuid.UUID, from *common.Address, page utils.Page) ([]*entities.TransactionRecord, utils.PageMeta, error)
	ListSubscriptions(ctx context.Context, merchantID uuid.UUID, page utils.Page) ([]*entities.SubscriptionRecord, utils.PageMeta, error)
}

// SettlementHandler is the settlement write API and the merchant read API
type SettlementHandler struct {
	service SettlementService
}

func NewSettlementHandler(service SettlementService) *SettlementHandler {
	return &SettlementHandler{service: service}
}

// createdStatus is 201 for a new record and 200 for a stored duplicate
func createdStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// RecordTransaction stores a one-time payment
// POST /api/public/transactions
func (h *SettlementHandler) RecordTransaction(c *gin.Context) {
	var req settlementapi.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	record, err := req.Record()
	if err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	stored, created, err := h.service.SaveTransaction(c.Request.Context(), record)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, createdStatus(created), stored)
}

// RegisterSubscription stores a recurring payment registration
// POST /api/public/subscriptions
func (h *SettlementHandler) RegisterSubscription(c *gin.Context) {
	var req settlementapi.SubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}
	record, err := req.Record()
	if err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	stored, created, err := h.service.SaveSubscription(c.Request.Context(), record)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, createdStatus(created), stored)
}

func pageParams(c *gin.Context) utils.Page {
	return utils.PageFromQuery(c.Query("page"), c.Query("limit"))
}

// ListTransactions lists the merchant's transactions, newest first
// GET /api/v1/transactions?fromAddress=0x...
func (h *SettlementHandler) ListTransactions(c *gin.Context) {
	merchantID, ok := middleware.GetMerchantID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Merchant not authenticated"))
		return
	}

	var from *common.Address
	if raw := c.Query("fromAddress"); raw != "" {
		if !common.IsHexAddress(raw) {
			response.Error(c, domainerrors.BadRequest("Invalid fromAddress"))
			return
		}
		addr := common.HexToAddress(raw)
		from = &addr
	}

	records, meta, err := h.service.ListTransactions(c.Request.Context(), merchantID, from, pageParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"transactions": records,
		"pagination":   meta,
	})
}

// ListSubscriptions lists subscriptions settling into the merchant's account
// GET /api/v1/subscriptions
func (h *SettlementHandler) ListSubscriptions(c *gin.Context) {
	merchantID, ok := middleware.GetMerchantID(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Merchant not authenticated"))
		return
	}

	records, meta, err := h.service.ListSubscriptions(c.Request.Context(), merchantID, pageParams(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"subscriptions": records,
		"pagination":    meta,
	})
}
