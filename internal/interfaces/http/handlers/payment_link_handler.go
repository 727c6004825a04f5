package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/builders-garden/swifty/internal/domain/entities"
	domainerrors "github.com/builders-garden/swifty/internal/domain/errors"
	"github.com/builders-garden/swifty/internal/interfaces/http/response"
)

type PaymentLinkService interface {
	GetBySlug(ctx context.Context, slug string) (*entities.PaymentLink, error)
	Tokens(method entities.PaymentMethod) ([]entities.TokenDescriptor, error)
}

// PaymentLinkHandler serves payment links and the token catalog to payers
type PaymentLinkHandler struct {
	service PaymentLinkService
}

func NewPaymentLinkHandler(service PaymentLinkService) *PaymentLinkHandler {
	return &PaymentLinkHandler{service: service}
}

type tokenOption struct {
	entities.TokenDescriptor
	Key    string `json:"key"`
	Native bool   `json:"native"`
}

// ListTokens lists the selectable tokens for a payment method
// GET /api/v1/tokens?paymentMethod=ONE_TIME
func (h *PaymentLinkHandler) ListTokens(c *gin.Context) {
	method := entities.PaymentMethod(c.DefaultQuery("paymentMethod", string(entities.PaymentMethodOneTime)))

	tokens, err := h.service.Tokens(method)
	if err != nil {
		response.Error(c, domainerrors.BadRequest(err.Error()))
		return
	}

	options := make([]tokenOption, 0, len(tokens))
	for _, tok := range tokens {
		options = append(options, tokenOption{TokenDescriptor: tok, Key: tok.Key(), Native: tok.IsNative()})
	}
	response.Success(c, http.StatusOK, gin.H{
		"paymentMethod": method,
		"tokens":        options,
	})
}

// GetPaymentLink returns the public view of a payment link
// GET /api/v1/pay/:slug
func (h *PaymentLinkHandler) GetPaymentLink(c *gin.Context) {
	link, err := h.service.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			response.Error(c, domainerrors.NotFound("Payment link not found"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paymentLink": link})
}
