package settlementapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"github.com/builders-garden/swifty/internal/domain/entities"
)

const (
	transactionsPath  = "/api/public/transactions"
	subscriptionsPath = "/api/public/subscriptions"
	defaultTimeout    = 15 * time.Second
)

// Client writes settlement records to a remote backend
type Client struct {
	baseURL string
	http    *fasthttp.Client
}

// NewClient creates a settlement API client. hc may be nil.
func NewClient(baseURL string, hc *fasthttp.Client) *Client {
	if hc == nil {
		hc = &fasthttp.Client{Name: "swifty"}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// TransactionRequest is the body of POST /api/public/transactions
type TransactionRequest struct {
	AttemptID   string `json:"attemptId" binding:"required,uuid"`
	UserID      string `json:"userId" binding:"required,uuid"`
	ProductID   string `json:"productId" binding:"required,uuid"`
	Hash        string `json:"hash" binding:"required,hexadecimal,len=66"`
	Amount      string `json:"amount" binding:"required,numeric"`
	FromAddress string `json:"fromAddress" binding:"required,eth_addr"`
	Timestamp   string `json:"timestamp" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// SubscriptionRequest is the body of POST /api/public/subscriptions
type SubscriptionRequest struct {
	AttemptID       string `json:"attemptId" binding:"required,uuid"`
	Address         string `json:"address" binding:"required,eth_addr"`
	ProductID       string `json:"productId" binding:"required,uuid"`
	TokenAddress    string `json:"tokenAddress" binding:"required,eth_addr"`
	TokenAmount     string `json:"tokenAmount" binding:"required,numeric"`
	MerchantAddress string `json:"merchantAddress" binding:"required,eth_addr"`
	ChainID         uint64 `json:"chainId" binding:"required"`
}

// NewTransactionRequest encodes record for the wire
func NewTransactionRequest(record *entities.TransactionRecord) TransactionRequest {
	req := TransactionRequest{
		AttemptID:   record.AttemptID.String(),
		UserID:      record.UserID.String(),
		ProductID:   record.ProductID.String(),
		Hash:        record.Hash.Hex(),
		Amount:      record.Amount.String(),
		FromAddress: record.FromAddress.Hex(),
	}
	if !record.Timestamp.IsZero() {
		req.Timestamp = record.Timestamp.UTC().Format(time.RFC3339)
	}
	return req
}

// NewSubscriptionRequest encodes record for the wire
func NewSubscriptionRequest(record *entities.SubscriptionRecord) SubscriptionRequest {
	return SubscriptionRequest{
		AttemptID:       record.AttemptID.String(),
		Address:         record.Address.Hex(),
		ProductID:       record.ProductID.String(),
		TokenAddress:    record.TokenAddress.Hex(),
		TokenAmount:     record.TokenAmount.String(),
		MerchantAddress: record.MerchantAddress.Hex(),
		ChainID:         record.ChainID,
	}
}

// Record decodes a validated request body
func (r TransactionRequest) Record() (*entities.TransactionRecord, error) {
	record := &entities.TransactionRecord{
		Hash:        common.HexToHash(r.Hash),
		FromAddress: common.HexToAddress(r.FromAddress),
	}
	var err error
	if record.AttemptID, err = uuid.Parse(r.AttemptID); err != nil {
		return nil, fmt.Errorf("attemptId: %w", err)
	}
	if record.UserID, err = uuid.Parse(r.UserID); err != nil {
		return nil, fmt.Errorf("userId: %w", err)
	}
	if record.ProductID, err = uuid.Parse(r.ProductID); err != nil {
		return nil, fmt.Errorf("productId: %w", err)
	}
	if record.Amount, err = decimal.NewFromString(r.Amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if r.Timestamp != "" {
		if record.Timestamp, err = time.Parse(time.RFC3339, r.Timestamp); err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
	}
	return record, nil
}

// Record decodes a validated request body
func (r SubscriptionRequest) Record() (*entities.SubscriptionRecord, error) {
	record := &entities.SubscriptionRecord{
		Address:         common.HexToAddress(r.Address),
		TokenAddress:    common.HexToAddress(r.TokenAddress),
		MerchantAddress: common.HexToAddress(r.MerchantAddress),
		ChainID:         r.ChainID,
	}
	var err error
	if record.AttemptID, err = uuid.Parse(r.AttemptID); err != nil {
		return nil, fmt.Errorf("attemptId: %w", err)
	}
	if record.ProductID, err = uuid.Parse(r.ProductID); err != nil {
		return nil, fmt.Errorf("productId: %w", err)
	}
	if record.TokenAmount, err = decimal.NewFromString(r.TokenAmount); err != nil {
		return nil, fmt.Errorf("tokenAmount: %w", err)
	}
	return record, nil
}

func (c *Client) RecordTransaction(ctx context.Context, record *entities.TransactionRecord) (*entities.TransactionRecord, error) {
	var stored entities.TransactionRecord
	if err := c.post(ctx, transactionsPath, record.AttemptID, NewTransactionRequest(record), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) RegisterSubscription(ctx context.Context, record *entities.SubscriptionRecord) (*entities.SubscriptionRecord, error) {
	var stored entities.SubscriptionRecord
	if err := c.post(ctx, subscriptionsPath, record.AttemptID, NewSubscriptionRequest(record), &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) post(ctx context.Context, path string, attemptID uuid.UUID, in, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Idempotency-Key", attemptID.String())
	req.SetBody(body)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, defaultTimeout)
	}
	if err != nil {
		return fmt.Errorf("settlement api: %s: %w", path, err)
	}

	// 200 is a stored duplicate of the same attempt
	switch resp.StatusCode() {
	case fasthttp.StatusCreated, fasthttp.StatusOK:
	default:
		var apiErr struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(resp.Body(), &apiErr)
		return fmt.Errorf("settlement api: %s returned %d: %s %s", path, resp.StatusCode(), apiErr.Code, apiErr.Message)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("settlement api: decode %s response: %w", path, err)
	}
	return nil
}
