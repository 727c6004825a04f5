package lifi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/builders-garden/swifty/internal/domain/entities"
	"github.com/builders-garden/swifty/pkg/logger"
)

const defaultTimeout = 30 * time.Second

var ErrNoRoutes = errors.New("lifi: no routes available")

// Config holds the LI.FI API settings
type Config struct {
	BaseURL    string
	APIKey     string
	Integrator string
	Slippage   float64
}

// Client talks to the LI.FI REST API. It serves both as route aggregator
// and as token price oracle.
type Client struct {
	cfg  Config
	http *fasthttp.Client
}

// NewClient creates a LI.FI client. hc may be nil.
func NewClient(cfg Config, hc *fasthttp.Client) *Client {
	if hc == nil {
		hc = &fasthttp.Client{
			Name:                "swifty",
			MaxIdleConnDuration: time.Minute,
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: hc}
}

type routesRequest struct {
	FromChainID      uint64       `json:"fromChainId"`
	FromAmount       string       `json:"fromAmount"`
	FromTokenAddress string       `json:"fromTokenAddress"`
	FromAddress      string       `json:"fromAddress"`
	ToChainID        uint64       `json:"toChainId"`
	ToTokenAddress   string       `json:"toTokenAddress"`
	ToAddress        string       `json:"toAddress"`
	Options          routeOptions `json:"options"`
}

type routeOptions struct {
	Integrator string  `json:"integrator,omitempty"`
	Slippage   float64 `json:"slippage,omitempty"`
	Order      string  `json:"order"`
}

type routesResponse struct {
	Routes []struct {
		ID          string            `json:"id"`
		ToAmount    string            `json:"toAmount"`
		ToAmountMin string            `json:"toAmountMin"`
		Steps       []json.RawMessage `json:"steps"`
	} `json:"routes"`
}

type stepResponse struct {
	ID     string `json:"id"`
	Tool   string `json:"tool"`
	Action struct {
		FromChainID uint64 `json:"fromChainId"`
		FromAmount  string `json:"fromAmount"`
		FromToken   struct {
			Address string `json:"address"`
		} `json:"fromToken"`
	} `json:"action"`
	Estimate struct {
		ApprovalAddress string `json:"approvalAddress"`
	} `json:"estimate"`
	TransactionRequest *struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		GasLimit string `json:"gasLimit"`
		ChainID  uint64 `json:"chainId"`
	} `json:"transactionRequest"`
}

type tokenResponse struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	PriceUSD string `json:"priceUSD"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Quote fetches the recommended route and populates the transaction of
// every step.
func (c *Client) Quote(ctx context.Context, req entities.RouteRequest) (*entities.Route, error) {
	if req.SourceAmount == nil || req.SourceAmount.Sign() <= 0 {
		return nil, fmt.Errorf("lifi: source amount must be positive")
	}
	body := routesRequest{
		FromChainID:      req.SourceChainID,
		FromAmount:       req.SourceAmount.String(),
		FromTokenAddress: req.SourceToken.Hex(),
		FromAddress:      req.PayerAddress.Hex(),
		ToChainID:        req.DestChainID,
		ToTokenAddress:   req.DestToken.Hex(),
		ToAddress:        req.SettlementAddress.Hex(),
		Options: routeOptions{
			Integrator: c.cfg.Integrator,
			Slippage:   c.cfg.Slippage,
			Order:      "RECOMMENDED",
		},
	}

	var routes routesResponse
	if err := c.postJSON(ctx, "/v1/advanced/routes", body, &routes); err != nil {
		return nil, err
	}
	if len(routes.Routes) == 0 {
		return nil, ErrNoRoutes
	}
	best := routes.Routes[0]

	route := &entities.Route{
		ID:                 best.ID,
		EstimatedOutput:    parseBig(best.ToAmount),
		EstimatedOutputMin: parseBig(best.ToAmountMin),
		Steps:              make([]entities.RouteStep, 0, len(best.Steps)),
	}
	for i, raw := range best.Steps {
		step, err := c.populateStep(ctx, raw)
		if err != nil {
			return nil, fmt.Errorf("lifi: step %d: %w", i, err)
		}
		route.Steps = append(route.Steps, step)
	}

	logger.Debug(ctx, "LI.FI route quoted",
		zap.String("route_id", route.ID),
		zap.Int("steps", len(route.Steps)),
	)
	return route, nil
}

func (c *Client) populateStep(ctx context.Context, raw json.RawMessage) (entities.RouteStep, error) {
	var populated stepResponse
	if err := c.do(ctx, fasthttp.MethodPost, "/v1/advanced/stepTransaction", raw, &populated); err != nil {
		return entities.RouteStep{}, err
	}
	if populated.TransactionRequest == nil {
		return entities.RouteStep{}, fmt.Errorf("missing transaction request")
	}
	txReq := populated.TransactionRequest

	step := entities.RouteStep{
		ID:         populated.ID,
		Tool:       populated.Tool,
		ChainID:    txReq.ChainID,
		To:         txReq.To,
		Value:      parseBig(txReq.Value),
		FromToken:  common.HexToAddress(populated.Action.FromToken.Address),
		FromAmount: parseBig(populated.Action.FromAmount),
	}
	if step.ChainID == 0 {
		step.ChainID = populated.Action.FromChainID
	}
	if gas := parseBig(txReq.GasLimit); gas != nil && gas.IsUint64() {
		step.GasLimit = gas.Uint64()
	}
	if txReq.Data != "" && txReq.Data != "0x" {
		data, err := hexutil.Decode(txReq.Data)
		if err != nil {
			return entities.RouteStep{}, fmt.Errorf("decode calldata: %w", err)
		}
		step.Data = data
	}
	if common.IsHexAddress(populated.Estimate.ApprovalAddress) {
		approval := common.HexToAddress(populated.Estimate.ApprovalAddress)
		step.ApprovalAddress = &approval
	}
	return step, nil
}

// TokenPriceUSD returns the USD price of one whole token
func (c *Client) TokenPriceUSD(ctx context.Context, chainID uint64, token common.Address) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("chain", strconv.FormatUint(chainID, 10))
	query.Set("token", token.Hex())

	var tok tokenResponse
	if err := c.do(ctx, fasthttp.MethodGet, "/v1/token?"+query.Encode(), nil, &tok); err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(tok.PriceUSD)
	if err != nil {
		return decimal.Zero, fmt.Errorf("lifi: invalid price %q for %s: %w", tok.PriceUSD, token.Hex(), err)
	}
	return price, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.do(ctx, fasthttp.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("x-lifi-api-key", c.cfg.APIKey)
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, defaultTimeout)
	}
	if err != nil {
		return fmt.Errorf("lifi: %s %s: %w", method, path, err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(resp.Body(), &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(resp.Body())
		}
		return fmt.Errorf("lifi: %s returned %d: %s", strings.SplitN(path, "?", 2)[0], resp.StatusCode(), apiErr.Message)
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("lifi: decode %s response: %w", path, err)
	}
	return nil
}

// parseBig accepts decimal and 0x-prefixed hex quantities
func parseBig(s string) *big.Int {
	if s == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil
	}
	return v
}
