package provisioning

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/shopspring/decimal"
)

// tokenPanel talks to variant A panels: one bearer authenticated call per operation
type tokenPanel struct {
	baseURL string
	client  *resty.Client
	logger  *logger.Logger
}

type tokenRenewRequest struct {
	Username string `json:"username"`
	Months   int    `json:"months"`
}

type tokenRenewResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		Username  string          `json:"username"`
		ExpiresAt json.RawMessage `json:"expires_at"`
	} `json:"data"`
}

type creditsResponse struct {
	Credits *decimal.Decimal `json:"credits"`
}

func newTokenPanel(baseURL string, logger *logger.Logger) *tokenPanel {
	return &tokenPanel{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newRestyClient(),
		logger:  logger,
	}
}

func (p *tokenPanel) renew(ctx context.Context, token, username string, months int) (*RenewResult, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetBody(tokenRenewRequest{Username: username, Months: months}).
		Post(p.baseURL + "/api/v1/lines/renew")
	if err != nil {
		return nil, provisioningError(err, "renew request to %s failed", p.baseURL)
	}
	if !resp.IsSuccess() {
		p.logger.Errorw("panel renew returned non-success status",
			"base_url", p.baseURL,
			"status_code", resp.StatusCode(),
			"body", truncate(resp.String()),
		)
		return nil, provisioningError(nil, "renew returned status %d", resp.StatusCode())
	}

	var body tokenRenewResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, provisioningError(err, "renew response is not valid json")
	}
	if !body.Success {
		p.logger.Errorw("panel rejected renew",
			"base_url", p.baseURL,
			"message", body.Message,
		)
		return nil, provisioningError(nil, "panel rejected renew: %s", body.Message)
	}
	if body.Data == nil {
		return nil, provisioningError(nil, "renew response has no data")
	}

	expiry, err := parseExpiry(body.Data.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &RenewResult{NewExpiry: expiry}, nil
}

func (p *tokenPanel) credits(ctx context.Context, token string) (decimal.Decimal, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(p.baseURL + "/api/v1/credits")
	if err != nil {
		return decimal.Zero, provisioningError(err, "credits request failed")
	}
	return decodeCredits(resp)
}

func decodeCredits(resp *resty.Response) (decimal.Decimal, error) {
	if !resp.IsSuccess() {
		return decimal.Zero, provisioningError(nil, "credits returned status %d", resp.StatusCode())
	}
	var body creditsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return decimal.Zero, provisioningError(err, "credits response is not valid json")
	}
	if body.Credits == nil {
		return decimal.Zero, provisioningError(nil, "credits missing from response")
	}
	return *body.Credits, nil
}

// newRestyClient returns a client with its own cookie jar and retries disabled
func newRestyClient() *resty.Client {
	return resty.New().
		SetRetryCount(0).
		SetHeader("User-Agent", "resellerdesk/1.0")
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max]
	}
	return s
}
