package provisioning

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/resellerdesk/resellerdesk/internal/logger"
	"github.com/shopspring/decimal"
)

var csrfMetaPattern = regexp.MustCompile(`<meta\s+name=["']csrf-token["']\s+content=["']([^"']+)["']`)

// sessionPanel talks to variant B panels. Every operation logs in on a fresh
// cookie jar, reads the csrf token off the dashboard and then calls the api.
type sessionPanel struct {
	baseURL  string
	username string
	logger   *logger.Logger
}

type sessionRenewRequest struct {
	Username string `json:"username"`
	Months   int    `json:"months"`
}

type sessionRenewResponse struct {
	Result   bool            `json:"result"`
	Message  string          `json:"message"`
	ExpDate  json.RawMessage `json:"exp_date"`
	Password string          `json:"password"`
}

func newSessionPanel(baseURL, username string, logger *logger.Logger) *sessionPanel {
	return &sessionPanel{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		logger:   logger,
	}
}

// login opens an authenticated session and returns it with its csrf token
func (p *sessionPanel) login(ctx context.Context, password string) (*resty.Client, string, error) {
	client := newRestyClient()

	resp, err := client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": p.username,
			"password": password,
		}).
		Post(p.baseURL + "/login")
	if err != nil {
		return nil, "", provisioningError(err, "login to %s failed", p.baseURL)
	}
	if !resp.IsSuccess() {
		p.logger.Errorw("panel login returned non-success status",
			"base_url", p.baseURL,
			"status_code", resp.StatusCode(),
		)
		return nil, "", provisioningError(nil, "login returned status %d", resp.StatusCode())
	}

	resp, err = client.R().
		SetContext(ctx).
		Get(p.baseURL + "/dashboard")
	if err != nil {
		return nil, "", provisioningError(err, "dashboard request failed")
	}
	if !resp.IsSuccess() {
		return nil, "", provisioningError(nil, "dashboard returned status %d", resp.StatusCode())
	}

	match := csrfMetaPattern.FindSubmatch(resp.Body())
	if match == nil {
		p.logger.Errorw("csrf token not found on panel dashboard",
			"base_url", p.baseURL,
		)
		return nil, "", provisioningError(nil, "csrf token not found, login probably failed")
	}

	return client, string(match[1]), nil
}

func (p *sessionPanel) renew(ctx context.Context, password, username string, months int) (*RenewResult, error) {
	client, csrf, err := p.login(ctx, password)
	if err != nil {
		return nil, err
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("X-CSRF-TOKEN", csrf).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Accept", "application/json").
		SetBody(sessionRenewRequest{Username: username, Months: months}).
		Post(p.baseURL + "/api/lines/renew")
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

	var body sessionRenewResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, provisioningError(err, "renew response is not valid json")
	}
	if !body.Result {
		p.logger.Errorw("panel rejected renew",
			"base_url", p.baseURL,
			"message", body.Message,
		)
		return nil, provisioningError(nil, "panel rejected renew: %s", body.Message)
	}

	expiry, err := parseExpiry(body.ExpDate)
	if err != nil {
		return nil, err
	}

	result := &RenewResult{NewExpiry: expiry}
	if pw := strings.TrimSpace(body.Password); pw != "" {
		result.RotatedPassword = &pw
	}
	return result, nil
}

func (p *sessionPanel) credits(ctx context.Context, password string) (decimal.Decimal, error) {
	client, csrf, err := p.login(ctx, password)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("X-CSRF-TOKEN", csrf).
		SetHeader("Accept", "application/json").
		Get(p.baseURL + "/api/credits")
	if err != nil {
		return decimal.Zero, provisioningError(err, "credits request failed")
	}
	return decodeCredits(resp)
}
