package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/resellerdesk/resellerdesk/internal/config"
	ierr "github.com/resellerdesk/resellerdesk/internal/errors"
	"github.com/resellerdesk/resellerdesk/internal/httpclient"
	"github.com/resellerdesk/resellerdesk/internal/logger"
)

// Client looks up the authoritative state of a payment
type Client interface {
	GetPayment(ctx context.Context, accessToken, paymentID string) (*PaymentResponse, error)
}

type client struct {
	baseURL    string
	httpClient httpclient.Client
	logger     *logger.Logger
}

func NewClient(cfg *config.Configuration, httpClient httpclient.Client, logger *logger.Logger) Client {
	return &client{
		baseURL:    strings.TrimRight(cfg.Payments.APIBaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (c *client) GetPayment(ctx context.Context, accessToken, paymentID string) (*PaymentResponse, error) {
	if paymentID == "" {
		return nil, ierr.NewError("payment id is required").
			WithHint("Payment id is required").
			Mark(ierr.ErrValidation)
	}

	resp, err := c.httpClient.Send(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/payments/%s", c.baseURL, url.PathEscape(paymentID)),
		Headers: map[string]string{
			"Authorization": "Bearer " + accessToken,
			"Accept":        "application/json",
		},
	})
	if err != nil {
		if httpErr, ok := httpclient.IsHTTPError(err); ok {
			c.logger.Warnw("payment lookup returned non-success status",
				"payment_id", paymentID,
				"status_code", httpErr.StatusCode,
				"body", string(httpErr.Response),
			)
			if httpErr.StatusCode == http.StatusNotFound {
				return nil, ierr.WithError(err).
					WithHint("Payment not found at provider").
					Mark(ierr.ErrNotFound)
			}
		}
		return nil, ierr.WithError(err).
			WithHint("Payment provider is unavailable").
			Mark(ierr.ErrHTTPClient)
	}

	var payment PaymentResponse
	if err := json.Unmarshal(resp.Body, &payment); err != nil {
		c.logger.Warnw("payment lookup returned malformed body",
			"payment_id", paymentID,
			"error", err,
		)
		return nil, ierr.WithError(err).
			WithHint("Payment provider returned an invalid response").
			Mark(ierr.ErrHTTPClient)
	}

	return &payment, nil
}
