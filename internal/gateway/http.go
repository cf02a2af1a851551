package gateway

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alimkdd/retry-engine/internal/domain"
	"github.com/go-resty/resty/v2"
)

const defaultGatewayTimeout = 10 * time.Second

type chargeRequest struct {
	TransactionID int64 `json:"transactionId"`
	UserID        int64 `json:"userId"`
	AttemptNumber int   `json:"attemptNumber"`
}

type chargeResponse struct {
	Success      bool   `json:"success"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

type statusResponse struct {
	Success bool `json:"success"`
}

// HTTPGateway talks to a real payment gateway over REST. Used in place of
// the Simulator when a gateway base URL is configured.
type HTTPGateway struct {
	client  *resty.Client
	baseURL string
}

func NewHTTPGateway(baseURL string) (*HTTPGateway, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewHTTPGatewayWithClient(baseURL, client)
}

func NewHTTPGatewayWithClient(baseURL string, client *resty.Client) (*HTTPGateway, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("gateway base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid gateway base url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &HTTPGateway{
		client:  client,
		baseURL: trimmed,
	}, nil
}

func (g *HTTPGateway) Charge(ctx context.Context, attempt domain.TransactionAttempt) (*Response, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("gateway is not initialized")
	}

	var parsed chargeResponse
	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chargeRequest{
			TransactionID: attempt.ID,
			UserID:        attempt.UserID,
			AttemptNumber: attempt.AttemptNumber,
		}).
		SetResult(&parsed).
		SetError(&parsed).
		Post(g.baseURL + "/charges")
	if err != nil {
		return nil, fmt.Errorf("gateway charge request failed: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("gateway returned empty response")
	}

	return &Response{
		Success:      parsed.Success,
		ErrorCode:    strings.TrimSpace(parsed.ErrorCode),
		StatusCode:   response.StatusCode(),
		ErrorMessage: strings.TrimSpace(parsed.ErrorMessage),
	}, nil
}

func (g *HTTPGateway) ConfirmStatus(ctx context.Context, transactionID int64) (bool, error) {
	if g == nil || g.client == nil {
		return false, fmt.Errorf("gateway is not initialized")
	}

	var parsed statusResponse
	response, err := g.client.R().
		SetContext(ctx).
		SetResult(&parsed).
		Get(fmt.Sprintf("%s/charges/%d/status", g.baseURL, transactionID))
	if err != nil {
		return false, fmt.Errorf("gateway status request failed: %w", err)
	}
	if response == nil || response.IsError() {
		return false, nil
	}

	return parsed.Success, nil
}
