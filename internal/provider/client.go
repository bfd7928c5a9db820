// Package provider talks to the identity-verification provider's
// result-retrieval endpoint.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"identity_api_gateway/internal/identity"
)

// resultCodeOK is the provider's only success code.
const resultCodeOK = "2000"

// Client exchanges the one-time result token for the still-encrypted
// identity payload.
type Client interface {
	FetchResult(ctx context.Context, token string) (string, error)
}

type client struct {
	http      *http.Client
	resultURL string
	logger    *zap.Logger
}

// NewClient builds a provider client with a bounded request timeout; the
// result fetch must never block an in-flight callback indefinitely.
func NewClient(resultURL string, timeout time.Duration, logger *zap.Logger) Client {
	return &client{
		http:      &http.Client{Timeout: timeout},
		resultURL: resultURL,
		logger:    logger,
	}
}

type resultResponse struct {
	ResultCode      string `json:"resultCode"`
	ResultMsg       string `json:"resultMsg"`
	EncryptedResult string `json:"encryptMOKResult"`
}

func (c *client) FetchResult(ctx context.Context, token string) (string, error) {
	form := url.Values{"data": {token}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resultURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build result request: %v", identity.ErrProviderCommunication, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("provider result request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", identity.ErrProviderCommunication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("provider result request returned unexpected status", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: unexpected status %d", identity.ErrProviderCommunication, resp.StatusCode)
	}

	var result resultResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.Error("provider result response is malformed", zap.Error(err))
		return "", fmt.Errorf("%w: malformed response: %v", identity.ErrProviderCommunication, err)
	}

	if result.ResultCode != resultCodeOK {
		c.logger.Warn("provider rejected verification",
			zap.String("result_code", result.ResultCode),
			zap.String("result_msg", result.ResultMsg))
		if result.ResultMsg != "" {
			return "", fmt.Errorf("%w: %s (code %s)", identity.ErrProviderRejected, result.ResultMsg, result.ResultCode)
		}
		return "", fmt.Errorf("%w: code %s", identity.ErrProviderRejected, result.ResultCode)
	}

	return result.EncryptedResult, nil
}
