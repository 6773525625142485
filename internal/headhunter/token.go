package headhunter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const tokenPath = "/oauth/token"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// accessToken returns a cached token while its expiry is strictly in the
// future and exchanges credentials otherwise. Concurrent refreshes collapse
// into a single exchange.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	token, expires := c.token, c.tokenExpires
	c.tokenMu.RUnlock()

	if token != "" && time.Now().Before(expires) {
		return token, nil
	}

	fresh, err, _ := c.refresh.Do("token", func() (any, error) {
		return c.exchangeToken(ctx)
	})
	if err != nil {
		return "", err
	}

	return fresh.(string), nil
}

func (c *Client) exchangeToken(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("token exchange failed", zap.String("status", resp.Status))
		return "", fmt.Errorf("%w: bad status %s", ErrAuth, resp.Status)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrAuth, err)
	}

	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.tokenMu.Lock()
	c.token = parsed.AccessToken
	c.tokenExpires = time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	c.tokenMu.Unlock()

	c.logger.Debug("got new access token", zap.Int("expires_in", parsed.ExpiresIn))

	return parsed.AccessToken, nil
}
