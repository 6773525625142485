package headhunter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/akozyrev/hh-scout/internal/utils"
	"go.uber.org/zap"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip, deflate, br"
)

// getJSON makes a rate-limited GET request to the hh.ru API and decodes the
// response into target. A "too many requests" reply is retried once after a
// fixed backoff; the second one is an error.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, target any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+path, nil)
		if err != nil {
			return err
		}

		c.setHeaders(req, token)
		if q != nil {
			req.URL.RawQuery = q.Encode()
		}

		c.logger.Debug("make request", zap.String("url", req.URL.String()))

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= 1 {
				return fmt.Errorf("request limit exceeded after retry: %s", req.URL.Path)
			}

			c.logger.Warn("request limit exceeded, backing off",
				zap.String("path", req.URL.Path),
				zap.Duration("backoff", tooManyRequestsBackoff),
			)
			if err := utils.WaitFor(ctx, tooManyRequestsBackoff); err != nil {
				return err
			}
			continue
		}

		err = parseJSONBody(resp, target)
		resp.Body.Close()
		return err
	}
}

func parseJSONBody(resp *http.Response, target any) error {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}

func (c *Client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept-Encoding", contentEncoding)
	req.Header.Set("Content-Type", contentType)
}
