package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// doRequest posts a chat request with retry on transient failures. It
// returns the parsed response and how many attempts were made.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, orReq *openRouterRequest) (*openRouterResponse, int, error) {
	var resp *openRouterResponse
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++

			bodyBytes, err := json.Marshal(orReq)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("marshal request: %w", err))
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
			httpReq.Header.Set("HTTP-Referer", "https://github.com/proseforge/redline")
			httpReq.Header.Set("X-Title", "Redline")

			httpResp, err := c.client.Do(httpReq)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			respBody, err := io.ReadAll(httpResp.Body)
			httpResp.Body.Close()
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			if httpResp.StatusCode != http.StatusOK {
				err := fmt.Errorf("OpenRouter error (status %d): %s", httpResp.StatusCode, truncateBody(respBody))
				if !retryableStatus(httpResp.StatusCode) {
					return retry.Unrecoverable(err)
				}
				return err
			}

			var orResp openRouterResponse
			if err := json.Unmarshal(respBody, &orResp); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}

			// API-level errors arrive with a 200 status; only a few are
			// worth retrying.
			if orResp.Error != nil {
				err := fmt.Errorf("OpenRouter API error: %s", orResp.Error.Message)
				switch fmt.Sprintf("%v", orResp.Error.Code) {
				case "overloaded", "rate_limit_exceeded", "500", "502", "503":
					return err
				}
				return retry.Unrecoverable(err)
			}
			if len(orResp.Choices) == 0 {
				return fmt.Errorf("empty choices in response (model=%s, id=%s)", orResp.Model, orResp.ID)
			}

			resp = &orResp
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.MaxJitter(500*time.Millisecond),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, attempts, err
	}
	return resp, attempts, nil
}

// retryableStatus reports whether an HTTP status is worth another attempt.
func retryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	case 520, 521, 522, 523, 524: // Cloudflare
		return true
	default:
		return statusCode >= 500
	}
}

// classifyError buckets a transport error for the failure taxonomy.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return "quota"
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") || strings.Contains(msg, "no such host"):
		return "network"
	default:
		return "http_error"
	}
}

func truncateBody(body []byte) string {
	const maxLen = 512
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
