package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	sharedmodels "SilentFail/internal/shared/models"
)

const cronCheckPath = "/api/v1/cron/check"

// APIClient ходит в backend от имени планировщика
type APIClient struct {
	baseURL    string
	cronSecret string
	client     *http.Client
}

func NewAPIClient(baseURL, cronSecret string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cronSecret: cronSecret,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// TriggerSweep запускает проход по просроченным мониторам
func (a *APIClient) TriggerSweep(ctx context.Context) (*sharedmodels.CronCheckResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+cronCheckPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SilentFail-Worker/1.0")
	if a.cronSecret != "" {
		req.Header.Set("Authorization", "Bearer "+a.cronSecret)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendDown, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusConflict:
		return nil, ErrSweepInProgress
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrBackendDown, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, cronCheckPath)
	}

	var result sharedmodels.CronCheckResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode sweep response: %w", err)
	}

	return &result, nil
}
