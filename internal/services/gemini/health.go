package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ModelInfo is the subset of model metadata returned by GET /v1beta/models/{model}.
type ModelInfo struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	InputTokenLimit  int    `json:"inputTokenLimit"`
	OutputTokenLimit int    `json:"outputTokenLimit"`
}

// HealthCheck verifies the API key by fetching metadata for model. It
// generates no content and consumes no tokens.
func (c *Client) HealthCheck(ctx context.Context, model string) (ModelInfo, error) {
	const op = "gemini health"
	model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if model == "" {
		return ModelInfo{}, fmt.Errorf("%s: model required", op)
	}
	endpoint, err := c.endpoint("v1beta", "models", model)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("%s: build url: %w", op, err)
	}
	body, err := c.doWithRetry(ctx, op, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return ModelInfo{}, err
	}
	var info ModelInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return ModelInfo{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return info, nil
}
