package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"hubgate/internal/domain"
)

// HistoryClient asks the platform to aggregate history server side.
type HistoryClient struct {
	http   *resty.Client
	logger *slog.Logger
}

func NewHistoryClient(cfg Config, logger *slog.Logger) *HistoryClient {
	return &HistoryClient{
		http:   newRESTClient(cfg.HistoryBaseURL, cfg.APIKey, cfg.Timeout),
		logger: logger,
	}
}

type historyRequest struct {
	UserID   int64         `json:"userId"`
	EntityID string        `json:"entityId"`
	Bucket   domain.Bucket `json:"bucket"`
}

func (c *HistoryClient) FetchHistory(ctx context.Context, userID int64, entityID string, bucket domain.Bucket) (*domain.HistoryResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(historyRequest{UserID: userID, EntityID: entityID, Bucket: bucket}).
		Post("/api/admin/monitoring/history")
	if err != nil {
		return nil, fmt.Errorf("requesting history: %w", err)
	}
	if !isSuccess(resp.StatusCode()) {
		c.logger.Warn("history request rejected", "entity_id", entityID, "status", resp.StatusCode())
		return nil, fmt.Errorf("requesting history: status %d", resp.StatusCode())
	}

	var result domain.HistoryResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decoding history: %w", err)
	}
	if result.Points == nil {
		result.Points = []domain.HistoryPoint{}
	}
	return &result, nil
}
