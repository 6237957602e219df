package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/storefront/internal/domain"
)

type orderViewedEventData struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	ItemCount  int    `json:"item_count"`
	TotalMinor int64  `json:"total_minor"`
	Currency   string `json:"currency"`
}

// publishOrderViewed is best effort; a broker failure never fails the page.
func (s *Service) publishOrderViewed(ctx context.Context, auth domain.AuthState, order *domain.Order, total int64) {
	if s.events == nil || order == nil || auth.User == nil {
		return
	}
	occurredAt := s.nowFn().UTC()
	payload, err := json.Marshal(map[string]any{
		"event_id":           uuid.NewString(),
		"event_type":         s.cfg.OrderViewedEvent,
		"occurred_at":        occurredAt.Format(time.RFC3339),
		"source_service":     s.cfg.ServiceName,
		"schema_version":     "1.0",
		"partition_key_path": "data.user_id",
		"partition_key":      auth.User.ID,
		"data": orderViewedEventData{
			OrderID:    order.ID,
			UserID:     auth.User.ID,
			ItemCount:  len(order.Items),
			TotalMinor: total,
			Currency:   "USD",
		},
	})
	if err != nil {
		return
	}
	if err := s.events.Publish(ctx, s.cfg.OrderViewedEvent, payload, auth.User.ID); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"operation", "publish_order_viewed",
			"outcome", "failure",
			"order_id", order.ID,
			"error", err.Error(),
		)
	}
}
