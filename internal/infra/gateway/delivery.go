package gateway

import (
	"context"
	"fmt"

	"telegram-media-courier/internal/domain/model"
	"telegram-media-courier/internal/domain/ports/adapter"
	"telegram-media-courier/internal/infra/resilience"

	"github.com/rs/zerolog"
)

// DeliveryGateway shields the messaging destination with its own breaker and
// limiter instance, separate from retrieval. MaxFileSize caps what the
// destination accepts; oversized items fail without an external call.
type DeliveryGateway struct {
	delivery    adapter.MediaDeliveryAdapter
	staging     adapter.StagingStore
	maxFileSize int64
	guard       *guard
}

func NewDeliveryGateway(
	delivery adapter.MediaDeliveryAdapter,
	staging adapter.StagingStore,
	maxFileSize int64,
	limiter *resilience.RateLimiter,
	breaker *resilience.CircuitBreaker,
	retry resilience.RetryPolicy,
	logger *zerolog.Logger,
) *DeliveryGateway {
	gwLog := logger.With().Str("component", "DeliveryGateway").Logger()
	return &DeliveryGateway{
		delivery:    delivery,
		staging:     staging,
		maxFileSize: maxFileSize,
		guard: &guard{
			name:    "delivery",
			class:   "destination",
			limiter: limiter,
			breaker: breaker,
			retry:   retry,
			log:     &gwLog,
		},
	}
}

// Deliver sends one staged item to the destination chat and returns the
// destination delivery id. The staged content is NOT released here: the
// orchestrator owns the release so it happens exactly once on every exit
// path, success or failure.
func (g *DeliveryGateway) Deliver(ctx context.Context, chatID int64, item *model.MediaItem) (string, *Failure) {
	if g.maxFileSize > 0 && item.SizeBytes > g.maxFileSize {
		return "", &Failure{
			Kind: FailureDelivery,
			Cause: fmt.Errorf("file %s is too large (%.1fMB) for the destination",
				item.Filename, float64(item.SizeBytes)/(1024*1024)),
		}
	}

	var deliveryID string
	fail := g.guard.execute(ctx, FailureDelivery, func(ctx context.Context) error {
		rc, size, err := g.staging.Open(ctx, item.StagingKey)
		if err != nil {
			return err
		}
		defer rc.Close()
		deliveryID, err = g.delivery.Deliver(ctx, adapter.Delivery{
			ChatID:   chatID,
			Filename: item.Filename,
			Size:     size,
			Content:  rc,
			Caption:  item.Filename,
		})
		return err
	})
	if fail != nil {
		return "", fail
	}
	return deliveryID, nil
}
