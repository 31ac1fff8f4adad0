package notifications

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"messaging-service/internal/observability"
)

// BreakerSink stops calling a failing sink for a while so a dead broker does
// not add latency to every send.
type BreakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerSink(next Sink, maxFailures uint32, openTimeout time.Duration, logger *zap.Logger) *BreakerSink {
	if maxFailures == 0 {
		maxFailures = 1
	}
	settings := gobreaker.Settings{
		Name:    "notification-sink",
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &BreakerSink{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerSink) Emit(ctx context.Context, event Event) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Emit(ctx, event)
	})
	if err != nil {
		observability.IncNotificationError(event.Type)
	}
	return err
}

// State reports the breaker state for debug output.
func (b *BreakerSink) State() string {
	return b.cb.State().String()
}
