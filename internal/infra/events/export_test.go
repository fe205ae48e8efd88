package events

import (
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/boddenberg/finance-tracker-go/internal/infra/resilience"
)

// Channel exposes the channel seam to the black-box tests.
type Channel = channel

func NewPublisherForTest(ch Channel, exchange string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) (*AMQPPublisher, error) {
	return newPublisher(ch, exchange, cb, cfg, zap.NewNop())
}
