package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Sender is the delivery gateway capability: one message to one
// recipient. The returned receipt identifies the accepted send on the
// provider side.
type Sender interface {
	Send(ctx context.Context, phoneNumber, content string) (receiptID string, err error)
}

// mockSender simulates message delivery with a configurable success rate
type mockSender struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
}

// NewMockSender creates a fake sender for local development and tests.
// successRate is the probability of success (0.0 to 1.0), default 0.92.
func NewMockSender(successRate float64) Sender {
	if successRate <= 0 || successRate > 1.0 {
		successRate = 0.92
	}

	return &mockSender{
		successRate: successRate,
		minDelay:    50 * time.Millisecond, // Simulate network latency
		maxDelay:    200 * time.Millisecond,
	}
}

// Send simulates sending a message
func (s *mockSender) Send(ctx context.Context, phoneNumber, content string) (string, error) {
	delay := s.minDelay + time.Duration(rand.Int63n(int64(s.maxDelay-s.minDelay)))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if rand.Float64() > s.successRate {
		return "", fmt.Errorf("mock sender failed: simulated network error")
	}

	return fmt.Sprintf("mock-%d", rand.Int63()), nil
}
