package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	applog "budget/internal/log"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
		{-1, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"EOF error", errors.New("unexpected EOF"), true},
		{"broken pipe error", errors.New("write: broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"validation error", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	for i := 0; i < maxFailures-1; i++ {
		client.recordFailure()
	}
	if client.isCircuitOpen() {
		t.Fatal("circuit should stay closed below the threshold")
	}
	client.recordFailure()
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should go half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", client.state)
	}

	client.recordSuccess()
	if atomic.LoadInt32(&client.state) != StateClosed || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should reset the breaker")
	}
}

func TestClient_PublishGuards(t *testing.T) {
	client := &Client{exchangeName: "test_exchange", queueName: "test_queue"}

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	_, err := client.PublishRefreshRequest(context.Background(), ReasonManual)
	if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("expected circuit breaker error, got %v", err)
	}

	client.recordSuccess()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.PublishRefreshRequest(ctx, ReasonManual); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRefreshRequestMessage(t *testing.T) {
	msg := NewRefreshRequestMessage(ReasonScheduled)
	if _, err := uuid.Parse(msg.RequestID); err != nil {
		t.Fatalf("request id %q is not a uuid", msg.RequestID)
	}
	if msg.Reason != ReasonScheduled || time.Since(msg.Timestamp) > time.Second {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if other := NewRefreshRequestMessage(ReasonScheduled); other.RequestID == msg.RequestID {
		t.Fatal("request ids must be unique")
	}
}

func TestRefreshRequestMessageFromJSON_Invalid(t *testing.T) {
	for _, body := range []string{
		`{"request_id": 12}`,
		`{"reason": "manual"}`,
		`{"request_id": "not-a-uuid"}`,
		`not json`,
	} {
		if _, err := RefreshRequestMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }

func (f *fakeAck) Nack(_ bool, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	return nil
}

func TestSettle(t *testing.T) {
	logger := applog.ForComponent(applog.ComponentAMQP)
	good, _ := NewRefreshRequestMessage(ReasonManual).ToJSON()

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		want       fakeAck
		wantCalled bool
	}{
		{"success acks", good, nil, fakeAck{acked: true}, true},
		{"handler error requeues", good, errors.New("sheets down"), fakeAck{nacked: true, requeued: true}, true},
		{"malformed is rejected", []byte("{"), nil, fakeAck{nacked: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			called := false
			settle(context.Background(), logger, tt.body, ack, func(context.Context, *RefreshRequestMessage) error {
				called = true
				return tt.handlerErr
			})
			if *ack != tt.want {
				t.Fatalf("ack = %+v, want %+v", *ack, tt.want)
			}
			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
		})
	}
}
