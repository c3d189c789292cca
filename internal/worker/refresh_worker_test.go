package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/dataset"
)

type fakeRefresher struct {
	mu      sync.Mutex
	reasons []string
	ids     []string
	empty   bool
	err     error
	calls   chan struct{}
}

func newFakeRefresher() *fakeRefresher {
	return &fakeRefresher{calls: make(chan struct{}, 16)}
}

func (f *fakeRefresher) Refresh(_ context.Context, requestID, reason string) (*dataset.Report, error) {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.ids = append(f.ids, requestID)
	f.mu.Unlock()
	select {
	case f.calls <- struct{}{}:
	default:
	}
	return &dataset.Report{}, f.err
}

func (f *fakeRefresher) NeedsInitialLoad(context.Context) (bool, error) {
	return f.empty, nil
}

func TestHandleRefreshMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"success", nil, false},
		{"empty source is acknowledged", fmt.Errorf("%w: none", core.ErrEmptyDataset), false},
		{"other errors requeue", errors.New("sheets down"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newFakeRefresher()
			r.err = tt.err
			w := NewRefreshWorker(r, 0)
			msg := amqp.NewRefreshRequestMessage(amqp.ReasonManual)

			err := w.HandleRefreshMessage(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(r.ids) != 1 || r.ids[0] != msg.RequestID {
				t.Fatalf("refresh ids = %v", r.ids)
			}
		})
	}
}

func TestInitialLoad(t *testing.T) {
	r := newFakeRefresher()
	w := NewRefreshWorker(r, 0)
	if err := w.InitialLoad(context.Background()); err != nil {
		t.Fatalf("InitialLoad: %v", err)
	}
	if len(r.reasons) != 0 {
		t.Fatalf("loaded store must not refresh: %v", r.reasons)
	}

	r.empty = true
	if err := w.InitialLoad(context.Background()); err != nil {
		t.Fatalf("InitialLoad: %v", err)
	}
	if len(r.reasons) != 1 || r.reasons[0] != amqp.ReasonStartup {
		t.Fatalf("reasons = %v", r.reasons)
	}
}

func TestRunTicks(t *testing.T) {
	r := newFakeRefresher()
	w := NewRefreshWorker(r, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-r.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled refresh did not run")
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reason := range r.reasons {
		if reason != amqp.ReasonScheduled {
			t.Fatalf("unexpected reason %q", reason)
		}
	}
}

func TestRunWithoutInterval(t *testing.T) {
	w := NewRefreshWorker(newFakeRefresher(), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run = %v", err)
	}
}
