package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.BaseDelay = time.Microsecond
	return p
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), zap.NewNop(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v after eventual success", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy().Do(context.Background(), zap.NewNop(), "test", func() error {
		calls++
		return errors.New("connection reset")
	})
	if err == nil {
		t.Fatal("exhausted retries returned nil")
	}
	// Initial call plus MaxAttempts retries.
	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
}

func TestDoNeverRetriesRejections(t *testing.T) {
	calls := 0
	rejection := &APIError{Status: 400, Code: -2019, Msg: "Margin is insufficient."}
	err := fastPolicy().Do(context.Background(), zap.NewNop(), "test", func() error {
		calls++
		return rejection
	})
	if !errors.Is(err, rejection) {
		t.Fatalf("err = %v, want the rejection itself", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, an exchange rejection must not be retried", calls)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultRetryPolicy()
	p.BaseDelay = time.Minute // would hang without the ctx check
	err := p.Do(ctx, zap.NewNop(), "test", func() error {
		return errors.New("connection reset")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestIsOrderNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&APIError{Status: 400, Code: -2011, Msg: "Unknown order sent."}, true},
		{&APIError{Status: 400, Code: -2013, Msg: "Order does not exist."}, true},
		{&APIError{Status: 400, Code: -1022, Msg: "Signature invalid."}, false},
		{errors.New("timeout"), false},
		{errors.Wrap(&APIError{Code: -2013}, "cancel order"), true},
	}
	for _, tt := range tests {
		if got := IsOrderNotFound(tt.err); got != tt.want {
			t.Errorf("IsOrderNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	if retryable(nil) {
		t.Fatal("nil error classified retryable")
	}
	if retryable(&APIError{Status: 400, Code: -1102}) {
		t.Fatal("api rejection classified retryable")
	}
	if !retryable(errors.New("dial tcp: i/o timeout")) {
		t.Fatal("transport error classified final")
	}
}
