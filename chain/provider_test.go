package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/folajindayo/zoracle-telegram-sub001/config"
)

func TestEndpointForAttempt_FailoverRotation(t *testing.T) {
	p := NewProviderManager(config.ProviderConfig{
		WSEndpoint:  "wss://primary",
		WSFallbacks: []string{"wss://fb0", "wss://fb1", "wss://fb2"},
	}, nil)

	cases := []struct {
		count int
		want  string
	}{
		{0, "wss://primary"},
		{1, "wss://fb0"},
		{2, "wss://fb1"},
		{3, "wss://fb2"},
		{4, "wss://fb0"},
		{7, "wss://fb2"},
	}
	for _, tc := range cases {
		p.failoverCount = tc.count
		if got := p.endpointForAttempt(); got != tc.want {
			t.Fatalf("count %d: expected %s, got %s", tc.count, tc.want, got)
		}
	}
}

func TestEndpointForAttempt_NoFallbacks(t *testing.T) {
	p := NewProviderManager(config.ProviderConfig{WSEndpoint: "wss://only"}, nil)

	for _, count := range []int{0, 1, 5} {
		p.failoverCount = count
		if got := p.endpointForAttempt(); got != "wss://only" {
			t.Fatalf("count %d: expected primary, got %s", count, got)
		}
	}
}

// A reconnect can land on a fallback that rejects eth_subscribe while
// the read loop is already running. The read loop must then hand the
// feed to the poll loop instead of blocking on a silent connection.
func TestReadLoop_HandsOffToPollingAfterFailover(t *testing.T) {
	p := NewProviderManager(config.ProviderConfig{
		WSEndpoint:           "wss://primary",
		BlockPollIntervalSec: 3600,
	}, nil)
	p.setPollMode(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.wg.Add(1)
	go p.readLoop(ctx)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	// The poll loop must be running, so the wait group stays open.
	select {
	case <-done:
		t.Fatal("loops exited without starting the poll loop")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not stop on cancellation")
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"status 429", errors.New("429 Too Many Requests"), true},
		{"message variant", errors.New("rpc error: too many requests"), true},
		{"rate limit phrase", errors.New("daily rate limit exceeded"), true},
		{"request limit phrase", errors.New("request limit reached"), true},
		{"transport error", errors.New("read: connection reset by peer"), false},
		{"subscription unsupported", errors.New("notifications not supported"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
