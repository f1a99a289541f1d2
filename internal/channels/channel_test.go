package channels

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nextlevelbuilder/browserbot/internal/bus"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name   string
		allow  []string
		sender string
		want   bool
	}{
		{"empty list allows all", nil, "U1", true},
		{"exact match", []string{"U1", "U2"}, "U2", true},
		{"at prefix", []string{"@U1"}, "U1", true},
		{"not listed", []string{"U1"}, "U9", false},
		{"empty sender with list", []string{"U1"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBaseChannel("slack", tt.allow)
			if got := c.IsAllowed(tt.sender); got != tt.want {
				t.Errorf("IsAllowed(%q) = %v, want %v", tt.sender, got, tt.want)
			}
		})
	}
}

func TestHandleMessage(t *testing.T) {
	c := NewBaseChannel("slack", nil)

	// No handler yet: dropped without error.
	if err := c.HandleMessage(context.Background(), bus.InboundMessage{EventID: "E0"}); err != nil {
		t.Fatalf("HandleMessage without handler: %v", err)
	}

	var got []bus.InboundMessage
	c.SetHandler(func(_ context.Context, msg bus.InboundMessage) error {
		got = append(got, msg)
		return nil
	})
	if err := c.HandleMessage(context.Background(), bus.InboundMessage{EventID: "E1"}); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(got) != 1 || got[0].EventID != "E1" || got[0].Channel != "slack" {
		t.Errorf("handler got %+v, want one message from slack", got)
	}
}

func TestRunningState(t *testing.T) {
	c := NewBaseChannel("slack", nil)
	if c.IsRunning() {
		t.Fatal("new channel should not be running")
	}
	c.SetRunning(true)
	if !c.IsRunning() {
		t.Error("SetRunning(true) not reflected")
	}
}

func TestSenderRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewSenderRateLimiter(2, time.Minute)
	r.now = func() time.Time { return now }

	for i, want := range []bool{true, true, false} {
		if got := r.Allow("U1"); got != want {
			t.Errorf("Allow #%d = %v, want %v", i+1, got, want)
		}
	}
	if !r.Allow("U2") {
		t.Error("other sender should have its own budget")
	}

	now = now.Add(time.Minute)
	if !r.Allow("U1") {
		t.Error("budget should reset after the window")
	}
}

func TestSenderRateLimiterDisabled(t *testing.T) {
	r := NewSenderRateLimiter(0, time.Minute)
	if r != nil {
		t.Fatal("maxHits 0 should return nil limiter")
	}
	for i := 0; i < 100; i++ {
		if !r.Allow("U1") {
			t.Fatal("nil limiter must allow everything")
		}
	}
}

func TestSenderRateLimiterBounded(t *testing.T) {
	r := NewSenderRateLimiter(1, time.Hour)
	for i := 0; i < maxTrackedSenders+10; i++ {
		r.Allow(time.Duration(i).String())
	}
	if n := len(r.entries); n > maxTrackedSenders {
		t.Errorf("tracked senders = %d, want <= %d", n, maxTrackedSenders)
	}
}

type codedErr struct{ code string }

func (e codedErr) Error() string     { return "failed: " + e.code }
func (e codedErr) ErrorCode() string { return e.code }

func TestErrorCode(t *testing.T) {
	if got := ErrorCode(fmt.Errorf("send: %w", codedErr{"channel_not_found"})); got != "channel_not_found" {
		t.Errorf("ErrorCode(wrapped) = %q, want channel_not_found", got)
	}
	if got := ErrorCode(errors.New("plain")); got != "" {
		t.Errorf("ErrorCode(plain) = %q, want empty", got)
	}
}
