package dlq

import (
	"testing"
	"time"

	"github.com/costwatch/costwatch/internal/config"
)

func TestFixedBackoff(t *testing.T) {
	b := FixedBackoff{Base: 5 * time.Second}
	for attempt := 0; attempt < 5; attempt++ {
		if got := b.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %s, expected 5s", attempt, got)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	b := LinearBackoff{Base: time.Second, Increment: 2 * time.Second, Max: 6 * time.Second}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 3 * time.Second},
		{2, 5 * time.Second},
		{3, 6 * time.Second}, // capped
		{10, 6 * time.Second},
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %s, expected %s", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Multiplier: 2}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %s, expected %s", tc.attempt, got, tc.want)
		}
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second, Multiplier: 10, Max: 30 * time.Second}
	if got := b.Delay(5); got != 30*time.Second {
		t.Errorf("Delay(5) = %s, expected capped 30s", got)
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second, Multiplier: 2, Jitter: true}
	for i := 0; i < 100; i++ {
		got := b.Delay(2) // nominal 4s
		if got < 3200*time.Millisecond || got > 4800*time.Millisecond {
			t.Fatalf("jittered delay %s outside 4s +/- 20%%", got)
		}
	}
}

func TestBackoffFromConfig(t *testing.T) {
	fixed := BackoffFromConfig(&config.BackoffConfig{Strategy: "fixed", Base: time.Second})
	if _, ok := fixed.(FixedBackoff); !ok {
		t.Errorf("strategy fixed gave %T", fixed)
	}

	linear := BackoffFromConfig(&config.BackoffConfig{Strategy: "linear", Base: time.Second})
	if _, ok := linear.(LinearBackoff); !ok {
		t.Errorf("strategy linear gave %T", linear)
	}

	def := BackoffFromConfig(&config.BackoffConfig{Strategy: "something-else", Base: time.Second, Multiplier: 2})
	if _, ok := def.(ExponentialBackoff); !ok {
		t.Errorf("unknown strategy should default to exponential, gave %T", def)
	}
}
