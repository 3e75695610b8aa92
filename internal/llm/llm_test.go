package llm

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMatchLabel(t *testing.T) {
	t.Parallel()

	labels := []string{"tutoring", "scheduling", "analysis", "motivation"}

	tests := []struct {
		name     string
		response string
		want     string
		wantErr  bool
	}{
		{"exact", "tutoring", "tutoring", false},
		{"uppercase", "SCHEDULING", "scheduling", false},
		{"trailing period", "analysis.", "analysis", false},
		{"quoted", `"motivation"`, "motivation", false},
		{"chatty", "The category is: tutoring", "tutoring", false},
		{"ambiguous", "tutoring or scheduling", "", true},
		{"unrelated", "I cannot classify this", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := matchLabel(tt.response, labels)
			if tt.wantErr {
				if !errors.Is(err, ErrNoLabel) {
					t.Errorf("matchLabel(%q) err = %v, want ErrNoLabel", tt.response, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("matchLabel(%q): %v", tt.response, err)
			}
			if got != tt.want {
				t.Errorf("matchLabel(%q) = %q, want %q", tt.response, got, tt.want)
			}
		})
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("context deadline exceeded: timeout"), true},
		{errors.New("invalid api key"), false},
		{errors.New("model not found"), false},
	}

	for _, tt := range tests {
		if got := retryableError(tt.err); got != tt.want {
			t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, Timeout: time.Hour})

	for i := 0; i < 2; i++ {
		cb.Failure()
	}
	if cb.State() != CircuitClosed {
		t.Fatalf("state after 2 failures = %v, want closed", cb.State())
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state after 3 failures = %v, want open", cb.State())
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow on open circuit = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Nanosecond,
	})

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Fatal("circuit should be open")
	}

	time.Sleep(time.Millisecond)

	// Timeout elapsed: probe allowed, circuit half-open.
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow after timeout = %v, want nil", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State())
	}

	cb.Success()
	if cb.State() != CircuitHalfOpen {
		t.Fatal("one success should not close the circuit yet")
	}
	cb.Success()
	if cb.State() != CircuitClosed {
		t.Fatal("two successes should close the circuit")
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Nanosecond})

	cb.Failure()
	time.Sleep(time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow: %v", err)
	}

	cb.Failure()
	if cb.State() != CircuitOpen {
		t.Errorf("state after half-open failure = %v, want open", cb.State())
	}
}

func TestClassifyPromptContainsLabels(t *testing.T) {
	t.Parallel()

	p := classifyPrompt("help me study", []string{"tutoring", "motivation"})
	for _, want := range []string{"tutoring", "motivation", "help me study"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q: %q", want, p)
		}
	}
}
