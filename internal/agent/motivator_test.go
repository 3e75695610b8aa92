package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/studypal/studypal/internal/log"
	"github.com/studypal/studypal/internal/quotes"
	"github.com/studypal/studypal/internal/state"
)

func TestMotivatorUsesPrimarySource(t *testing.T) {
	t.Parallel()

	primary := &fakeQuotes{quote: quotes.Quote{Text: "Keep at it", Author: "Someone"}}
	m := NewMotivator(primary, quotes.NewLocal(), nil, log.NewNop())

	st := state.New("u1")
	st.AppendUser("motivate me")

	if err := m.Handle(context.Background(), st); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msg, ok := st.LastAssistantMessage()
	if !ok {
		t.Fatal("no motivation response appended")
	}
	if msg.Agent != state.NodeMotivation {
		t.Errorf("agent = %q, want %q", msg.Agent, state.NodeMotivation)
	}
	if !strings.Contains(msg.Text, "Keep at it") {
		t.Errorf("response %q does not carry the scraped quote", msg.Text)
	}
	if !st.TurnComplete {
		t.Error("TurnComplete = false, want true")
	}
}

func TestMotivatorFallsBackWhenScrapeFails(t *testing.T) {
	t.Parallel()

	primary := &fakeQuotes{err: errors.New("site down")}
	m := NewMotivator(primary, quotes.NewLocal(), nil, log.NewNop())

	st := state.New("u1")
	st.AppendUser("motivate me")

	if err := m.Handle(context.Background(), st); err != nil {
		t.Fatalf("scrape failure must not fail the turn: %v", err)
	}
	if msg, ok := st.LastAssistantMessage(); !ok || msg.Text == "" {
		t.Error("no response despite the embedded fallback list")
	}
}

func TestMotivatorGenerationErrorUsesFixedFrame(t *testing.T) {
	t.Parallel()

	primary := &fakeQuotes{quote: quotes.Quote{Text: "Onward", Author: "A"}}
	gen := &fakeGenerator{err: errors.New("provider down")}
	m := NewMotivator(primary, quotes.NewLocal(), gen, log.NewNop())

	st := state.New("u1")
	st.AppendUser("motivate me")

	if err := m.Handle(context.Background(), st); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	msg, _ := st.LastAssistantMessage()
	if !strings.Contains(msg.Text, "Onward") {
		t.Errorf("fixed frame should still carry the quote, got %q", msg.Text)
	}
}

func TestMotivatorGeneratedResponse(t *testing.T) {
	t.Parallel()

	primary := &fakeQuotes{quote: quotes.Quote{Text: "Onward", Author: "A"}}
	gen := &fakeGenerator{out: "You've got this. As A said, onward!"}
	m := NewMotivator(primary, quotes.NewLocal(), gen, log.NewNop())

	st := state.New("u1")
	st.AppendUser("motivate me")

	if err := m.Handle(context.Background(), st); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	msg, _ := st.LastAssistantMessage()
	if msg.Text != gen.out {
		t.Errorf("response = %q, want the generated text", msg.Text)
	}
}
