package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studypal/studypal/internal/retrieval"
	"github.com/studypal/studypal/internal/state"
)

// Canned responses for degraded tutoring paths.
const (
	tutorGenerationFallback = "I'm having trouble putting an explanation together right now. " +
		"Give me a moment and ask again."
	tutorNoMaterialNote = "I couldn't find anything in your uploaded study material about this, " +
		"so the answer below comes from general knowledge."
)

// tutorContextMessages is how much trailing conversation the tutor prompt
// carries for continuity.
const tutorContextMessages = 6

// Tutor answers study questions grounded in the user's uploaded material.
// It owns the tutoring loop: entering it starts a fresh episode, and the
// exit check decides when the loop hands off to analysis.
type Tutor struct {
	retriever Retriever
	gen       Generator
	exits     ExitChecker
	topK      int
	logger    *slog.Logger
}

// NewTutor creates the tutoring handler.
func NewTutor(retriever Retriever, gen Generator, exits ExitChecker, topK int, logger *slog.Logger) *Tutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tutor{
		retriever: retriever,
		gen:       gen,
		exits:     exits,
		topK:      topK,
		logger:    logger.With("agent", state.NodeTutoring),
	}
}

// Name returns the node name used for response attribution.
func (t *Tutor) Name() string { return state.NodeTutoring }

// Handle runs one tutoring turn.
//
// Entering with no active episode starts one, which also discards any
// analysis left over from a previous episode. When the exit check fires the
// handler produces no response and leaves the hand-off to the routing
// predicate; otherwise it retrieves grounding passages, generates an
// answer, and completes the turn.
func (t *Tutor) Handle(ctx context.Context, st *state.State) error {
	if !st.TutoringActive {
		st.BeginEpisode()
	}

	if t.exits.WantsExit(ctx, st) {
		t.logger.Debug("exit requested, handing off", "user_id", st.UserID)
		st.ExitRequested = true
		return nil
	}

	msg, ok := st.LastUserMessage()
	if !ok {
		// The router never sends an empty turn here; complete defensively.
		st.TurnComplete = true
		return nil
	}

	passages, err := t.retriever.Query(ctx, st.UserID, msg.Text, t.topK)
	if err != nil {
		t.logger.Warn("retrieval failed, answering ungrounded", "user_id", st.UserID, "error", err)
		passages = nil
	}

	answer, err := t.gen.Generate(ctx, t.prompt(st, msg.Text, passages))
	if err != nil {
		t.logger.Warn("tutoring generation failed", "user_id", st.UserID, "error", err)
		answer = tutorGenerationFallback
	} else if len(passages) == 0 {
		answer = tutorNoMaterialNote + "\n\n" + answer
	}

	st.AppendAssistant(t.Name(), answer)
	st.TurnComplete = true
	return nil
}

func (t *Tutor) prompt(st *state.State, question string, passages []retrieval.Passage) string {
	var b strings.Builder
	b.WriteString("You are a patient study tutor. Explain clearly, step by step, ")
	b.WriteString("and end with a short check question.\n")

	if len(passages) > 0 {
		b.WriteString("\nUse the student's study material below when it is relevant:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "[%d]", i+1)
			if p.Topic != "" {
				fmt.Fprintf(&b, " (%s)", p.Topic)
			}
			b.WriteString(" ")
			b.WriteString(p.Content)
			b.WriteString("\n")
		}
	}

	recent := st.Recent(tutorContextMessages)
	if len(recent) > 1 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range recent {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
