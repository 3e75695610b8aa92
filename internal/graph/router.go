package graph

import (
	"context"
	"log/slog"

	"github.com/studypal/studypal/internal/state"
)

// IntentRouter assigns an intent to the latest user message.
// *intent.Router satisfies it.
type IntentRouter interface {
	Route(ctx context.Context, st *state.State) state.Intent
}

// unknownIntentResponse is the safe default for empty or malformed input.
const unknownIntentResponse = "I didn't quite catch that. Ask me a study question, " +
	"or ask for a schedule, a session analysis, or some motivation."

// routerNode is the graph's entry node: it records the intent on the state
// and picks the handler node.
type routerNode struct {
	router IntentRouter
	logger *slog.Logger
}

func (r *routerNode) Name() string { return state.NodeRouter }

func (r *routerNode) Handle(ctx context.Context, st *state.State) error {
	st.Intent = r.router.Route(ctx, st)

	switch st.Intent {
	case state.IntentTutoring:
		st.NextNode = state.NodeTutoring
	case state.IntentScheduling:
		st.NextNode = state.NodeScheduling
	case state.IntentAnalysis:
		st.NextNode = state.NodeAnalysis
	case state.IntentMotivation:
		st.NextNode = state.NodeMotivation
	default:
		// Unknown means empty or unusable input; answer safely and stop.
		st.AppendAssistant(r.Name(), unknownIntentResponse)
		st.TurnComplete = true
		st.NextNode = state.NodeEnd
	}
	return nil
}
