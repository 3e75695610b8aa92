// Package graph wires the intent router, the four agent handlers, and the
// post-handler routing predicates into the orchestration state machine.
//
// One inbound message drives one traversal from the router node to the end
// node. A traversal may pass through several nodes (tutoring hand-off to
// analysis, analysis hand-off to scheduling); the hop ceiling is the
// defensive backstop that bounds it independently of the routing flags.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/studypal/studypal/internal/config"
	"github.com/studypal/studypal/internal/intent"
	"github.com/studypal/studypal/internal/state"
)

// ForcedTerminationResponse is returned when the hop ceiling trips. The
// ceiling tripping means a routing bug, not a transient fault, so the event
// is logged at error level for operators.
const ForcedTerminationResponse = "I got tangled up routing that one. Let's pick it up in a new message."

// forcedAgent attributes the forced-termination response.
const forcedAgent = "system"

// Handler is one node of the graph. Handle mutates the shared state in
// place: it appends at most one assistant response and records the flags
// the routing predicates read.
type Handler interface {
	Name() string
	Handle(ctx context.Context, st *state.State) error
}

// Engine drives traversals of the orchestration graph.
type Engine struct {
	handlers map[string]Handler
	maxHops  int
	logger   *slog.Logger
}

// New builds the engine. router becomes the entry node; the handlers are
// registered under their own names, which must cover the tutoring,
// analysis, scheduling, and motivation nodes.
func New(router IntentRouter, maxHops int, logger *slog.Logger, handlers ...Handler) (*Engine, error) {
	if router == nil {
		return nil, fmt.Errorf("intent router is required")
	}
	if maxHops <= 0 {
		maxHops = config.DefaultMaxHops
	}
	if logger == nil {
		logger = slog.Default()
	}

	byName := map[string]Handler{
		state.NodeRouter: &routerNode{router: router, logger: logger},
	}
	for _, h := range handlers {
		if _, dup := byName[h.Name()]; dup {
			return nil, fmt.Errorf("duplicate handler for node %q", h.Name())
		}
		byName[h.Name()] = h
	}
	for _, node := range []string{state.NodeTutoring, state.NodeAnalysis, state.NodeScheduling, state.NodeMotivation} {
		if _, ok := byName[node]; !ok {
			return nil, fmt.Errorf("missing handler for node %q", node)
		}
	}

	return &Engine{
		handlers: byName,
		maxHops:  maxHops,
		logger:   logger.With("component", "graph"),
	}, nil
}

// Run executes one traversal from the router node to the end node.
//
// Handler errors abort the traversal and propagate; external collaborator
// failures are already absorbed inside the handlers, so an error here is an
// infrastructure or programming fault. Exceeding the hop ceiling never
// propagates: the traversal is force-terminated with a generic response.
func (e *Engine) Run(ctx context.Context, st *state.State) error {
	node := state.NodeRouter
	for hop := 0; node != state.NodeEnd; hop++ {
		if hop >= e.maxHops {
			e.logger.Error("hop ceiling exceeded, forcing termination",
				"node", node, "max_hops", e.maxHops, "user_id", st.UserID)
			st.AppendAssistant(forcedAgent, ForcedTerminationResponse)
			st.TurnComplete = true
			st.NextNode = state.NodeEnd
			return nil
		}

		h, ok := e.handlers[node]
		if !ok {
			return fmt.Errorf("no handler registered for node %q", node)
		}

		st.NextNode = ""
		if err := h.Handle(ctx, st); err != nil {
			return fmt.Errorf("node %s: %w", node, err)
		}

		next := e.nextNode(node, st)
		st.NextNode = next
		e.logger.Debug("hop", "from", node, "to", next, "hop", hop, "intent", st.Intent)
		node = next
	}
	return nil
}

// nextNode applies the node's outgoing edge. The router picks its own
// successor; tutoring and analysis have conditional edges; scheduling and
// motivation go straight to end.
func (e *Engine) nextNode(node string, st *state.State) string {
	switch node {
	case state.NodeRouter:
		return st.NextNode
	case state.NodeTutoring:
		return routeAfterTutoring(st)
	case state.NodeAnalysis:
		return routeAfterAnalysis(st)
	default:
		return state.NodeEnd
	}
}

// routeAfterTutoring is the post-tutoring predicate. It is pure over the
// updated state: the exit check itself already ran inside the tutoring
// handler and left its verdict in ExitRequested.
//
// An inactive loop always terminates, whatever the other flags say.
func routeAfterTutoring(st *state.State) string {
	if !st.TutoringActive {
		return state.NodeEnd
	}
	if st.ExitRequested {
		return state.NodeAnalysis
	}
	if st.TurnComplete {
		return state.NodeEnd
	}
	return state.NodeTutoring
}

// routeAfterAnalysis hands off to scheduling when the analysis recorded a
// scheduling wish or the latest message carries a scheduling cue.
func routeAfterAnalysis(st *state.State) string {
	if st.WantsScheduling {
		return state.NodeScheduling
	}
	if msg, ok := st.LastUserMessage(); ok && intent.HasSchedulingCue(msg.Text) {
		return state.NodeScheduling
	}
	return state.NodeEnd
}
