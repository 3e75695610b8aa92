package session

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// Input is the request payload for the message flow.
type Input struct {
	UserID   string `json:"user_id"`
	ThreadID string `json:"thread_id"`
	Text     string `json:"text"`
}

// FlowName is the registered name of the message flow in Genkit.
const FlowName = "studypal/handleMessage"

// Flow is the type alias for the message flow, exported for use with
// genkit.Handler().
type Flow = core.Flow[Input, Reply, struct{}]

// Package-level singleton: genkit.DefineFlow panics on re-registration.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the message flow singleton, initializing it on first
// call. Subsequent calls return the existing flow.
func NewFlow(g *genkit.Genkit, f *Facade) *Flow {
	flowOnce.Do(func() {
		flow = genkit.DefineFlow(g, FlowName,
			func(ctx context.Context, in Input) (Reply, error) {
				return f.HandleMessage(ctx, in.UserID, in.ThreadID, in.Text)
			},
		)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton. Only for tests.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}
