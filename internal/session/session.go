// Package session exposes the public entry point of the assistant: one
// call per inbound message that loads the thread's checkpointed state,
// drives a single graph traversal, persists the result, and returns the
// response with its agent attribution.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/studypal/studypal/internal/checkpoint"
	"github.com/studypal/studypal/internal/state"
)

// ErrThreadOwnership indicates a thread was addressed by a user other than
// the one it belongs to.
var ErrThreadOwnership = errors.New("thread belongs to another user")

// safeResponse is appended when a traversal somehow produced no assistant
// message. Users always get a textual response.
const safeResponse = "I'm here. Ask me a study question, or ask for a schedule, an analysis, or some motivation."

// safeAgent attributes the safeResponse.
const safeAgent = "system"

// Runner drives one graph traversal. *graph.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, st *state.State) error
}

// Reply is the per-message result: the response text and which agent
// produced it, for UI attribution.
type Reply struct {
	Text  string `json:"response_text"`
	Agent string `json:"agent_name"`
}

// Facade is the session entry point. It is safe for concurrent use;
// traversals are serialized per thread so checkpoint round-trips never
// interleave within one conversation.
type Facade struct {
	engine Runner
	store  checkpoint.Store
	logger *slog.Logger

	mu      sync.Mutex
	threads map[string]*sync.Mutex
}

// New creates the session facade.
func New(engine Runner, store checkpoint.Store, logger *slog.Logger) (*Facade, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		engine:  engine,
		store:   store,
		logger:  logger.With("component", "session"),
		threads: make(map[string]*sync.Mutex),
	}, nil
}

// HandleMessage processes one inbound message on a thread.
//
// The thread's checkpointed state is loaded (or initialized on first
// contact), the message appended, the graph driven from router to end, and
// the updated state persisted. The traversal works on a clone, so a failed
// traversal leaves the checkpoint untouched.
//
// Expected degradations (classifier outages, empty retrieval, calendar
// failures) never surface here; an error means the checkpoint store or the
// routing machinery itself is broken.
func (f *Facade) HandleMessage(ctx context.Context, userID, threadID, text string) (Reply, error) {
	if strings.TrimSpace(userID) == "" {
		return Reply{}, fmt.Errorf("user ID is required")
	}
	if strings.TrimSpace(threadID) == "" {
		return Reply{}, fmt.Errorf("thread ID is required")
	}

	lock := f.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	st, err := f.store.Load(ctx, threadID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		st = state.New(userID)
	case err != nil:
		return Reply{}, fmt.Errorf("loading thread %s: %w", threadID, err)
	case st.UserID != userID:
		return Reply{}, fmt.Errorf("%w: thread %s", ErrThreadOwnership, threadID)
	}

	work := st.Clone()
	work.BeginTurn()
	work.AppendUser(text)
	before := len(work.Messages)

	if err := f.engine.Run(ctx, work); err != nil {
		return Reply{}, fmt.Errorf("traversal for thread %s: %w", threadID, err)
	}

	if !hasAssistantSince(work, before) {
		f.logger.Warn("traversal produced no response", "thread_id", threadID, "intent", work.Intent)
		work.AppendAssistant(safeAgent, safeResponse)
	}

	if err := f.store.Save(ctx, threadID, work); err != nil {
		return Reply{}, fmt.Errorf("saving thread %s: %w", threadID, err)
	}

	msg, _ := work.LastAssistantMessage()
	f.logger.Info("message handled",
		"thread_id", threadID, "intent", work.Intent, "agent", msg.Agent)
	return Reply{Text: msg.Text, Agent: msg.Agent}, nil
}

// History returns the thread's full message log, oldest first. A thread
// with no checkpoint yields an empty history, not an error.
func (f *Facade) History(ctx context.Context, threadID string) ([]state.Message, error) {
	st, err := f.store.Load(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	return st.Messages, nil
}

// threadLock returns the mutex serializing a thread's traversals.
func (f *Facade) threadLock(threadID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	lock, ok := f.threads[threadID]
	if !ok {
		lock = &sync.Mutex{}
		f.threads[threadID] = lock
	}
	return lock
}

func hasAssistantSince(st *state.State, from int) bool {
	for _, m := range st.Messages[from:] {
		if m.Role == state.RoleAssistant {
			return true
		}
	}
	return false
}
