package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/studypal/studypal/internal/checkpoint"
	"github.com/studypal/studypal/internal/log"
	"github.com/studypal/studypal/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// echoEngine appends one assistant response per traversal.
type echoEngine struct {
	agent string
	err   error

	mu    sync.Mutex
	calls int
}

func (e *echoEngine) Run(_ context.Context, st *state.State) error {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()

	if e.err != nil {
		return e.err
	}
	if st.TurnComplete {
		return errors.New("turn started with TurnComplete already set")
	}
	msg, _ := st.LastUserMessage()
	st.AppendAssistant(e.agent, fmt.Sprintf("reply %d to %q", n, msg.Text))
	st.TurnComplete = true
	return nil
}

// silentEngine completes without responding.
type silentEngine struct{}

func (silentEngine) Run(_ context.Context, st *state.State) error {
	st.TurnComplete = true
	return nil
}

func newFacade(t *testing.T, engine Runner) (*Facade, *checkpoint.MemoryStore) {
	t.Helper()
	store := checkpoint.NewMemoryStore()
	f, err := New(engine, store, log.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f, store
}

func TestHandleMessageRoundTrip(t *testing.T) {
	t.Parallel()

	f, store := newFacade(t, &echoEngine{agent: state.NodeTutoring})
	ctx := context.Background()

	const n = 3
	for i := 0; i < n; i++ {
		reply, err := f.HandleMessage(ctx, "u1", "t1", fmt.Sprintf("question %d", i))
		if err != nil {
			t.Fatalf("HandleMessage: %v", err)
		}
		if reply.Text == "" || reply.Agent != state.NodeTutoring {
			t.Errorf("reply = %+v, want text with tutoring attribution", reply)
		}
	}

	st, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// One user message and one response per turn, strictly append-only.
	if len(st.Messages) != 2*n {
		t.Errorf("message log length = %d, want %d", len(st.Messages), 2*n)
	}
	for i, msg := range st.Messages {
		wantRole := state.RoleUser
		if i%2 == 1 {
			wantRole = state.RoleAssistant
		}
		if msg.Role != wantRole {
			t.Errorf("message %d role = %q, want %q", i, msg.Role, wantRole)
		}
	}
}

func TestHandleMessageValidation(t *testing.T) {
	t.Parallel()

	f, _ := newFacade(t, &echoEngine{agent: "x"})

	if _, err := f.HandleMessage(context.Background(), "", "t1", "hi"); err == nil {
		t.Error("empty user ID should fail")
	}
	if _, err := f.HandleMessage(context.Background(), "u1", "  ", "hi"); err == nil {
		t.Error("empty thread ID should fail")
	}
}

func TestHandleMessageThreadOwnership(t *testing.T) {
	t.Parallel()

	f, _ := newFacade(t, &echoEngine{agent: "x"})
	ctx := context.Background()

	if _, err := f.HandleMessage(ctx, "u1", "t1", "hello"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if _, err := f.HandleMessage(ctx, "u2", "t1", "hello"); !errors.Is(err, ErrThreadOwnership) {
		t.Errorf("err = %v, want ErrThreadOwnership", err)
	}
}

func TestHandleMessageEngineErrorLeavesCheckpointUntouched(t *testing.T) {
	t.Parallel()

	f, store := newFacade(t, &echoEngine{agent: "x", err: errors.New("node blew up")})

	if _, err := f.HandleMessage(context.Background(), "u1", "t1", "hello"); err == nil {
		t.Fatal("engine error should propagate")
	}
	if _, err := store.Load(context.Background(), "t1"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Errorf("failed traversal persisted state: %v", err)
	}
}

func TestHandleMessageAlwaysResponds(t *testing.T) {
	t.Parallel()

	f, _ := newFacade(t, silentEngine{})

	reply, err := f.HandleMessage(context.Background(), "u1", "t1", "hello")
	if err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if reply.Text != safeResponse || reply.Agent != safeAgent {
		t.Errorf("reply = %+v, want the safe default response", reply)
	}
}

func TestHandleMessageConcurrentSameThread(t *testing.T) {
	t.Parallel()

	f, store := newFacade(t, &echoEngine{agent: "x"})
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.HandleMessage(ctx, "u1", "t1", fmt.Sprintf("msg %d", i)); err != nil {
				t.Errorf("HandleMessage: %v", err)
			}
		}(i)
	}
	wg.Wait()

	st, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Per-thread serialization: no turn may be lost to interleaving.
	if len(st.Messages) != 2*n {
		t.Errorf("message log length = %d, want %d", len(st.Messages), 2*n)
	}
}

func TestHandleMessageConcurrentDistinctThreads(t *testing.T) {
	t.Parallel()

	f, store := newFacade(t, &echoEngine{agent: "x"})
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			thread := fmt.Sprintf("t%d", i)
			if _, err := f.HandleMessage(ctx, "u1", thread, "hello"); err != nil {
				t.Errorf("HandleMessage(%s): %v", thread, err)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != n {
		t.Errorf("checkpoints = %d, want %d", store.Len(), n)
	}
}

func TestHistory(t *testing.T) {
	t.Parallel()

	f, _ := newFacade(t, &echoEngine{agent: "x"})
	ctx := context.Background()

	msgs, err := f.History(ctx, "missing")
	if err != nil || msgs != nil {
		t.Errorf("History(missing) = %v, %v; want empty, nil", msgs, err)
	}

	if _, err := f.HandleMessage(ctx, "u1", "t1", "hello"); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	msgs, err = f.History(ctx, "t1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != state.RoleUser {
		t.Errorf("history = %+v, want user message then response", msgs)
	}
}
