package agent

import (
	"context"
	"sync"

	"github.com/studypal/studypal/internal/calendar"
	"github.com/studypal/studypal/internal/quotes"
	"github.com/studypal/studypal/internal/retrieval"
	"github.com/studypal/studypal/internal/state"
)

type fakeRetriever struct {
	passages []retrieval.Passage
	err      error
	calls    int
}

func (f *fakeRetriever) Query(_ context.Context, _, _ string, _ int) ([]retrieval.Passage, error) {
	f.calls++
	return f.passages, f.err
}

type fakeGenerator struct {
	out   string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeExit struct {
	exit  bool
	calls int
}

func (f *fakeExit) WantsExit(_ context.Context, _ *state.State) bool {
	f.calls++
	return f.exit
}

// fakeCalendar records created events; err makes every call fail.
type fakeCalendar struct {
	mu     sync.Mutex
	err    error
	events []calendar.Event
}

func (f *fakeCalendar) CreateEvent(_ context.Context, ev calendar.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

type fakeQuotes struct {
	quote quotes.Quote
	err   error
}

func (f *fakeQuotes) Fetch(_ context.Context) (quotes.Quote, error) {
	return f.quote, f.err
}

func assistantCount(st *state.State) int {
	n := 0
	for _, m := range st.Messages {
		if m.Role == state.RoleAssistant {
			n++
		}
	}
	return n
}
