package checkpoint

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/studypal/studypal/internal/state"
)

func TestMemoryStoreLoadMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_, err := s.Load(context.Background(), "no-such-thread")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load missing = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	st := state.New("u1")
	st.AppendUser("hello")
	st.TutoringActive = true

	if err := s.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.UserID != "u1" || len(got.Messages) != 1 || !got.TutoringActive {
		t.Errorf("loaded state mismatch: %+v", got)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	st := state.New("u1")
	st.AppendUser("original")
	if err := s.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the saved pointer must not change the stored copy.
	st.AppendUser("after save")

	got, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Messages) != 1 {
		t.Errorf("stored checkpoint was mutated through caller pointer: %d messages", len(got.Messages))
	}

	// Mutating a loaded copy must not change the stored copy either.
	got.AppendUser("after load")
	again, err := s.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(again.Messages) != 1 {
		t.Error("stored checkpoint was mutated through loaded pointer")
	}
}

func TestMemoryStoreValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Save(ctx, "", state.New("u1")); err == nil {
		t.Error("Save with empty thread ID should fail")
	}
	if err := s.Save(ctx, "t1", nil); err == nil {
		t.Error("Save with nil state should fail")
	}
	if _, err := s.Load(ctx, ""); err == nil {
		t.Error("Load with empty thread ID should fail")
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := state.New("u1")
			st.AppendUser("msg")
			_ = s.Save(ctx, "shared", st)
			_, _ = s.Load(ctx, "shared")
		}()
	}
	wg.Wait()

	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}
