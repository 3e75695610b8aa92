// Package checkpoint persists session state between conversation turns.
//
// One checkpoint per thread. The facade loads the checkpoint before a graph
// traversal and saves the traversed state after; a turn either persists fully
// or not at all.
package checkpoint

import (
	"context"
	"errors"

	"github.com/studypal/studypal/internal/state"
)

// ErrNotFound indicates no checkpoint exists for the thread.
var ErrNotFound = errors.New("checkpoint not found")

// Store is the persistence boundary consumed by the session facade.
type Store interface {
	// Load returns the checkpointed state for a thread.
	// Returns ErrNotFound when the thread has no checkpoint yet.
	Load(ctx context.Context, threadID string) (*state.State, error)

	// Save upserts the checkpoint for a thread atomically.
	Save(ctx context.Context, threadID string, st *state.State) error
}
