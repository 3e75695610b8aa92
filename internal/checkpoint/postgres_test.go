package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/studypal/studypal/db"
	"github.com/studypal/studypal/internal/log"
	"github.com/studypal/studypal/internal/state"
)

// startPostgres spins up a disposable pgvector-enabled Postgres and runs the
// embedded migrations against it. Requires Docker; skipped in short mode.
func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "pgvector/pgvector:pg17",
		tcpostgres.WithDatabase("studypal_test"),
		tcpostgres.WithUsername("studypal"),
		tcpostgres.WithPassword("studypal"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("starting postgres container (docker unavailable?): %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminating container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	if err := db.Migrate(connStr); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("creating pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	store, err := NewPostgresStore(pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	if _, err := store.Load(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load missing = %v, want ErrNotFound", err)
	}

	st := state.New("u1")
	st.AppendUser("explain derivatives")
	st.AppendAssistant("tutoring", "sure, let's start")
	st.Intent = state.IntentTutoring
	st.TutoringActive = true

	if err := store.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.UserID != "u1" || len(got.Messages) != 2 || !got.TutoringActive {
		t.Errorf("loaded state mismatch: %+v", got)
	}

	// Upsert replaces the whole document.
	st.AppendUser("more")
	if err := store.Save(ctx, "t1", st); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	got, err = store.Load(ctx, "t1")
	if err != nil {
		t.Fatalf("Load (after update): %v", err)
	}
	if len(got.Messages) != 3 {
		t.Errorf("after upsert: %d messages, want 3", len(got.Messages))
	}
}

func TestPostgresStoreDelete(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	store, err := NewPostgresStore(pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	if err := store.Save(ctx, "t1", state.New("u1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
	// Deleting a missing row is not an error.
	if err := store.Delete(ctx, "t1"); err != nil {
		t.Errorf("Delete missing = %v, want nil", err)
	}
}
