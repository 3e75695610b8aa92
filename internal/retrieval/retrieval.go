// Package retrieval provides the per-user study material store backed by
// PostgreSQL + pgvector. The tutoring handler queries it for grounding
// passages; ingestion happens through Add.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

const (
	// VectorDimension must match the vector(768) column in the documents
	// table. gemini-embedding-001 is truncated to this size via
	// OutputDimensionality.
	VectorDimension int32 = 768

	// MaxContentLength bounds a single ingested passage.
	MaxContentLength = 8192

	// MaxTopK caps how many passages one query may return.
	MaxTopK = 20

	// EmbedTimeout bounds a single embedding call.
	EmbedTimeout = 15 * time.Second
)

// Passage is one retrieved document chunk.
type Passage struct {
	ID         uuid.UUID
	OwnerID    string
	Topic      string
	Content    string
	Similarity float64
}

// Store manages study documents. Every read and write is scoped to an
// owner; one user's material can never surface in another user's query.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a document Store.
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger.With("component", "retrieval")}, nil
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Add ingests one passage of study material for a user.
func (s *Store) Add(ctx context.Context, ownerID, topic, content string) error {
	if ownerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("content is required")
	}
	if len(content) > MaxContentLength {
		return fmt.Errorf("content length %d exceeds maximum %d", len(content), MaxContentLength)
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, content)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (owner_id, content, topic, embedding)
		 VALUES ($1, $2, $3, $4)`,
		ownerID, content, topic, vec,
	)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("document ingested", "owner_id", ownerID, "topic", topic, "len", len(content))
	return nil
}

// Query returns up to topK passages most similar to the query text,
// restricted to the owner's documents, ordered by cosine similarity
// descending. An empty result is normal, not an error.
func (s *Store) Query(ctx context.Context, ownerID, query string, topK int) ([]Passage, error) {
	if ownerID == "" || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 4
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, topic, content, 1 - (embedding <=> $1) AS similarity
		 FROM documents
		 WHERE owner_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, ownerID, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	return scanPassages(rows)
}

// DeleteAll removes every document a user owns.
func (s *Store) DeleteAll(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE owner_id = $1`, ownerID)
	if err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

func scanPassages(rows pgx.Rows) ([]Passage, error) {
	var out []Passage
	for rows.Next() {
		var p Passage
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Topic, &p.Content, &p.Similarity); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return out, nil
}
