// Package wisdom implements the wisdom-generation pipeline: deciding whether
// a prompt needs external information, gathering and ranking web sources
// under a token budget, assembling a bounded conversation context, and
// streaming the model's answer as transport-sized chunks.
package wisdom

import (
	"context"
	"errors"
)

// =============================================================================
// MESSAGE AND CONTEXT TYPES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation context. Roles are immutable once
// created; SpeakerName is optional and counted against the token budget.
type Message struct {
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	SpeakerName string `json:"speaker_name,omitempty"`
}

// Context is the ordered, budget-constrained message sequence sent to the
// model. Messages run oldest to newest with system messages first.
// TokenCount <= TokenBudget holds after any assemble or append operation.
type Context struct {
	Messages    []Message `json:"messages"`
	TokenBudget int       `json:"token_budget"`
	TokenCount  int       `json:"token_count"`
}

// Append adds a message if it fits within the budget.
// Returns false (and leaves the context unchanged) if it does not.
func (c *Context) Append(counter *TokenCounter, msg Message) bool {
	cost := counter.CountMessage(msg)
	if c.TokenCount+cost > c.TokenBudget {
		return false
	}
	c.Messages = append(c.Messages, msg)
	c.TokenCount += cost
	return true
}

// =============================================================================
// SEARCH AND SOURCE TYPES
// =============================================================================

// Candidate is a search result not yet fetched or verified. Immutable after
// creation except Similarity, which the ranker sets exactly once.
type Candidate struct {
	Title     string
	URL       string
	Snippet   string
	Embedding []float32

	// Similarity is set by Rank; Scored reports whether it has been.
	Similarity float64
	Scored     bool
}

// FetchedSource is the readable text of a candidate that survived fetching
// and size filtering. Never persisted; dropped on any failure.
type FetchedSource struct {
	URL        string
	Text       string
	TokenCount int
}

// StreamChunk is a bounded fragment of a streamed answer. The consumer maps
// each non-final chunk to a message create or edit and shows an in-progress
// marker; the final chunk (possibly empty) signals turn completion.
type StreamChunk struct {
	Text    string
	IsFinal bool
}

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================
// Narrow views of the external services the pipeline consumes. Implemented
// by internal/llm, internal/embedding, internal/search and internal/webpage;
// mirrored here so components stay mockable and free of transport imports.

// LLMClient is the completion API consumed by the decider and streamer.
type LLMClient interface {
	// CompleteChat sends the full context and returns the model's reply.
	CompleteChat(ctx context.Context, messages []Message) (string, error)

	// StreamChat sends the full context and returns incremental text deltas.
	// The content channel closes on completion; a mid-stream failure is
	// delivered on the error channel.
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}

// Embedder produces fixed-length vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher issues one external search request.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]Candidate, error)
}

// PageFetcher retrieves a document and extracts its readable text.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// =============================================================================
// ERROR TAXONOMY
// =============================================================================

// ErrBudgetExceeded means the system and pinned messages alone exceed the
// token budget. This is a configuration error: shorten the system prompt.
// It is fatal to the turn and never retried.
var ErrBudgetExceeded = errors.New("system and pinned messages exceed token budget")

// ErrStreamFailed wraps a mid-stream producer failure. Chunks already
// emitted before the failure remain valid.
var ErrStreamFailed = errors.New("response stream failed")
