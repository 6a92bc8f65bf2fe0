package wisdom

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

func newDeciderFixture(llm LLMClient, searcher Searcher, pages PageFetcher, embedder Embedder) *AugmentationDecider {
	counter := NewTokenCounter()
	return NewAugmentationDecider(
		llm,
		searcher,
		NewRanker(embedder),
		NewSourceFetcher(pages, counter, time.Second),
		counter,
		3,
		10,
	)
}

func baseConversation(budget int) *Context {
	conv := &Context{TokenBudget: budget}
	conv.Append(NewTokenCounter(), Message{Role: RoleUser, Content: "What is the weather in Lisbon right now?"})
	return conv
}

func TestDecideNoSearchNeeded(t *testing.T) {
	llm := newScriptedLLM("No.", "")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return nil, nil
		},
	}
	pages := &mockPages{fetchFunc: func(ctx context.Context, url string) (string, error) { return "", nil }}
	decider := newDeciderFixture(llm, searcher, pages, vectorEmbedder(nil))

	conv := baseConversation(3000)
	before := len(conv.Messages)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	if len(conv.Messages) != before {
		t.Errorf("context grew from %d to %d messages without a search", before, len(conv.Messages))
	}
	if len(searcher.calls) != 0 {
		t.Errorf("search called %d times, want 0", len(searcher.calls))
	}
}

func TestDecideClassificationFailsClosed(t *testing.T) {
	llm := newScriptedLLM("", "")
	llm.classifyErr = fmt.Errorf("model unavailable")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return nil, nil
		},
	}
	pages := &mockPages{fetchFunc: func(ctx context.Context, url string) (string, error) { return "", nil }}
	decider := newDeciderFixture(llm, searcher, pages, vectorEmbedder(nil))

	conv := baseConversation(3000)
	before := len(conv.Messages)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	if len(conv.Messages) != before || len(searcher.calls) != 0 {
		t.Error("classification failure must behave exactly like a no")
	}
}

func TestDecideAmbiguousAnswerMeansNo(t *testing.T) {
	llm := newScriptedLLM("Perhaps, it depends on the question.", "")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return nil, nil
		},
	}
	pages := &mockPages{fetchFunc: func(ctx context.Context, url string) (string, error) { return "", nil }}
	decider := newDeciderFixture(llm, searcher, pages, vectorEmbedder(nil))

	decider.DecideAndAugment(context.Background(), baseConversation(3000), 2400)

	if len(searcher.calls) != 0 {
		t.Errorf("ambiguous classification triggered a search")
	}
}

func TestDecideZeroResultsInjectsNote(t *testing.T) {
	llm := newScriptedLLM("Yes", "lisbon weather today")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return nil, nil
		},
	}
	pages := &mockPages{fetchFunc: func(ctx context.Context, url string) (string, error) { return "", nil }}
	decider := newDeciderFixture(llm, searcher, pages, vectorEmbedder(nil))

	conv := baseConversation(3000)
	before := len(conv.Messages)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	if len(conv.Messages) != before+1 {
		t.Fatalf("got %d messages, want exactly one note appended", len(conv.Messages))
	}
	note := conv.Messages[len(conv.Messages)-1]
	if note.Role != RoleSystem || !strings.Contains(note.Content, "no relevant information") {
		t.Errorf("unexpected note: %+v", note)
	}
	if pages.fetchCount() != 0 {
		t.Errorf("fetched %d pages after an empty search", pages.fetchCount())
	}
	// One round only; an empty result never re-searches.
	if len(searcher.calls) != 1 {
		t.Errorf("search called %d times, want 1", len(searcher.calls))
	}
}

func TestDecideInjectsFetchedSources(t *testing.T) {
	llm := newScriptedLLM("Yes", `"lisbon weather today"`)
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			if query != "lisbon weather today" {
				t.Errorf("query = %q, quotes not stripped", query)
			}
			return []Candidate{
				{Title: "far", URL: "https://far.example", Snippet: "far"},
				{Title: "near", URL: "https://near.example", Snippet: "near"},
			}, nil
		},
	}
	pages := &mockPages{
		fetchFunc: func(ctx context.Context, url string) (string, error) {
			return "forecast: sunny, 24C", nil
		},
	}
	embedder := vectorEmbedder(map[string][]float32{
		"lisbon": {1, 0},
		"near":   {1, 0},
		"far":    {0, 1},
	})
	decider := newDeciderFixture(llm, searcher, pages, embedder)

	conv := baseConversation(3000)
	before := len(conv.Messages)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	injected := conv.Messages[before:]
	if len(injected) != 2 {
		t.Fatalf("got %d injected messages, want 2", len(injected))
	}

	// The more similar candidate must be injected first.
	if !strings.HasPrefix(injected[0].Content, "Content of https://near.example: ") {
		t.Errorf("first injection = %q", injected[0].Content)
	}
	if !strings.HasPrefix(injected[1].Content, "Content of https://far.example: ") {
		t.Errorf("second injection = %q", injected[1].Content)
	}
	for _, msg := range injected {
		if msg.Role != RoleSystem {
			t.Errorf("injected source has role %s, want system", msg.Role)
		}
	}
	if conv.TokenCount > conv.TokenBudget {
		t.Errorf("budget violated: %d/%d", conv.TokenCount, conv.TokenBudget)
	}
}

func TestDecideRankFailureUsesSearchOrder(t *testing.T) {
	llm := newScriptedLLM("Yes", "lisbon weather")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return []Candidate{
				{Title: "first", URL: "https://first.example"},
				{Title: "second", URL: "https://second.example"},
			}, nil
		},
	}
	pages := &mockPages{
		fetchFunc: func(ctx context.Context, url string) (string, error) {
			return "content", nil
		},
	}
	// Query embedding fails, so ranking fails and search order stands.
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("engine down")
		},
	}
	decider := newDeciderFixture(llm, searcher, pages, embedder)

	conv := baseConversation(3000)
	before := len(conv.Messages)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	injected := conv.Messages[before:]
	if len(injected) != 2 {
		t.Fatalf("got %d injected messages, want 2", len(injected))
	}
	if !strings.Contains(injected[0].Content, "https://first.example") {
		t.Errorf("first injection = %q, want search order", injected[0].Content)
	}
}

func TestDecideDropsOversizedSourceWhole(t *testing.T) {
	llm := newScriptedLLM("Yes", "lisbon weather")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return []Candidate{
				{Title: "big", URL: "https://big.example"},
				{Title: "tiny", URL: "https://tiny.example"},
			}, nil
		},
	}
	pages := &mockPages{
		fetchFunc: func(ctx context.Context, url string) (string, error) {
			if strings.Contains(url, "big") {
				// Under the per-source ceiling but over the remaining
				// context budget once framed as a message.
				return strings.Repeat("x", 500), nil
			}
			return "small", nil
		},
	}
	embedder := vectorEmbedder(map[string][]float32{
		"lisbon": {1, 0},
		"big":    {1, 0},
		"tiny":   {0, 1},
	})
	decider := newDeciderFixture(llm, searcher, pages, embedder)

	// Room for the user message plus ~40 tokens: the big source (125+ tokens)
	// cannot fit, the tiny one can.
	conv := baseConversation(55)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	var sawBig, sawTiny bool
	for _, msg := range conv.Messages {
		if strings.Contains(msg.Content, "big.example") {
			sawBig = true
		}
		if strings.Contains(msg.Content, "tiny.example") {
			sawTiny = true
		}
	}
	if sawBig {
		t.Error("oversized source was injected; it must be dropped, not truncated")
	}
	if !sawTiny {
		t.Error("the smaller source should still have been injected")
	}
	if conv.TokenCount > conv.TokenBudget {
		t.Errorf("budget violated: %d/%d", conv.TokenCount, conv.TokenBudget)
	}
}

func TestDecideSearchFailureAnswersUnaugmented(t *testing.T) {
	llm := newScriptedLLM("Yes", "lisbon weather")
	searcher := &mockSearcher{
		searchFunc: func(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
			return nil, fmt.Errorf("engine unreachable")
		},
	}
	pages := &mockPages{fetchFunc: func(ctx context.Context, url string) (string, error) { return "", nil }}
	decider := newDeciderFixture(llm, searcher, pages, vectorEmbedder(nil))

	conv := baseConversation(3000)
	before := len(conv.Messages)

	decider.DecideAndAugment(context.Background(), conv, 2400)

	if len(conv.Messages) != before {
		t.Errorf("search failure must leave the context untouched")
	}
	if len(searcher.calls) != 1 {
		t.Errorf("search called %d times, want 1 (no retry)", len(searcher.calls))
	}
}
