package wisdom

import (
	"context"
	"strings"
	"sync"
)

// mockLLM implements LLMClient with injectable behavior.
type mockLLM struct {
	mu            sync.Mutex
	completeFunc  func(ctx context.Context, messages []Message) (string, error)
	streamFunc    func(ctx context.Context, messages []Message) (<-chan string, <-chan error)
	completeCalls [][]Message
}

func (m *mockLLM) CompleteChat(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, messages)
	m.mu.Unlock()
	return m.completeFunc(ctx, messages)
}

func (m *mockLLM) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	return m.streamFunc(ctx, messages)
}

// scriptedLLM answers CompleteChat calls from a fixed script, matching on the
// trailing instruction message.
type scriptedLLM struct {
	mockLLM
	classifyAnswer string
	classifyErr    error
	queryAnswer    string
	queryErr       error
}

func newScriptedLLM(classifyAnswer, queryAnswer string) *scriptedLLM {
	s := &scriptedLLM{
		classifyAnswer: classifyAnswer,
		queryAnswer:    queryAnswer,
	}
	s.completeFunc = func(ctx context.Context, messages []Message) (string, error) {
		last := messages[len(messages)-1]
		if strings.Contains(last.Content, "yes") && strings.Contains(last.Content, "no") {
			return s.classifyAnswer, s.classifyErr
		}
		return s.queryAnswer, s.queryErr
	}
	return s
}

// streamFromDeltas returns a StreamChat func that replays fixed deltas and
// then closes, optionally ending with a failure.
func streamFromDeltas(deltas []string, failure error) func(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	return func(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
		content := make(chan string, len(deltas)+1)
		errs := make(chan error, 1)
		for _, d := range deltas {
			content <- d
		}
		close(content)
		if failure != nil {
			errs <- failure
		}
		close(errs)
		return content, errs
	}
}

// mockEmbedder implements Embedder with injectable behavior.
type mockEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
	batchFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return m.embedFunc(ctx, text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.batchFunc != nil {
		return m.batchFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.embedFunc(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// mockSearcher implements Searcher and records its calls.
type mockSearcher struct {
	mu         sync.Mutex
	searchFunc func(ctx context.Context, query string, maxResults int) ([]Candidate, error)
	calls      []string
}

func (m *mockSearcher) Search(ctx context.Context, query string, maxResults int) ([]Candidate, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()
	return m.searchFunc(ctx, query, maxResults)
}

// mockPages implements PageFetcher and records which URLs were requested.
type mockPages struct {
	mu        sync.Mutex
	fetchFunc func(ctx context.Context, url string) (string, error)
	fetched   []string
}

func (m *mockPages) FetchText(ctx context.Context, url string) (string, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, url)
	m.mu.Unlock()
	return m.fetchFunc(ctx, url)
}

func (m *mockPages) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetched)
}
