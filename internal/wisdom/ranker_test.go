package wisdom

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
)

// vectorEmbedder maps title keywords to fixed vectors.
func vectorEmbedder(vectors map[string][]float32) *mockEmbedder {
	return &mockEmbedder{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			for key, vec := range vectors {
				if strings.Contains(text, key) {
					return vec, nil
				}
			}
			return nil, fmt.Errorf("no vector for %q", text)
		},
	}
}

func TestRankOrdersBySimilarity(t *testing.T) {
	embedder := vectorEmbedder(map[string][]float32{
		"query":    {1, 0},
		"diagonal": {1, 1},
		"aligned":  {2, 0},
		"opposite": {-1, 0},
	})
	ranker := NewRanker(embedder)

	candidates := []Candidate{
		{Title: "diagonal", URL: "https://a.example"},
		{Title: "opposite", URL: "https://b.example"},
		{Title: "aligned", URL: "https://c.example"},
	}

	ranked, err := ranker.Rank(context.Background(), "query", candidates)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	gotOrder := []string{ranked[0].Title, ranked[1].Title, ranked[2].Title}
	wantOrder := []string{"aligned", "diagonal", "opposite"}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("order = %v, want %v", gotOrder, wantOrder)
		}
	}

	for _, c := range ranked {
		if !c.Scored {
			t.Errorf("candidate %s not marked scored", c.Title)
		}
	}
	if math.Abs(ranked[0].Similarity-1.0) > 1e-9 {
		t.Errorf("aligned similarity = %f, want 1.0", ranked[0].Similarity)
	}
}

func TestRankStableOnTies(t *testing.T) {
	// All candidates share one vector; ties must keep input order.
	embedder := vectorEmbedder(map[string][]float32{"": {1, 0}})
	ranker := NewRanker(embedder)

	candidates := []Candidate{
		{Title: "first", URL: "https://1.example"},
		{Title: "second", URL: "https://2.example"},
		{Title: "third", URL: "https://3.example"},
	}

	ranked, err := ranker.Rank(context.Background(), "query", candidates)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	for i, want := range []string{"first", "second", "third"} {
		if ranked[i].Title != want {
			t.Errorf("position %d = %s, want %s", i, ranked[i].Title, want)
		}
	}
}

func TestRankQueryEmbedFailure(t *testing.T) {
	embedder := &mockEmbedder{
		embedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("engine down")
		},
	}
	ranker := NewRanker(embedder)

	_, err := ranker.Rank(context.Background(), "query", []Candidate{{Title: "a"}})
	if err == nil {
		t.Fatal("expected error when query embedding fails")
	}
}

func TestRankExcludesFailedCandidates(t *testing.T) {
	// Batch fails wholesale; per-candidate fallback succeeds for all but one.
	embedder := vectorEmbedder(map[string][]float32{
		"query": {1, 0},
		"good":  {1, 0},
		"also":  {0, 1},
	})
	embedder.batchFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, fmt.Errorf("batch endpoint unavailable")
	}
	ranker := NewRanker(embedder)

	candidates := []Candidate{
		{Title: "good", URL: "https://good.example"},
		{Title: "broken", URL: "https://broken.example"},
		{Title: "also", URL: "https://also.example"},
	}

	ranked, err := ranker.Rank(context.Background(), "query", candidates)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(ranked) != 2 {
		t.Fatalf("got %d candidates, want 2 (broken one excluded)", len(ranked))
	}
	if ranked[0].Title != "good" || ranked[1].Title != "also" {
		t.Errorf("order = %s, %s; want good, also", ranked[0].Title, ranked[1].Title)
	}
}

func TestRankExcludesDimensionMismatch(t *testing.T) {
	embedder := vectorEmbedder(map[string][]float32{
		"query": {1, 0},
		"okay":  {0, 1},
		"wide":  {1, 0, 0},
	})
	ranker := NewRanker(embedder)

	candidates := []Candidate{
		{Title: "wide", URL: "https://wide.example"},
		{Title: "okay", URL: "https://okay.example"},
	}

	ranked, err := ranker.Rank(context.Background(), "query", candidates)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Title != "okay" {
		t.Fatalf("got %v, want only the well-formed candidate", ranked)
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	ranker := NewRanker(vectorEmbedder(nil))
	ranked, err := ranker.Rank(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(ranked) != 0 {
		t.Errorf("got %d candidates, want 0", len(ranked))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float64
		wantErr bool
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0, false},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0, false},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0, false},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0, false},
		{"mismatched", []float32{1, 0}, []float32{1, 0, 0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CosineSimilarity failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}
