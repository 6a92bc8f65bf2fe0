package wisdom

import (
	"context"
	"fmt"
	"math"
	"sort"

	"wisebot/internal/logging"
)

// =============================================================================
// Candidate Ranking
// =============================================================================

// Ranker orders search candidates by semantic relevance to a query.
// Similarity is the sole ordering key; freshness and source trust are
// deliberately ignored.
type Ranker struct {
	embedder Embedder
}

// NewRanker creates a ranker backed by the given embedding engine.
func NewRanker(embedder Embedder) *Ranker {
	return &Ranker{embedder: embedder}
}

// Rank scores each candidate by cosine similarity between its embedding and
// the query's embedding and returns candidates ordered highest first. The
// sort is stable: candidates with equal similarity keep their input order.
//
// A candidate whose embedding cannot be obtained is excluded rather than
// failing the call. A failure to embed the query itself fails the whole
// call, since no candidate can be scored without it.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	timer := logging.StartTimer(logging.CategoryRanker, "Rank")
	defer timer.Stop()

	if len(candidates) == 0 {
		return nil, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Title + "\n" + c.Snippet
	}

	vectors, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		// Batch failed wholesale; fall back to per-candidate embedding so a
		// single bad document cannot sink the round.
		logging.RankerWarn("batch embed failed, falling back to per-candidate: %v", err)
		vectors = make([][]float32, len(candidates))
		for i, text := range texts {
			vec, embedErr := r.embedder.Embed(ctx, text)
			if embedErr != nil {
				logging.RankerWarn("excluding candidate %s: %v", candidates[i].URL, embedErr)
				continue
			}
			vectors[i] = vec
		}
	}

	scored := make([]Candidate, 0, len(candidates))
	for i, c := range candidates {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		sim, simErr := CosineSimilarity(queryVec, vectors[i])
		if simErr != nil {
			logging.RankerWarn("excluding candidate %s: %v", c.URL, simErr)
			continue
		}
		c.Embedding = vectors[i]
		c.Similarity = sim
		c.Scored = true
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if len(scored) > 0 {
		logging.RankerDebug("ranked %d/%d candidates (top=%.4f, bottom=%.4f)",
			len(scored), len(candidates), scored[0].Similarity, scored[len(scored)-1].Similarity)
	}

	return scored, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical, 0 means orthogonal.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}
