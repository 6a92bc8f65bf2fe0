package wisdom

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"wisebot/internal/logging"
)

// =============================================================================
// Source Fetching with Backfill
// =============================================================================

// SourceFetcher retrieves readable text for ranked candidates under a
// per-source token ceiling. Failed or oversized candidates are replaced by
// the next-best unattempted candidate until enough sources are gathered or
// the pool runs out.
type SourceFetcher struct {
	pages        PageFetcher
	counter      *TokenCounter
	fetchTimeout time.Duration
}

// NewSourceFetcher creates a source fetcher. fetchTimeout bounds each
// individual page retrieval.
func NewSourceFetcher(pages PageFetcher, counter *TokenCounter, fetchTimeout time.Duration) *SourceFetcher {
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	return &SourceFetcher{
		pages:        pages,
		counter:      counter,
		fetchTimeout: fetchTimeout,
	}
}

// FetchTopN gathers up to n sources from ranked candidates, highest rank
// first. All fetches within one backfill round run in parallel; rounds are
// sequential because a round's failures determine the next round's input.
// Results follow rank order, not fetch completion order.
//
// Per-candidate failures (network error, non-success status, text over the
// token ceiling) discard the candidate and are never surfaced. Fewer than n
// sources are returned only when the candidate pool is exhausted; that is
// reported to the caller as a short result, not an error.
func (f *SourceFetcher) FetchTopN(ctx context.Context, ranked []Candidate, n, tokenCeiling int) []FetchedSource {
	timer := logging.StartTimer(logging.CategoryFetcher, "FetchTopN")
	defer timer.Stop()

	if n <= 0 || len(ranked) == 0 {
		return nil
	}

	sources := make([]FetchedSource, 0, n)
	next := 0 // index of the highest-ranked candidate not yet attempted

	for len(sources) < n && next < len(ranked) {
		want := n - len(sources)
		round := ranked[next:min(next+want, len(ranked))]
		next += len(round)

		logging.FetcherDebug("backfill round: fetching %d candidates (gathered %d/%d)",
			len(round), len(sources), n)

		results := make([]*FetchedSource, len(round))
		g, roundCtx := errgroup.WithContext(ctx)
		for i, cand := range round {
			g.Go(func() error {
				src, err := f.fetchOne(roundCtx, cand, tokenCeiling)
				if err != nil {
					// Non-fatal: the slot is backfilled next round.
					logging.FetcherWarn("discarding %s: %v", cand.URL, err)
					return nil
				}
				results[i] = src
				return nil
			})
		}
		_ = g.Wait()

		// Re-associate in rank order, ignoring completion order.
		for _, src := range results {
			if src != nil {
				sources = append(sources, *src)
			}
		}
	}

	if len(sources) < n {
		logging.Fetcher("candidate pool exhausted: gathered %d/%d sources", len(sources), n)
	}

	return sources
}

// fetchOne retrieves and measures a single candidate.
func (f *SourceFetcher) fetchOne(ctx context.Context, cand Candidate, tokenCeiling int) (*FetchedSource, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.fetchTimeout)
	defer cancel()

	text, err := f.pages.FetchText(fetchCtx, cand.URL)
	if err != nil {
		return nil, err
	}

	tokens := f.counter.CountString(text)
	if tokens > tokenCeiling {
		return nil, &oversizedSourceError{url: cand.URL, tokens: tokens, ceiling: tokenCeiling}
	}

	logging.FetcherDebug("fetched %s: %d tokens", cand.URL, tokens)
	return &FetchedSource{
		URL:        cand.URL,
		Text:       text,
		TokenCount: tokens,
	}, nil
}

// oversizedSourceError marks a candidate whose extracted text exceeds the
// per-source token ceiling.
type oversizedSourceError struct {
	url     string
	tokens  int
	ceiling int
}

func (e *oversizedSourceError) Error() string {
	return fmt.Sprintf("extracted text of %s is %d tokens, ceiling is %d", e.url, e.tokens, e.ceiling)
}
