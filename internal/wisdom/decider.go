package wisdom

import (
	"context"
	"fmt"
	"strings"

	"wisebot/internal/logging"
)

// =============================================================================
// Augmentation Decider
// =============================================================================
// State machine: CLASSIFY -> (NO_OP | SEARCH -> RANK -> FETCH -> INJECT).
// Runs at most one search round per turn; there is no recursive re-search.

// Prompts for the classification and query-derivation model calls.
const (
	classifyInstruction = "Answer only \"yes\" or \"no\": does answering the " +
		"user's latest request require searching the internet for external or " +
		"current information?"

	deriveQueryInstruction = "Emit a short web search query, as bare keywords " +
		"with no quotes or explanation, that would find the information needed " +
		"to answer the user's latest request."

	noResultsNote = "A web search found no relevant information. Answer from " +
		"the conversation alone and say so if you cannot."
)

// AugmentationDecider decides whether a turn needs external information and,
// if so, augments the context with fetched source material.
type AugmentationDecider struct {
	llm      LLMClient
	searcher Searcher
	ranker   *Ranker
	fetcher  *SourceFetcher
	counter  *TokenCounter

	maxSources       int
	maxSearchResults int
}

// NewAugmentationDecider creates a decider over the given collaborators.
func NewAugmentationDecider(llm LLMClient, searcher Searcher, ranker *Ranker, fetcher *SourceFetcher, counter *TokenCounter, maxSources, maxSearchResults int) *AugmentationDecider {
	if maxSources <= 0 {
		maxSources = 3
	}
	if maxSearchResults <= 0 {
		maxSearchResults = 10
	}
	return &AugmentationDecider{
		llm:              llm,
		searcher:         searcher,
		ranker:           ranker,
		fetcher:          fetcher,
		counter:          counter,
		maxSources:       maxSources,
		maxSearchResults: maxSearchResults,
	}
}

// DecideAndAugment classifies whether the context needs external information
// and injects fetched sources when it does. The context is augmented in
// place and also returned. Every failure short of budget misconfiguration
// is absorbed here: the turn proceeds with whatever was gathered, or with
// nothing.
//
// The injected sources share sourceBudget tokens of the context's budget;
// each source is fetched under a ceiling of sourceBudget / maxSources.
func (d *AugmentationDecider) DecideAndAugment(ctx context.Context, conv *Context, sourceBudget int) *Context {
	timer := logging.StartTimer(logging.CategoryDecider, "DecideAndAugment")
	defer timer.Stop()

	if !d.classify(ctx, conv) {
		logging.Decider("classification: no search needed")
		return conv
	}

	query := d.deriveQuery(ctx, conv)
	if query == "" {
		logging.Decider("could not derive search query, skipping augmentation")
		return conv
	}

	logging.Decider("searching for: %q", query)
	candidates, err := d.searcher.Search(ctx, query, d.maxSearchResults)
	if err != nil {
		logging.Get(logging.CategoryDecider).Warn("search failed, answering unaugmented: %v", err)
		return conv
	}

	if len(candidates) == 0 {
		// Zero results is not an error: tell the model so it answers from
		// the prompt alone. The note competes for budget like any message.
		logging.Decider("search returned no results")
		if !conv.Append(d.counter, Message{Role: RoleSystem, Content: noResultsNote}) {
			logging.Get(logging.CategoryDecider).Warn("no room for no-results note in budget")
		}
		return conv
	}

	ranked, err := d.ranker.Rank(ctx, query, candidates)
	if err != nil {
		// Ranking is an ordering optimization; fall back to search order.
		logging.Get(logging.CategoryDecider).Warn("ranking failed, using search order: %v", err)
		ranked = candidates
	}

	ceiling := sourceBudget / d.maxSources
	sources := d.fetcher.FetchTopN(ctx, ranked, d.maxSources, ceiling)

	injected := 0
	for _, src := range sources {
		msg := Message{
			Role:    RoleSystem,
			Content: fmt.Sprintf("Content of %s: %s", src.URL, src.Text),
		}
		// Over-budget sources are dropped whole, never truncated; the
		// next-best source may still fit.
		if conv.Append(d.counter, msg) {
			injected++
		} else {
			logging.DeciderDebug("dropping source %s: would exceed budget", src.URL)
		}
	}

	logging.Decider("augmented context with %d/%d fetched sources (%d/%d tokens used)",
		injected, len(sources), conv.TokenCount, conv.TokenBudget)
	return conv
}

// classify asks the model a binary question about needing a search. Any
// answer without a "yes" substring, ambiguous ones included, means no:
// fail-closed keeps cost bounded.
func (d *AugmentationDecider) classify(ctx context.Context, conv *Context) bool {
	msgs := make([]Message, 0, len(conv.Messages)+1)
	msgs = append(msgs, conv.Messages...)
	msgs = append(msgs, Message{Role: RoleSystem, Content: classifyInstruction})

	answer, err := d.llm.CompleteChat(ctx, msgs)
	if err != nil {
		logging.Get(logging.CategoryDecider).Warn("classification call failed, treating as no: %v", err)
		return false
	}

	needsSearch := strings.Contains(strings.ToLower(answer), "yes")
	logging.DeciderDebug("classification answer=%q needs_search=%v", answer, needsSearch)
	return needsSearch
}

// deriveQuery asks the model to produce bare search keywords for the turn.
func (d *AugmentationDecider) deriveQuery(ctx context.Context, conv *Context) string {
	msgs := make([]Message, 0, len(conv.Messages)+1)
	msgs = append(msgs, conv.Messages...)
	msgs = append(msgs, Message{Role: RoleSystem, Content: deriveQueryInstruction})

	query, err := d.llm.CompleteChat(ctx, msgs)
	if err != nil {
		logging.Get(logging.CategoryDecider).Warn("query derivation failed: %v", err)
		return ""
	}

	return strings.Trim(strings.TrimSpace(query), `"`)
}
