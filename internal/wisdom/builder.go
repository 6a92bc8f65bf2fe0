package wisdom

import (
	"wisebot/internal/logging"
)

// =============================================================================
// Context Builder
// =============================================================================

// ContextBuilder assembles a budget-constrained conversation context.
// Pure over its inputs; safe for concurrent use.
type ContextBuilder struct {
	counter *TokenCounter
}

// NewContextBuilder creates a context builder.
func NewContextBuilder(counter *TokenCounter) *ContextBuilder {
	return &ContextBuilder{counter: counter}
}

// Assemble builds a Context from system messages (always included), pinned
// messages (included if they fit together with the system messages), and a
// newest-first history backlog.
//
// If system and pinned messages alone exceed the budget, Assemble fails with
// ErrBudgetExceeded: the caller must shorten the system prompt. Otherwise
// history is walked newest to oldest, stopping at the first message that
// would overflow the budget. Skipping ahead to smaller messages further back
// is deliberately avoided so retained history stays temporally contiguous.
//
// The assembled context orders messages system, pinned, then retained
// history oldest to newest.
func (b *ContextBuilder) Assemble(systemMsgs, pinnedMsgs, history []Message, budget int) (*Context, error) {
	timer := logging.StartTimer(logging.CategoryContext, "Assemble")
	defer timer.Stop()

	fixed := b.counter.CountMessages(systemMsgs) + b.counter.CountMessages(pinnedMsgs)
	if fixed > budget {
		logging.Get(logging.CategoryContext).Error(
			"system+pinned messages cost %d tokens, budget is %d", fixed, budget)
		return nil, ErrBudgetExceeded
	}

	// Walk newest to oldest, accepting while the running total fits.
	retained := 0
	total := fixed
	for _, msg := range history {
		cost := b.counter.CountMessage(msg)
		if total+cost > budget {
			break
		}
		total += cost
		retained++
	}

	msgs := make([]Message, 0, len(systemMsgs)+len(pinnedMsgs)+retained)
	msgs = append(msgs, systemMsgs...)
	msgs = append(msgs, pinnedMsgs...)

	// Retained history is newest-first; reverse into chronological order.
	for i := retained - 1; i >= 0; i-- {
		msgs = append(msgs, history[i])
	}

	logging.ContextDebug("assembled context: %d/%d tokens, %d/%d history messages retained",
		total, budget, retained, len(history))

	return &Context{
		Messages:    msgs,
		TokenBudget: budget,
		TokenCount:  total,
	}, nil
}
