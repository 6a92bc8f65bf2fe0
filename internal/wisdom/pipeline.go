package wisdom

import (
	"context"

	"wisebot/internal/logging"
)

// =============================================================================
// Turn Pipeline
// =============================================================================

// Pipeline runs one conversation turn: budget split, context assembly,
// augmentation decision, and streamed answering. All state is per-turn;
// nothing is shared between turns, so turns never corrupt each other.
type Pipeline struct {
	builder  *ContextBuilder
	decider  *AugmentationDecider
	streamer *ResponseStreamer

	tokenBudget       int
	sourceBudgetShare float64
}

// NewPipeline wires the pipeline components together. sourceBudgetShare is
// the fraction of tokenBudget reserved for injected source material; the
// remainder bounds system, pinned and history messages.
func NewPipeline(builder *ContextBuilder, decider *AugmentationDecider, streamer *ResponseStreamer, tokenBudget int, sourceBudgetShare float64) *Pipeline {
	if tokenBudget <= 0 {
		tokenBudget = 3000
	}
	if sourceBudgetShare <= 0 || sourceBudgetShare >= 1 {
		sourceBudgetShare = 0.8
	}
	return &Pipeline{
		builder:           builder,
		decider:           decider,
		streamer:          streamer,
		tokenBudget:       tokenBudget,
		sourceBudgetShare: sourceBudgetShare,
	}
}

// Turn executes one user turn and returns the chunk stream for the answer.
// A non-nil error is fatal to the turn before any model call is made
// (ErrBudgetExceeded); every recoverable condition downstream is absorbed
// inside the pipeline and at worst degrades the answer.
func (p *Pipeline) Turn(ctx context.Context, systemMsgs, pinnedMsgs, history []Message) (<-chan StreamChunk, <-chan error, error) {
	sourceBudget := int(float64(p.tokenBudget) * p.sourceBudgetShare)
	convBudget := p.tokenBudget - sourceBudget

	// The conversation is assembled against its reserved share only, so the
	// source share is guaranteed before classification runs.
	conv, err := p.builder.Assemble(systemMsgs, pinnedMsgs, history, convBudget)
	if err != nil {
		return nil, nil, err
	}

	// Widen the budget to the full turn allowance; the headroom belongs to
	// injected source material.
	conv.TokenBudget = p.tokenBudget

	conv = p.decider.DecideAndAugment(ctx, conv, sourceBudget)

	logging.Decider("turn context ready: %d messages, %d/%d tokens",
		len(conv.Messages), conv.TokenCount, conv.TokenBudget)

	chunks, errs := p.streamer.StreamAnswer(ctx, conv)
	return chunks, errs, nil
}
