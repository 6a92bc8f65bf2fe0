package wisdom

import (
	"context"
	"fmt"
	"time"

	"wisebot/internal/logging"
)

// =============================================================================
// Response Streamer
// =============================================================================

// ResponseStreamer drives the model's streaming completion call and emits
// the output as discrete transport-sized chunks. One logical consumer per
// turn; the sequence is finite and not restartable.
type ResponseStreamer struct {
	llm           LLMClient
	chunkSize     int
	flushInterval time.Duration
}

// NewResponseStreamer creates a streamer. chunkSize is the transport's
// per-message character ceiling; flushInterval throttles how often buffered
// deltas are released as non-final chunks (zero flushes on every batch).
func NewResponseStreamer(llm LLMClient, chunkSize int, flushInterval time.Duration) *ResponseStreamer {
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	return &ResponseStreamer{
		llm:           llm,
		chunkSize:     chunkSize,
		flushInterval: flushInterval,
	}
}

// StreamAnswer starts the model's streaming completion over the context and
// returns the chunk sequence. Deltas accumulate in a rolling buffer that is
// released as non-final chunks when the flush interval elapses or the buffer
// crosses the chunk ceiling; concatenating all chunk texts in emission order
// reproduces the full model output.
//
// On normal completion the sequence ends with exactly one final chunk, empty
// if nothing remains buffered, so the consumer can settle its last message.
// On a mid-stream producer failure the chunk channel closes without a final
// chunk and a single terminal error is delivered on the error channel;
// chunks already emitted are not retracted.
func (s *ResponseStreamer) StreamAnswer(ctx context.Context, conv *Context) (<-chan StreamChunk, <-chan error) {
	chunks := make(chan StreamChunk, 16)
	errs := make(chan error, 1)

	deltas, streamErrs := s.llm.StreamChat(ctx, conv.Messages)

	go func() {
		defer close(chunks)
		defer close(errs)

		timer := logging.StartTimer(logging.CategoryStreamer, "StreamAnswer")
		defer timer.Stop()

		var buf []rune
		lastFlush := time.Now()
		emitted := 0

		emit := func(chunk StreamChunk) {
			select {
			case chunks <- chunk:
				emitted++
			case <-ctx.Done():
			}
		}

		for {
			delta, ok := <-deltas
			if !ok {
				break
			}
			buf = append(buf, []rune(delta)...)

			// Drain whatever else is immediately available so bursts of
			// small deltas collapse into one chunk.
			drained := false
			for !drained {
				select {
				case more, open := <-deltas:
					if !open {
						drained = true
						deltas = nil
						break
					}
					buf = append(buf, []rune(more)...)
				default:
					drained = true
				}
			}

			// Transport ceiling forces a boundary regardless of throttling.
			for len(buf) > s.chunkSize {
				emit(StreamChunk{Text: string(buf[:s.chunkSize])})
				buf = buf[s.chunkSize:]
				lastFlush = time.Now()
			}

			if len(buf) > 0 && time.Since(lastFlush) >= s.flushInterval {
				emit(StreamChunk{Text: string(buf)})
				buf = buf[:0]
				lastFlush = time.Now()
			}

			if deltas == nil {
				break
			}
		}

		// The producer closes its error channel after the content channel,
		// so a blocking read tells failure from completion.
		if err, ok := <-streamErrs; ok && err != nil {
			logging.StreamerError("stream terminated: %v", err)
			// Already-emitted chunks stand; no final chunk follows a failure.
			errs <- fmt.Errorf("%w: %v", ErrStreamFailed, err)
			return
		}

		// Completion always emits a final chunk, even an empty one, so the
		// consumer can distinguish a finished turn from a broken stream.
		emit(StreamChunk{Text: string(buf), IsFinal: true})
		logging.Streamer("stream complete: %d chunks emitted", emitted)
	}()

	return chunks, errs
}
