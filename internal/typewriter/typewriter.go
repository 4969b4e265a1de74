// Package typewriter reveals plain text incrementally, chunked by
// user-perceived characters. A grapheme cluster is never split, so a
// multi-code-point emoji or combining sequence appears atomically.
package typewriter

import (
	"context"
	"errors"
	"time"

	"github.com/rivo/uniseg"
)

// ErrAborted is returned when the context is cancelled mid-reveal.
var ErrAborted = errors.New("typewriter: aborted")

// Speed and chunk bounds.
const (
	MinSpeed     = 1 * time.Millisecond
	MaxSpeed     = 100 * time.Millisecond
	DefaultSpeed = 18 * time.Millisecond

	MinChunk     = 1
	MaxChunk     = 32
	DefaultChunk = 2
)

// Options configures a reveal.
type Options struct {
	// Speed is the pause between chunks. Clamped to [1ms, 100ms].
	Speed time.Duration
	// Chunk is the number of grapheme clusters appended per tick.
	// Clamped to [1, 32].
	Chunk int
}

// clamped returns the options with bounds applied and defaults filled.
func (o Options) clamped() Options {
	if o.Speed <= 0 {
		o.Speed = DefaultSpeed
	} else if o.Speed < MinSpeed {
		o.Speed = MinSpeed
	} else if o.Speed > MaxSpeed {
		o.Speed = MaxSpeed
	}
	if o.Chunk <= 0 {
		o.Chunk = DefaultChunk
	} else if o.Chunk > MaxChunk {
		o.Chunk = MaxChunk
	}
	return o
}

// Sink receives revealed text. Only plain text is ever appended.
type Sink interface {
	// Append adds the next already-complete clusters.
	Append(s string) error
	// Attached reports whether the sink still has somewhere to put
	// text. A detached sink ends the reveal quietly.
	Attached() bool
}

// Graphemes splits s into user-perceived characters.
func Graphemes(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, len(s))
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		out = append(out, cluster)
	}
	return out
}

// Type reveals text into sink chunk by chunk, pausing opts.Speed
// between chunks. It returns ErrAborted if ctx is cancelled mid-reveal
// and nil if the sink detaches; either way no further text is appended.
func Type(ctx context.Context, sink Sink, text string, opts Options) error {
	opts = opts.clamped()
	units := Graphemes(text)
	if len(units) == 0 {
		return nil
	}

	timer := time.NewTimer(opts.Speed)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for i := 0; i < len(units); i += opts.Chunk {
		if err := ctx.Err(); err != nil {
			return ErrAborted
		}
		if !sink.Attached() {
			return nil
		}

		end := i + opts.Chunk
		if end > len(units) {
			end = len(units)
		}
		var chunk string
		for _, u := range units[i:end] {
			chunk += u
		}
		if err := sink.Append(chunk); err != nil {
			return err
		}

		if end < len(units) {
			timer.Reset(opts.Speed)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ErrAborted
			case <-timer.C:
			}
		}
	}
	return nil
}
