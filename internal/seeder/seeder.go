// Package seeder resolves the first turn of a session: from a handoff
// token, from an inline question/answer pair, or from a user-only
// prefill. It runs once at startup.
package seeder

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/grookylabs/grooky/internal/chat"
	"github.com/grookylabs/grooky/internal/history"
	"github.com/grookylabs/grooky/internal/markdown"
	"github.com/grookylabs/grooky/internal/seed"
	"github.com/grookylabs/grooky/internal/typewriter"
)

// Params are the startup inputs, in descending priority: a token wins
// over an inline pair, which wins over a bare user prefill.
type Params struct {
	Token string
	U     string
	A     string
}

// TakeFunc consumes a handoff token.
type TakeFunc func(ctx context.Context, token string) (*seed.Record, error)

// UI is the rendering surface the seeder drives.
type UI interface {
	// ShowUser renders a user turn.
	ShowUser(text string)
	// RevealSink returns the sink for the typewriter reveal of the
	// assistant turn.
	RevealSink() typewriter.Sink
	// FinishReveal replaces the revealed plain text with the rendered
	// form of the full assistant reply.
	FinishReveal(md string)
}

// Result reports what seeding did.
type Result struct {
	// Seeded is true when a full first turn was injected.
	Seeded bool
	// Prefill carries the user-only text for the composer. Never set
	// together with Seeded.
	Prefill string
}

// Controller wires the seeder's collaborators.
type Controller struct {
	Thread *history.Thread
	Take   TakeFunc
	UI     UI
	Opts   typewriter.Options
}

// Run resolves the first turn. A handoff failure is logged and falls
// through to the inline parameters; it never surfaces to the user.
func (c *Controller) Run(ctx context.Context, p Params) (Result, error) {
	u := strings.TrimSpace(p.U)
	a := strings.TrimSpace(p.A)

	if token := strings.TrimSpace(p.Token); token != "" {
		rec, err := c.Take(ctx, token)
		if err != nil {
			slog.Debug("handoff token not usable", "error", err)
		} else if rec.U != "" && rec.A != "" {
			u, a = rec.U, rec.A
		}
	}

	switch {
	case u != "" && a != "":
		if c.Thread.EndsWithPair(u, a) {
			return Result{}, nil
		}
		return c.injectPair(ctx, u, a)
	case u != "":
		return Result{Prefill: u}, nil
	default:
		return Result{}, nil
	}
}

// injectPair plays the precomputed turn into the UI and the thread. On
// an aborted reveal the user turn stays but no assistant turn is
// persisted, matching what a failed live exchange leaves behind.
func (c *Controller) injectPair(ctx context.Context, u, a string) (Result, error) {
	c.Thread.Append(chat.RoleUser, u, time.Now().UnixMilli())
	c.UI.ShowUser(u)

	if err := typewriter.Type(ctx, c.UI.RevealSink(), markdown.Strip(a), c.Opts); err != nil {
		return Result{}, err
	}

	c.UI.FinishReveal(a)
	c.Thread.Append(chat.RoleAssistant, a, time.Now().UnixMilli())
	return Result{Seeded: true}, nil
}
