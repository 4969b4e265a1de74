// Grooky terminal client: seeds the first turn, then runs the chat
// loop against the API server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/grookylabs/grooky/internal/chat"
	"github.com/grookylabs/grooky/internal/client"
	"github.com/grookylabs/grooky/internal/history"
	"github.com/grookylabs/grooky/internal/markdown"
	"github.com/grookylabs/grooky/internal/seeder"
	"github.com/grookylabs/grooky/internal/typewriter"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	_ = godotenv.Load()

	var (
		serverURL = flag.String("server", envOr("GROOKY_SERVER", "http://localhost:8080"), "API server base URL")
		threadID  = flag.String("id", "", "thread identifier (generated when empty)")
		token     = flag.String("token", "", "handoff token for the first turn")
		seedU     = flag.String("u", "", "inline first user turn")
		seedA     = flag.String("a", "", "inline first assistant turn")
		model     = flag.String("model", "", "model override sent to the proxy")
		speed     = flag.Int("speed", 18, "typewriter speed, ms per tick")
		chunk     = flag.Int("chunk", 2, "typewriter chunk, graphemes per tick")
		temp      = flag.Float64("temperature", 0.4, "sampling temperature")
		reset     = flag.Bool("reset", false, "clear the thread before starting")
		dataDir   = flag.String("data-dir", "", "thread storage directory (default ~/.grooky/threads)")
	)
	flag.Parse()

	if err := run(options{
		serverURL: *serverURL,
		threadID:  *threadID,
		token:     *token,
		u:         *seedU,
		a:         *seedA,
		model:     *model,
		speed:     *speed,
		chunk:     *chunk,
		temp:      *temp,
		reset:     *reset,
		dataDir:   *dataDir,
	}); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("fatal: ")+err.Error())
		os.Exit(1)
	}
}

type options struct {
	serverURL string
	threadID  string
	token     string
	u, a      string
	model     string
	speed     int
	chunk     int
	temp      float64
	reset     bool
	dataDir   string
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataDir := opts.dataDir
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".grooky", "threads")
	}

	threadID := strings.TrimSpace(opts.threadID)
	if threadID == "" {
		threadID = "t_" + uuid.NewString()[:8]
	}

	thread, err := history.Open(dataDir, threadID)
	if err != nil {
		return err
	}
	if opts.reset {
		thread.Clear()
	}

	api := client.New(opts.serverURL)
	ui := newTerminalUI()
	twOpts := typewriter.Options{
		Speed: time.Duration(opts.speed) * time.Millisecond,
		Chunk: opts.chunk,
	}

	ui.ShowNote(fmt.Sprintf("thread %s · %s", thread.ID(), opts.serverURL))

	// Replay the stored thread so reopening a conversation shows it.
	for _, m := range thread.Messages() {
		switch m.Role {
		case chat.RoleUser:
			ui.ShowUser(m.Content)
		case chat.RoleAssistant:
			fmt.Println(assistantLabelStyle.Render("grooky") + "  " + markdown.Render(m.Content))
			fmt.Println()
		}
	}

	ctl := &seeder.Controller{
		Thread: thread,
		Take:   api.TakeSeed,
		UI:     &seededUI{terminalUI: ui},
		Opts:   twOpts,
	}
	result, err := ctl.Run(ctx, seeder.Params{Token: opts.token, U: opts.u, A: opts.a})
	if err != nil {
		if errors.Is(err, typewriter.ErrAborted) {
			return nil
		}
		return err
	}

	return chatLoop(ctx, api, thread, ui, twOpts, opts.model, opts.temp, result.Prefill)
}

// seededUI adds the reveal-start hook the seeder flow needs.
type seededUI struct {
	*terminalUI
}

func (u *seededUI) RevealSink() typewriter.Sink {
	u.StartReveal()
	return u.terminalUI.RevealSink()
}

// chatLoop reads user turns until EOF or interrupt. One submission is
// in flight at a time; input is simply not read while waiting.
func chatLoop(ctx context.Context, api *client.Client, thread *history.Thread, ui *terminalUI, twOpts typewriter.Options, model string, temp float64, prefill string) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if prefill != "" {
		ui.ShowNote("prepared message (press Enter to send, or type your own):")
		ui.ShowNote("  " + prefill)
	}

	for {
		fmt.Print(userLabelStyle.Render("you") + " ❯ ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		if line == "" && prefill != "" {
			line = prefill
		}
		prefill = ""

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			thread.Clear()
			ui.ShowNote("thread cleared")
			continue
		}

		if err := submit(ctx, api, thread, ui, twOpts, model, temp, line); err != nil {
			if errors.Is(err, typewriter.ErrAborted) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// submit plays one exchange. A proxy failure shows an inline error and
// leaves only the user turn in history.
func submit(ctx context.Context, api *client.Client, thread *history.Thread, ui *terminalUI, twOpts typewriter.Options, model string, temp float64, text string) error {
	thread.Append(chat.RoleUser, text, time.Now().UnixMilli())
	fmt.Println()

	reply, err := api.PostChat(ctx, model, thread.Messages(), temp)
	if err != nil {
		if errors.Is(err, client.ErrTimeout) {
			ui.ShowError("timed out waiting for the API")
		} else {
			ui.ShowError(err.Error())
		}
		return nil
	}

	ui.StartReveal()
	if err := typewriter.Type(ctx, ui.RevealSink(), markdown.Strip(reply.Response), twOpts); err != nil {
		return err
	}
	ui.FinishReveal(reply.Response)

	thread.Append(chat.RoleAssistant, reply.Response, time.Now().UnixMilli())
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
