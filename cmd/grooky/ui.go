package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/grookylabs/grooky/internal/markdown"
	"github.com/grookylabs/grooky/internal/typewriter"
)

var (
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// terminalUI renders turns to stdout and provides the reveal sink.
type terminalUI struct {
	tty bool
}

func newTerminalUI() *terminalUI {
	return &terminalUI{tty: isatty.IsTerminal(os.Stdout.Fd())}
}

// stdoutSink streams revealed plain text straight to the terminal.
type stdoutSink struct{}

func (stdoutSink) Append(s string) error {
	_, err := fmt.Print(s)
	return err
}

func (stdoutSink) Attached() bool { return true }

// ShowUser renders a user turn.
func (u *terminalUI) ShowUser(text string) {
	fmt.Println(userLabelStyle.Render("you") + "  " + text)
	fmt.Println()
}

// StartReveal prints the assistant label and saves the cursor position
// so FinishReveal can swap the plain reveal for the rendered reply.
func (u *terminalUI) StartReveal() {
	fmt.Print(assistantLabelStyle.Render("grooky") + "  ")
	if u.tty {
		// Save cursor; FinishReveal restores and clears from here.
		fmt.Print("\x1b7")
	}
}

// RevealSink implements seeder.UI.
func (u *terminalUI) RevealSink() typewriter.Sink {
	return stdoutSink{}
}

// FinishReveal replaces the revealed plain text with the markdown
// render. Off-TTY (or when the reveal scrolled the saved position away)
// the rendered form simply follows the plain one.
func (u *terminalUI) FinishReveal(md string) {
	if u.tty {
		fmt.Print("\x1b8\x1b[J")
	} else {
		fmt.Println()
	}
	fmt.Println(markdown.Render(md))
	fmt.Println()
}

// ShowError renders an inline error bubble in place of a reply.
func (u *terminalUI) ShowError(msg string) {
	fmt.Println(errorStyle.Render("error") + "  " + msg)
	fmt.Println()
}

// ShowNote prints a dim informational line.
func (u *terminalUI) ShowNote(msg string) {
	fmt.Println(mutedStyle.Render(msg))
}
