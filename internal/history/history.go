// Package history persists one conversation thread per opaque thread
// identifier. The in-memory slice is authoritative for the session;
// persistence failures are tolerated so a full disk or read-only home
// never breaks the chat.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/grookylabs/grooky/internal/chat"
)

// Thread is the persisted, size-bounded message log for one thread id.
// The first element is always a system message, synthesized if the
// stored state lacks one.
type Thread struct {
	id       string
	path     string
	messages []chat.Message
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// Open loads the thread for id from baseDir, initializing a fresh one
// when the file is absent or corrupt.
func Open(baseDir, id string) (*Thread, error) {
	if id == "" {
		id = "default"
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	t := &Thread{
		id:   id,
		path: filepath.Join(baseDir, unsafeIDChars.ReplaceAllString(id, "_")+".json"),
	}
	t.load()
	return t, nil
}

// ID returns the thread identifier.
func (t *Thread) ID() string { return t.id }

// load reads persisted state into memory, normalizing every entry
// through the same rules the proxy applies so the thread never holds a
// message the proxy would reject.
func (t *Thread) load() {
	t.messages = freshThread()

	raw, err := os.ReadFile(t.path)
	if err != nil {
		return
	}
	var stored []chat.Message
	if err := json.Unmarshal(raw, &stored); err != nil {
		slog.Debug("discarding corrupt thread file", "path", t.path, "error", err)
		return
	}

	msgs := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		e := chat.NormalizeMessage(m.Role, m.Content, m.Timestamp)
		if e != nil {
			msgs = append(msgs, *e)
		}
	}
	t.messages = prune(ensureSystemFirst(msgs))
}

// Append normalizes and adds one entry, re-applies the size bound and
// persists. Invalid entries are silently ignored.
func (t *Thread) Append(role chat.Role, content string, ts int64) {
	e := chat.NormalizeMessage(role, content, ts)
	if e == nil {
		return
	}
	t.messages = prune(append(t.messages, *e))
	t.save()
}

// Clear resets to a fresh synthesized thread and removes the file.
func (t *Thread) Clear() {
	t.messages = freshThread()
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove thread file", "path", t.path, "error", err)
	}
}

// Messages returns a copy of the current thread.
func (t *Thread) Messages() []chat.Message {
	out := make([]chat.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of stored messages.
func (t *Thread) Len() int { return len(t.messages) }

// EndsWithPair reports whether the thread ends with exactly user=u then
// assistant=a, compared after the same sanitization Append applies.
// Used to suppress re-seeding a duplicate first turn.
func (t *Thread) EndsWithPair(u, a string) bool {
	u = chat.SanitizeText(u)
	a = chat.SanitizeText(a)
	if u == "" || a == "" {
		return false
	}
	// Minimum shape: [system, user, assistant].
	if len(t.messages) < 3 {
		return false
	}
	last := t.messages[len(t.messages)-1]
	prev := t.messages[len(t.messages)-2]
	return prev.Role == chat.RoleUser && prev.Content == u &&
		last.Role == chat.RoleAssistant && last.Content == a
}

// save persists the thread, swallowing failures.
func (t *Thread) save() {
	data, err := json.Marshal(t.messages)
	if err != nil {
		slog.Debug("failed to encode thread", "error", err)
		return
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		slog.Debug("failed to persist thread", "path", t.path, "error", err)
	}
}

func freshThread() []chat.Message {
	return []chat.Message{*chat.NormalizeMessage(chat.RoleSystem, chat.DefaultSystemPrompt, 0)}
}

// ensureSystemFirst guarantees element 0 is a system message.
func ensureSystemFirst(msgs []chat.Message) []chat.Message {
	if len(msgs) == 0 || msgs[0].Role != chat.RoleSystem {
		return append(freshThread(), msgs...)
	}
	return msgs
}

// prune caps the thread at chat.MaxStoredMessages, keeping element 0
// (system) and the most recent entries.
func prune(msgs []chat.Message) []chat.Message {
	if len(msgs) <= chat.MaxStoredMessages {
		return msgs
	}
	head := msgs[0]
	tail := msgs[len(msgs)-(chat.MaxStoredMessages-1):]
	out := make([]chat.Message, 0, chat.MaxStoredMessages)
	out = append(out, head)
	out = append(out, tail...)
	return out
}
