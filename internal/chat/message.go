// Package chat defines the conversation domain types and the
// sanitization rules shared by the proxy and the history store.
package chat

import (
	"strings"
	"time"
	"unicode"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the three allowed values.
func (r Role) Valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// Limits applied uniformly on both sides of the proxy.
const (
	// MaxContentLen caps a single message's content, in runes.
	MaxContentLen = 8000
	// MaxMessages caps the number of messages forwarded upstream.
	MaxMessages = 64
	// MaxStoredMessages caps a persisted thread.
	MaxStoredMessages = 200
)

// DefaultSystemPrompt is synthesized when a thread or request carries no
// system message of its own.
const DefaultSystemPrompt = "You are a helpful and concise assistant."

// Message is one turn in a conversation thread.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"ts,omitempty"`
}

// SanitizeText strips control characters other than tab, newline and
// carriage return, trims surrounding whitespace, and caps the result at
// MaxContentLen runes. The prefix is preserved on truncation.
func SanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}
	s = strings.TrimSpace(b.String())
	runes := []rune(s)
	if len(runes) > MaxContentLen {
		s = string(runes[:MaxContentLen])
	}
	return s
}

// NormalizeMessage sanitizes a role/content pair into a Message.
// It returns nil if the role is not allowed or the content is empty
// after sanitization. A zero timestamp is replaced with the current time.
func NormalizeMessage(role Role, content string, ts int64) *Message {
	content = SanitizeText(content)
	if !role.Valid() || content == "" {
		return nil
	}
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}
	return &Message{Role: role, Content: content, Timestamp: ts}
}

// SanitizeMessages applies NormalizeMessage to every entry, dropping
// invalid ones and capping the result at MaxMessages.
func SanitizeMessages(in []Message) []Message {
	out := make([]Message, 0, len(in))
	for _, m := range in {
		e := NormalizeMessage(m.Role, m.Content, m.Timestamp)
		if e == nil {
			continue
		}
		out = append(out, *e)
		if len(out) >= MaxMessages {
			break
		}
	}
	return out
}
