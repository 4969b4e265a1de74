package history

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grookylabs/grooky/internal/chat"
)

func TestOpenFreshThread(t *testing.T) {
	dir := t.TempDir()

	thread, err := Open(dir, "fresh")
	require.NoError(t, err)

	msgs := thread.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, chat.DefaultSystemPrompt, msgs[0].Content)
}

func TestAppendAndReload(t *testing.T) {
	dir := t.TempDir()

	thread, err := Open(dir, "persist")
	require.NoError(t, err)
	thread.Append(chat.RoleUser, "hola", 0)
	thread.Append(chat.RoleAssistant, "¡hola!", 0)

	reloaded, err := Open(dir, "persist")
	require.NoError(t, err)
	msgs := reloaded.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hola", msgs[1].Content)
	assert.Equal(t, "¡hola!", msgs[2].Content)
	assert.NotZero(t, msgs[1].Timestamp)
}

func TestAppendIgnoresInvalid(t *testing.T) {
	thread, err := Open(t.TempDir(), "invalid")
	require.NoError(t, err)

	thread.Append("narrator", "x", 0)
	thread.Append(chat.RoleUser, "   ", 0)
	assert.Equal(t, 1, thread.Len())
}

func TestPruneKeepsSystemAndRecent(t *testing.T) {
	thread, err := Open(t.TempDir(), "long")
	require.NoError(t, err)

	total := chat.MaxStoredMessages + 40
	for i := 0; i < total; i++ {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		thread.Append(role, fmt.Sprintf("turn %d", i), 0)
	}

	msgs := thread.Messages()
	require.Len(t, msgs, chat.MaxStoredMessages)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, fmt.Sprintf("turn %d", total-1), msgs[len(msgs)-1].Content)
}

func TestCorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0644))

	thread, err := Open(dir, "bad")
	require.NoError(t, err)
	assert.Equal(t, 1, thread.Len())
}

func TestLoadSynthesizesSystemMessage(t *testing.T) {
	dir := t.TempDir()
	stored := `[{"role":"user","content":"sin sistema"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nosys.json"), []byte(stored), 0644))

	thread, err := Open(dir, "nosys")
	require.NoError(t, err)
	msgs := thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleSystem, msgs[0].Role)
	assert.Equal(t, "sin sistema", msgs[1].Content)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()

	thread, err := Open(dir, "wipe")
	require.NoError(t, err)
	thread.Append(chat.RoleUser, "hola", 0)
	thread.Clear()

	assert.Equal(t, 1, thread.Len())
	_, statErr := os.Stat(filepath.Join(dir, "wipe.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestEndsWithPair(t *testing.T) {
	thread, err := Open(t.TempDir(), "pair")
	require.NoError(t, err)

	assert.False(t, thread.EndsWithPair("q", "a"), "fresh thread has no pair")

	thread.Append(chat.RoleUser, "q", 0)
	thread.Append(chat.RoleAssistant, "a", 0)

	assert.True(t, thread.EndsWithPair("q", "a"))
	assert.True(t, thread.EndsWithPair("  q  ", "a\n"), "comparison is sanitized")
	assert.False(t, thread.EndsWithPair("q", "otra"))
	assert.False(t, thread.EndsWithPair("", "a"))

	thread.Append(chat.RoleUser, "siguiente", 0)
	assert.False(t, thread.EndsWithPair("q", "a"), "pair no longer last")
}

func TestUnsafeIDBecomesSafeFilename(t *testing.T) {
	dir := t.TempDir()

	thread, err := Open(dir, "a/b:c d")
	require.NoError(t, err)
	thread.Append(chat.RoleUser, "hola", 0)

	_, statErr := os.Stat(filepath.Join(dir, "a_b_c_d.json"))
	assert.NoError(t, statErr)
}
