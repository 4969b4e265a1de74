package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grookylabs/grooky/internal/chat"
	"github.com/grookylabs/grooky/internal/seed"
)

func userTurn(text string) []chat.Message {
	return []chat.Message{{Role: chat.RoleUser, Content: text}}
}

func TestPostChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"¡hola!","model":"m1","usage":{"total_tokens":7}}`))
	}))
	defer srv.Close()

	reply, err := New(srv.URL).PostChat(context.Background(), "m1", userTurn("hola"), 0.4)
	require.NoError(t, err)
	assert.Equal(t, "¡hola!", reply.Response)
	assert.Equal(t, "m1", reply.Model)
	assert.NotEmpty(t, reply.Usage)
}

func TestPostChatRejectsEmptyThread(t *testing.T) {
	t.Parallel()

	_, err := New("http://localhost:1").PostChat(context.Background(), "", nil, 0.4)
	require.Error(t, err)
}

func TestPostChatEmptyReplyIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).PostChat(context.Background(), "", userTurn("hola"), 0.4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestServerErrorSurfaced(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"upstream API error","details":"rate limited"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).PostChat(context.Background(), "", userTurn("hola"), 0.4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "upstream API error")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestNonJSONErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>gateway</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).PostChat(context.Background(), "", userTurn("hola"), 0.4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.NotContains(t, err.Error(), "<html>")
}

func TestNonJSONSuccessBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok but not json"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).PostChat(context.Background(), "", userTurn("hola"), 0.4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-JSON")
}

func TestTimeoutIsDistinct(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server can detect the client going away;
		// otherwise r.Context() is never canceled and Close deadlocks.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(srv.URL).PostChat(ctx, "", userTurn("hola"), 0.4)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPingHealth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"envOk":false,"now":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	h, err := New(srv.URL).PingHealth(context.Background())
	require.NoError(t, err)
	assert.True(t, h.OK)
	assert.False(t, h.EnvOK)
}

func TestSeedRoundTripOverHTTP(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodPost:
			_, _ = w.Write([]byte(`{"token":"tok123","ttl":180}`))
		case http.MethodGet:
			assert.Equal(t, "tok123", r.URL.Query().Get("token"))
			_, _ = w.Write([]byte(`{"id":"conv","u":"pregunta","a":"respuesta"}`))
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	token, err := c.PutSeed(context.Background(), seed.Record{U: "pregunta", A: "respuesta"}, 3*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)

	rec, err := c.TakeSeed(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "pregunta", rec.U)
	assert.Equal(t, "respuesta", rec.A)
}
