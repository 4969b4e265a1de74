package seed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

// fakeKV emulates the Redis REST protocol: each request is a JSON
// command array, each response {"result": ...}.
type fakeKV struct {
	data     map[string]string
	commands [][]string
}

func (kv *fakeKV) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer kv-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		var cmd []string
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || len(cmd) == 0 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad command"}`))
			return
		}
		kv.commands = append(kv.commands, cmd)

		var result any
		switch cmd[0] {
		case "SETEX":
			kv.data[cmd[1]] = cmd[3]
			result = "OK"
		case "GET":
			if v, ok := kv.data[cmd[1]]; ok {
				result = v
			}
		case "DEL":
			if _, ok := kv.data[cmd[1]]; ok {
				delete(kv.data, cmd[1])
				result = 1
			} else {
				result = 0
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result})
	}
}

func newFakeKV(t *testing.T) (*fakeKV, *RESTStore) {
	t.Helper()
	kv := &fakeKV{data: make(map[string]string)}
	srv := httptest.NewServer(kv.handler())
	t.Cleanup(srv.Close)
	return kv, NewRESTStore(srv.URL, "kv-token")
}

func TestRESTPutTakeRoundTrip(t *testing.T) {
	t.Parallel()

	kv, store := newFakeKV(t)
	ctx := context.Background()

	token, ttl, err := store.Put(ctx, Record{ID: "c1", U: "hola", A: "¡hola!"}, 0)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ttl != DefaultTTL {
		t.Errorf("Expected default TTL, got %v", ttl)
	}

	// SETEX carries the clamped TTL in seconds.
	setex := kv.commands[0]
	if setex[0] != "SETEX" || setex[1] != keyPrefix+token {
		t.Errorf("Unexpected SETEX command: %v", setex)
	}
	if secs, _ := strconv.Atoi(setex[2]); secs != 180 {
		t.Errorf("Expected 180 second TTL, got %v", setex[2])
	}

	rec, err := store.Take(ctx, token)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if rec.U != "hola" || rec.A != "¡hola!" {
		t.Errorf("Unexpected record: %+v", rec)
	}

	// The record is deleted after the read.
	if _, err := store.Take(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second take, got %v", err)
	}
}

func TestRESTTakeUnknownToken(t *testing.T) {
	t.Parallel()

	_, store := newFakeKV(t)
	if _, err := store.Take(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRESTTakeInvalidPayload(t *testing.T) {
	t.Parallel()

	kv, store := newFakeKV(t)
	kv.data[keyPrefix+"bad"] = "{broken"

	if _, err := store.Take(context.Background(), "bad"); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("Expected ErrInvalidPayload, got %v", err)
	}
}

func TestRESTUnconfigured(t *testing.T) {
	t.Parallel()

	store := NewRESTStore("", "")
	if store.Configured() {
		t.Error("Expected Configured false")
	}
	if _, _, err := store.Put(context.Background(), Record{U: "q", A: "a"}, 0); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRESTBackendError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	}))
	defer srv.Close()

	store := NewRESTStore(srv.URL, "kv-token")
	if _, err := store.Take(context.Background(), "any"); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Expected ErrBackendUnavailable, got %v", err)
	}
}
