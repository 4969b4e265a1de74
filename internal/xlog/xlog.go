// Package xlog provides an asynchronous NDJSON log of chat exchanges.
// Logging must never slow a request down: events go through a bounded
// queue and are dropped, counted, when the writer falls behind.
package xlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one proxied exchange.
type Event struct {
	Timestamp string `json:"ts"`
	Model     string `json:"model,omitempty"`
	UserText  string `json:"user"`
	ReplyText string `json:"reply"`
}

// Config controls the exchange logger.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Logger writes events to one NDJSON file per day under Dir.
type Logger struct {
	dir     string
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// New creates and starts a logger, or returns nil when disabled.
func New(cfg Config) (*Logger, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("xlog: empty directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("xlog: create directory: %w", err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	l := &Logger{
		dir:   cfg.Dir,
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log enqueues an event. Never blocks; a full queue drops the event.
// Safe to call on a nil logger.
func (l *Logger) Log(e Event) {
	if l == nil {
		return
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	select {
	case l.queue <- e:
	default:
		l.dropped.Add(1)
	}
}

// Close drains the queue and stops the writer. Safe on nil.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	close(l.done)
	l.wg.Wait()
	if n := l.dropped.Load(); n > 0 {
		slog.Warn("exchange logger dropped events", "count", n)
	}
	return nil
}

func (l *Logger) run() {
	defer l.wg.Done()
	for {
		select {
		case e := <-l.queue:
			l.write(e)
		case <-l.done:
			for {
				select {
				case e := <-l.queue:
					l.write(e)
				default:
					return
				}
			}
		}
	}
}

func (l *Logger) write(e Event) {
	line, err := json.Marshal(e)
	if err != nil {
		slog.Warn("exchange logger encode failed", "error", err)
		return
	}
	path := filepath.Join(l.dir, time.Now().UTC().Format("2006-01-02")+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		slog.Warn("exchange logger open failed", "error", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		slog.Warn("exchange logger write failed", "error", err)
	}
}
