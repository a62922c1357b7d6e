// Package logbuf captures the shell's log output into a fixed-size ring so
// recent lines can be inspected from the bridge server without shipping
// logs anywhere. Install with log.SetOutput(io.MultiWriter(os.Stderr, buf)).
package logbuf

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Entry struct {
	TS  time.Time `json:"ts"`
	Msg string    `json:"msg"`
}

// Buffer is an io.Writer splitting its input into lines and keeping the
// newest max of them. Safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	count   int
	partial bytes.Buffer
}

func New(max int) *Buffer {
	if max <= 0 {
		max = 500
	}
	return &Buffer{entries: make([]Entry, max)}
}

// Write implements io.Writer for log.SetOutput / io.MultiWriter.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i == -1 {
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		b.partial.Next(i + 1)
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.push(Entry{TS: time.Now(), Msg: line})
	}
	return len(p), nil
}

// push appends, overwriting the oldest entry when full. Caller holds mu.
func (b *Buffer) push(e Entry) {
	idx := (b.head + b.count) % len(b.entries)
	b.entries[idx] = e
	if b.count == len(b.entries) {
		b.head = (b.head + 1) % len(b.entries)
	} else {
		b.count++
	}
}

// Snapshot returns all buffered entries, oldest first.
func (b *Buffer) Snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, b.count)
	for i := 0; i < b.count; i++ {
		out[i] = b.entries[(b.head+i)%len(b.entries)]
	}
	return out
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// ServeJSON answers GET with the current snapshot. Mounted on the bridge
// server under /logs.
func (b *Buffer) ServeJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(b.Snapshot())
}
