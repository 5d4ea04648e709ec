package status

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const ringCapacity = 1000

// ring is a fixed-size log buffer, newest first on read.
type ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func (r *ring) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lines == nil {
		r.lines = make([]string, ringCapacity)
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % ringCapacity
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) snapshot(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := r.next
	if r.full {
		size = ringCapacity
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + ringCapacity) % ringCapacity
		out = append(out, r.lines[idx])
	}
	return out
}

// Recorder fans a bot's status and log lines out to the local ring and, when
// configured, Redis. Redis failures degrade to local-only and are logged once
// per call site at most.
type Recorder struct {
	botID string
	store *Store // nil when redis is not configured
	ring  ring

	mu    sync.RWMutex
	state string
}

// NewRecorder builds a recorder for one bot. store may be nil.
func NewRecorder(botID string, store *Store) *Recorder {
	return &Recorder{botID: botID, store: store}
}

// SetState publishes the bot's coarse state (running, stopped, locked...).
func (rec *Recorder) SetState(ctx context.Context, state string) {
	rec.mu.Lock()
	rec.state = state
	rec.mu.Unlock()
	if rec.store != nil {
		if err := rec.store.SetStatus(ctx, rec.botID, state); err != nil {
			log.Printf("status: redis set for bot %s: %v", rec.botID, err)
		}
	}
}

// State returns the last published state.
func (rec *Recorder) State() string {
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return rec.state
}

// Logf records one formatted, timestamped log line.
func (rec *Recorder) Logf(ctx context.Context, format string, args ...any) {
	line := time.Now().Format("2006-01-02 15:04:05") + " " + fmt.Sprintf(format, args...)
	rec.ring.append(line)
	if rec.store != nil {
		if err := rec.store.AppendLog(ctx, rec.botID, line); err != nil {
			log.Printf("status: redis append for bot %s: %v", rec.botID, err)
		}
	}
}

// Logs returns up to n newest lines, preferring Redis when available so
// restarts do not lose history.
func (rec *Recorder) Logs(ctx context.Context, n int) []string {
	if rec.store != nil {
		if lines, err := rec.store.Logs(ctx, rec.botID, n); err == nil && len(lines) > 0 {
			return lines
		}
	}
	return rec.ring.snapshot(n)
}
