package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// LogListener writes events to an io.Writer as either human-readable
// key=value lines or JSON-lines, matching the two output modes the
// teacher's log emitter supports.
type LogListener struct {
	mu       sync.Mutex
	w        io.Writer
	jsonMode bool
}

// NewLogListener creates a LogListener writing to w. When jsonMode is true
// each event is written as one JSON object per line.
func NewLogListener(w io.Writer, jsonMode bool) *LogListener {
	return &LogListener{w: w, jsonMode: jsonMode}
}

// OnEvent implements Listener.
func (l *LogListener) OnEvent(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		enc := json.NewEncoder(l.w)
		_ = enc.Encode(event)
		return
	}

	fmt.Fprintf(l.w, "[%s] execution=%s workflow=%s node=%s %s\n",
		event.Kind, event.ExecutionID, event.WorkflowID, event.NodeID, event.Msg)
}

// Flush is a no-op; LogListener writes synchronously.
func (l *LogListener) Flush(_ context.Context) error {
	return nil
}
