// Package eventsink is a file-backed implementation of lifecycle.EventSink
// (and reconciler's failure-event path): it appends one JSON line per
// extension event. The real telemetry upload pipeline this feeds is out of
// scope for the engine (spec.md §1); this just gives operation outcomes a
// durable, greppable home on disk.
package eventsink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azure/walinuxagent-go/internal/extension"
)

// event is the JSON-line record appended for every AddExtensionEvent call.
type event struct {
	Timestamp time.Time             `json:"timestamp"`
	Name      string                `json:"name"`
	Success   bool                  `json:"success"`
	Operation extension.OperationTag `json:"operation"`
	Message   string                `json:"message,omitempty"`
}

// FileSink appends newline-delimited JSON events to Path, one open+append
// per call (no long-lived file handle to leak across reconciliation passes).
type FileSink struct {
	Path string
	Log  *logrus.Entry

	mu sync.Mutex
}

// New constructs a FileSink writing to path.
func New(path string, log *logrus.Entry) *FileSink {
	return &FileSink{Path: path, Log: log}
}

// AddExtensionEvent implements lifecycle.EventSink. It is fire-and-forget:
// a failure to persist the event is logged, never returned or retried.
func (f *FileSink) AddExtensionEvent(name string, success bool, op extension.OperationTag, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.Path), 0700); err != nil {
		f.warn(err)
		return
	}

	fh, err := os.OpenFile(f.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		f.warn(err)
		return
	}
	defer fh.Close()

	line, err := json.Marshal(event{
		Timestamp: time.Now(),
		Name:      name,
		Success:   success,
		Operation: op,
		Message:   message,
	})
	if err != nil {
		f.warn(err)
		return
	}
	line = append(line, '\n')
	if _, err := fh.Write(line); err != nil {
		f.warn(err)
	}
}

func (f *FileSink) warn(err error) {
	if f.Log != nil {
		f.Log.WithError(err).Warn("failed to persist extension event")
	}
}
