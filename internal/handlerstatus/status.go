// Package handlerstatus parses and schema-validates the two JSON contracts a
// handler writes: the per-sequence-number status file and the heartbeat log.
// Liveness is always evaluated by invoking the staleness check at call time
// against an explicit clock reading, never by caching a truthy reference.
package handlerstatus

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
)

// StatusValue is the handler-reported phase of a single operation.
type StatusValue string

const (
	Transitioning StatusValue = "transitioning"
	StatusError   StatusValue = "error"
	Success       StatusValue = "success"
	Warning       StatusValue = "warning"
)

// FormattedMessage is the localized message pair carried on status and
// synthetic error records.
type FormattedMessage struct {
	Lang    string `json:"lang"`
	Message string `json:"message"`
}

// ExtensionStatus is the typed form of status/<seqNo>.status element 0.
type ExtensionStatus struct {
	Status           StatusValue      `json:"status"`
	Operation        string           `json:"operation"`
	Code             int              `json:"code"`
	Name             string           `json:"name"`
	FormattedMessage FormattedMessage `json:"formattedMessage"`
}

type rawStatusEntry struct {
	Status ExtensionStatus `json:"status"`
}

func validateStatus(s ExtensionStatus) error {
	switch s.Status {
	case Transitioning, StatusError, Success, Warning:
	default:
		return extensionerror.Newf(extensionerror.MalformedStatus, "unknown status value %q", s.Status)
	}
	if s.Operation == "" || s.Name == "" {
		return extensionerror.Newf(extensionerror.MalformedStatus, "missing operation or name")
	}
	if s.FormattedMessage.Lang == "" {
		return extensionerror.Newf(extensionerror.MalformedStatus, "missing formattedMessage.lang")
	}
	return nil
}

// ReadExtensionStatus reads and validates status/<seqNo>.status at path.
func ReadExtensionStatus(path string) (ExtensionStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtensionStatus{}, extensionerror.New(extensionerror.IoError, "read status file "+path, err)
	}

	var entries []rawStatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return ExtensionStatus{}, extensionerror.New(extensionerror.MalformedStatus, "decode "+path, err)
	}
	if len(entries) == 0 {
		return ExtensionStatus{}, extensionerror.Newf(extensionerror.MalformedStatus, "%s has no elements", path)
	}
	st := entries[0].Status
	if err := validateStatus(st); err != nil {
		return ExtensionStatus{}, err
	}
	return st, nil
}

// ReadExtensionStatusWithRetry retries ReadExtensionStatus up to attempts
// times with delay between attempts, tolerating the window between a
// handler command returning and the handler having flushed its status file.
func ReadExtensionStatusWithRetry(path string, attempts int, delay time.Duration) (ExtensionStatus, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		st, err := ReadExtensionStatus(path)
		if err == nil {
			return st, nil
		}
		lastErr = err
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return ExtensionStatus{}, lastErr
}

// Heartbeat is the typed form of heartbeat.log element 0's ".heartbeat".
type Heartbeat struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"Message"`
}

type rawHeartbeatEntry struct {
	Heartbeat Heartbeat `json:"heartbeat"`
}

const staleThreshold = 600 * time.Second

// ReadHeartbeat reads the heartbeat file at path, evaluated against now. A
// missing file fails with MissingHeartbeat. A file whose modification time
// is older than 600s from now returns a synthetic Unresponsive record
// without parsing its contents. now must be supplied by the caller (rather
// than read internally) so every call site actually re-invokes the
// staleness check instead of reusing a stale comparison.
func ReadHeartbeat(path string, now time.Time) (Heartbeat, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Heartbeat{}, extensionerror.New(extensionerror.MissingHeartbeat, "stat "+path, err)
		}
		return Heartbeat{}, extensionerror.New(extensionerror.IoError, "stat "+path, err)
	}

	if now.Sub(info.ModTime()) > staleThreshold {
		return Heartbeat{
			Status:  "Unresponsive",
			Code:    -1,
			Message: fmt.Sprintf("heartbeat stale as of %s", now.Format(time.RFC3339)),
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Heartbeat{}, extensionerror.New(extensionerror.IoError, "read "+path, err)
	}

	var entries []rawHeartbeatEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return Heartbeat{}, extensionerror.New(extensionerror.MalformedHeartbeat, "decode "+path, err)
	}
	if len(entries) == 0 {
		return Heartbeat{}, extensionerror.Newf(extensionerror.MalformedHeartbeat, "%s has no elements", path)
	}
	hb := entries[0].Heartbeat
	if hb.Status == "" || hb.Message == "" {
		return Heartbeat{}, extensionerror.Newf(extensionerror.MalformedHeartbeat, "missing status or Message")
	}
	return hb, nil
}
