// Package handlerstate persists the handler lifecycle token
// (uninstalled|installed|disabled|enabled) to a flat file. No JSON, no
// fsync; writes are overwrite-in-place.
package handlerstate

import (
	"os"
	"strings"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
)

// State is the handler's persisted lifecycle token.
type State string

const (
	Uninstalled State = "uninstalled"
	Installed   State = "installed"
	Disabled    State = "disabled"
	Enabled     State = "enabled"
)

// Read returns the state token stored at path. A missing file is reported to
// the caller as IoError; the Reconciler is responsible for treating "no
// installed directory" (from discovery) as the not-yet-installed case, never
// this error.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", extensionerror.New(extensionerror.IoError, "read handler state "+path, err)
	}
	return State(strings.TrimSpace(string(data))), nil
}

// Write overwrites path with s.
func Write(path string, s State) error {
	if err := os.WriteFile(path, []byte(s), 0600); err != nil {
		return extensionerror.New(extensionerror.IoError, "write handler state "+path, err)
	}
	return nil
}
