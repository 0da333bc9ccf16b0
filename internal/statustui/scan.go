// Package statustui is a live terminal view over the extensions installed
// under a libDir: one row per "<name>-<version>" directory, refreshed on a
// tick, with a detail pane showing handler state, last extension status,
// heartbeat, and a tail of CommandExecution.log.
package statustui

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/azure/walinuxagent-go/internal/handlerstate"
	"github.com/azure/walinuxagent-go/internal/handlerstatus"
	"github.com/azure/walinuxagent-go/internal/manifest"
	"github.com/azure/walinuxagent-go/internal/paths"
)

// ExtensionRow is one installed (name, version) directory's current
// on-disk state, scanned fresh on every refresh tick.
type ExtensionRow struct {
	Name          string
	Version       string
	HandlerState  handlerstate.State
	Heartbeat     *handlerstatus.Heartbeat
	HeartbeatErr  error
	LastStatus    *handlerstatus.ExtensionStatus
	LastStatusErr error
	CommandLog    []string
	ScanErr       error
}

// Scan walks p.LibDir and returns one ExtensionRow per "<name>-<version>"
// directory, sorted by name then version.
func Scan(p paths.Paths) []ExtensionRow {
	entries, err := os.ReadDir(p.LibDir)
	if err != nil {
		return nil
	}

	var rows []ExtensionRow
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name, ver, splitErr := paths.SplitNameVersion(e.Name())
		if splitErr != nil {
			continue
		}
		rows = append(rows, scanOne(p, name, ver))
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].Version < rows[j].Version
	})
	return rows
}

func scanOne(p paths.Paths, name, ver string) ExtensionRow {
	row := ExtensionRow{Name: name, Version: ver}

	state, err := handlerstate.Read(p.HandlerStateFilePath(name, ver))
	if err != nil {
		row.ScanErr = err
	} else {
		row.HandlerState = state
	}

	m, mErr := manifest.Load(p.ManifestPath(name, ver))
	if mErr == nil && m.ReportHeartbeat() {
		hb, hbErr := handlerstatus.ReadHeartbeat(p.HeartbeatPath(name, ver), time.Now())
		if hbErr != nil {
			row.HeartbeatErr = hbErr
		} else {
			row.Heartbeat = &hb
		}
	}

	if st, stErr := latestStatus(p.StatusDir(name, ver)); stErr != nil {
		row.LastStatusErr = stErr
	} else {
		row.LastStatus = st
	}

	row.CommandLog = tailLines(p.CommandExecutionLogPath(name, ver), 20)
	return row
}

// latestStatus reads the highest-numbered "<seqNo>.status" file in dir.
func latestStatus(dir string) (*handlerstatus.ExtensionStatus, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	var newest string
	newestSeq := -1
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".status") {
			continue
		}
		seq, convErr := strconv.Atoi(strings.TrimSuffix(e.Name(), ".status"))
		if convErr != nil {
			continue
		}
		if seq > newestSeq {
			newestSeq = seq
			newest = e.Name()
		}
	}
	if newest == "" {
		return nil, nil
	}
	st, err := handlerstatus.ReadExtensionStatus(dir + "/" + newest)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func tailLines(path string, n int) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
