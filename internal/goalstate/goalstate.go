// Package goalstate is a filesystem-backed implementation of
// reconciler.GoalStateSource: the out-of-scope protocol client (spec.md §1)
// reduced to its simplest concrete form so the CLI has something real to
// drive a reconciliation pass against. FetchExtensions reads every
// "*.settings.json" file in a directory (one JSON array of extension
// settings per file, mirroring the control plane's ExtensionsConfig
// payload); ReportStatus writes the aggregate to
// "<name>-<version>.status.json" in a second directory.
package goalstate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/azure/walinuxagent-go/internal/extension"
)

// Source reads desired-state settings from Dir and writes aggregate status
// reports to StatusDir.
type Source struct {
	Dir       string
	StatusDir string
}

// New constructs a Source rooted at settingsDir/statusDir.
func New(settingsDir, statusDir string) *Source {
	return &Source{Dir: settingsDir, StatusDir: statusDir}
}

// FetchExtensions reads every "*.settings.json" file in s.Dir, in
// lexical filename order, and concatenates their setting arrays.
func (s *Source) FetchExtensions(ctx context.Context) ([]extension.Setting, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading goal state dir %s: %w", s.Dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".settings.json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var settings []extension.Setting
	for _, name := range names {
		path := filepath.Join(s.Dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var batch []extension.Setting
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		settings = append(settings, batch...)
	}
	return settings, nil
}

// ReportStatus writes agg to "<name>-<version>.status.json" under
// s.StatusDir. Best-effort per spec.md §6: a write failure here does not
// abort the reconciliation pass, it is only surfaced to the caller.
func (s *Source) ReportStatus(ctx context.Context, name, version string, agg extension.AggregateStatus) error {
	if err := os.MkdirAll(s.StatusDir, 0700); err != nil {
		return fmt.Errorf("creating status dir %s: %w", s.StatusDir, err)
	}
	data, err := json.MarshalIndent(agg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling aggregate status for %s-%s: %w", name, version, err)
	}
	path := filepath.Join(s.StatusDir, fmt.Sprintf("%s-%s.status.json", name, version))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
