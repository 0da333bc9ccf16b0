// Package daemonconfig loads the outer daemon's own configuration: where
// the handler library and extension logs live, how long to wait between
// reconciliation passes, and where the goal-state/event directories are
// rooted. This is ambient daemon bootstrap, not part of the lifecycle core
// itself (spec.md §1 scopes config-file loading out of the engine), but the
// engine needs something to build its Paths and GoalStateSource from.
package daemonconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/azure/walinuxagent-go/internal/paths"
)

// rawConfig mirrors the on-disk YAML shape.
type rawConfig struct {
	LibDir        string `yaml:"lib_dir"`
	ExtLogDir     string `yaml:"ext_log_dir"`
	GoalStateDir  string `yaml:"goal_state_dir"`
	StatusOutDir  string `yaml:"status_out_dir"`
	EventLogPath  string `yaml:"event_log_path"`
	PollInterval  string `yaml:"poll_interval"`
	VersionOrder  string `yaml:"version_order"`
}

// Config is the daemon's fully-resolved, typed configuration.
type Config struct {
	Paths        paths.Paths
	GoalStateDir string
	StatusOutDir string
	EventLogPath string
	PollInterval time.Duration
	VersionOrder string // "lexical" (default) or "numeric", per spec.md §9
}

const (
	defaultPollInterval = 30 * time.Second
	defaultLibDir       = "/var/lib/waagent-extensions"
	defaultExtLogDir    = "/var/log/azure"
	defaultGoalStateDir = "/var/lib/waagent-extensions/goalstate"
	defaultStatusOutDir = "/var/lib/waagent-extensions/status-reports"
	defaultEventLogPath = "/var/log/azure/extension-events.jsonl"
)

// Default returns the configuration used when no config file is present.
func Default() Config {
	return Config{
		Paths: paths.Paths{
			LibDir:    defaultLibDir,
			ExtLogDir: defaultExtLogDir,
		},
		GoalStateDir: defaultGoalStateDir,
		StatusOutDir: defaultStatusOutDir,
		EventLogPath: defaultEventLogPath,
		PollInterval: defaultPollInterval,
		VersionOrder: "lexical",
	}
}

// Load reads and parses a YAML config file at path, filling unset fields
// from Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if raw.LibDir != "" {
		cfg.Paths.LibDir = raw.LibDir
	}
	if raw.ExtLogDir != "" {
		cfg.Paths.ExtLogDir = raw.ExtLogDir
	}
	if raw.GoalStateDir != "" {
		cfg.GoalStateDir = raw.GoalStateDir
	}
	if raw.StatusOutDir != "" {
		cfg.StatusOutDir = raw.StatusOutDir
	}
	if raw.EventLogPath != "" {
		cfg.EventLogPath = raw.EventLogPath
	}
	if raw.VersionOrder != "" {
		cfg.VersionOrder = raw.VersionOrder
	}
	if raw.PollInterval != "" {
		d, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return Config{}, fmt.Errorf("parsing poll_interval %q: %w", raw.PollInterval, err)
		}
		cfg.PollInterval = d
	}

	return cfg, nil
}
