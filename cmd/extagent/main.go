// Command extagent runs the extension lifecycle engine: reconciliation
// passes that bring installed handler packages in line with desired-state
// settings, plus a couple of operator-facing debug views.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/azure/walinuxagent-go/internal/acquire"
	"github.com/azure/walinuxagent-go/internal/daemonconfig"
	"github.com/azure/walinuxagent-go/internal/discovery"
	"github.com/azure/walinuxagent-go/internal/eventsink"
	"github.com/azure/walinuxagent-go/internal/goalstate"
	"github.com/azure/walinuxagent-go/internal/handlerstate"
	"github.com/azure/walinuxagent-go/internal/lifecycle"
	"github.com/azure/walinuxagent-go/internal/reconciler"
	"github.com/azure/walinuxagent-go/internal/statustui"
	"github.com/azure/walinuxagent-go/internal/version"
)

var (
	buildVersion = "dev"
	gitCommit    = ""
)

var (
	configPath string
	verbose    bool
)

const downloadTimeout = 100 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nreceived interrupt, shutting down")
		cancel()
	}()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "extagent",
		Short:   "Extension lifecycle engine for a cloud guest agent",
		Version: buildVersion,
		Long: `extagent reconciles a desired-state list of extension settings (name,
version, goal state, package source URIs) into the actual installed/
enabled state of per-extension handler packages on this host, and reports
aggregated status back upstream.

It owns the per-extension state machine (download, install, enable,
disable, uninstall, upgrade), the on-disk handler layout, subprocess
supervision, and version selection under auto-upgrade. It does not own the
protocol client that delivers settings or collects status upstream: those
are read from and written to plain files under the configured goal-state
and status directories, so the engine can run standalone.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to daemon config YAML (defaults built in if omitted)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (debug-level) logging")

	cmd.AddCommand(reconcileCmd())
	cmd.AddCommand(daemonCmd())
	cmd.AddCommand(statusCmd())
	cmd.AddCommand(showCmd())

	return cmd
}

func loadConfig() (daemonconfig.Config, error) {
	if configPath == "" {
		return daemonconfig.Default(), nil
	}
	return daemonconfig.Load(configPath)
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func versionOrder(name string) version.Order {
	if name == "numeric" {
		return version.Numeric{}
	}
	return version.Lexical{}
}

// buildReconciler wires C1-C9 together the way the daemon loop does: one
// Paths record, one comparator, one HTTP client, one event sink, one
// orchestrator, one reconciler. No process-wide globals (spec.md §9).
func buildReconciler(cfg daemonconfig.Config, log *logrus.Logger) *reconciler.Reconciler {
	entry := log.WithField("component", "extagent")
	order := versionOrder(cfg.VersionOrder)
	httpClient := acquire.NewDefaultHTTPClient(downloadTimeout)
	sink := eventsink.New(cfg.EventLogPath, entry)
	orch := lifecycle.New(cfg.Paths, order, httpClient, sink, entry)
	source := goalstate.New(cfg.GoalStateDir, cfg.StatusOutDir)
	return reconciler.New(cfg.Paths, order, orch, source, sink, entry)
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconciliation pass",
		Long: `Fetch the desired settings list from the configured goal-state
directory, reconcile every extension sequentially against what's
installed, and write aggregate status reports to the configured status
directory. Exits non-zero only if the config could not be loaded or the
settings list itself could not be fetched; per-extension failures are reported upstream as NotReady, not
surfaced as a process exit code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger()
			r := buildReconciler(cfg, log)
			return r.Run(cmd.Context())
		},
	}
}

func daemonCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run reconciliation passes on a fixed interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if interval > 0 {
				cfg.PollInterval = interval
			}
			log := newLogger()
			r := buildReconciler(cfg, log)

			log.WithField("interval", cfg.PollInterval).Info("starting reconciliation loop")
			ticker := time.NewTicker(cfg.PollInterval)
			defer ticker.Stop()

			for {
				if err := r.Run(cmd.Context()); err != nil {
					log.WithError(err).Warn("reconciliation pass failed")
				}
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Override the configured poll interval")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Live terminal view of installed extensions and their handler state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return statustui.Run(statustui.Config{Paths: cfg.Paths})
		},
	}
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print the discovered installed version and handler state for one extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			name := args[0]
			order := versionOrder(cfg.VersionOrder)

			ver, ok, err := discovery.FindInstalled(cfg.Paths.LibDir, name, order)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Printf("%s: not installed under %s\n", name, cfg.Paths.LibDir)
				return nil
			}

			state, err := handlerstate.Read(cfg.Paths.HandlerStateFilePath(name, ver))
			if err != nil {
				return err
			}
			fmt.Printf("%s-%s: %s\n", name, ver, state)
			if gitCommit != "" {
				fmt.Printf("extagent build %s (%s)\n", buildVersion, gitCommit)
			}
			return nil
		},
	}
	return cmd
}
