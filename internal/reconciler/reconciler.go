// Package reconciler implements C9: for each desired-state extension
// setting, discover what's installed, run it through the lifecycle
// orchestrator, assemble its aggregate status, and report upstream. One
// reconciliation pass is a single-threaded, sequential walk of the
// extension list (§5) — the only concurrency anywhere in this engine is the
// orchestrator's supervisor polling a child process.
package reconciler

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/azure/walinuxagent-go/internal/discovery"
	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/handlerstatus"
	"github.com/azure/walinuxagent-go/internal/lifecycle"
	"github.com/azure/walinuxagent-go/internal/paths"
	"github.com/azure/walinuxagent-go/internal/version"
)

// GoalStateSource is the injected protocol client (out of scope for this
// core beyond this interface): it supplies the desired settings list and
// accepts aggregate status reports.
type GoalStateSource interface {
	FetchExtensions(ctx context.Context) ([]extension.Setting, error)
	ReportStatus(ctx context.Context, name, version string, agg extension.AggregateStatus) error
}

// Reconciler drives one top-to-bottom walk of the extension list per pass.
type Reconciler struct {
	Paths        paths.Paths
	Order        version.Order
	Orchestrator *lifecycle.Orchestrator
	Source       GoalStateSource
	Sink         lifecycle.EventSink
	Log          *logrus.Entry
}

// New constructs a Reconciler with its required collaborators.
func New(p paths.Paths, order version.Order, orch *lifecycle.Orchestrator, source GoalStateSource, sink lifecycle.EventSink, log *logrus.Entry) *Reconciler {
	if order == nil {
		order = version.Default
	}
	return &Reconciler{Paths: p, Order: order, Orchestrator: orch, Source: source, Sink: sink, Log: log}
}

// Run executes one reconciliation pass.
func (r *Reconciler) Run(ctx context.Context) error {
	settings, err := r.Source.FetchExtensions(ctx)
	if err != nil {
		return err
	}

	// Supplemented feature: extensions with a lower dependencyLevel are
	// handled first within the pass. A stable sort preserves the
	// control plane's own ordering among equal levels.
	sort.SliceStable(settings, func(i, j int) bool {
		return settings[i].DependencyLevel < settings[j].DependencyLevel
	})

	for _, setting := range settings {
		r.runOne(ctx, setting)
	}
	return nil
}

func (r *Reconciler) runOne(ctx context.Context, setting extension.Setting) {
	log := r.Log
	if log != nil {
		log = log.WithFields(logrus.Fields{"extension": setting.Name, "seqNo": setting.SeqNo})
	}

	discoveredVersion, discovered, err := discovery.FindInstalled(r.Paths.LibDir, setting.Name, r.Order)
	if err != nil {
		r.reportFailure(ctx, setting, extension.OpDownload, err)
		return
	}

	inst, handleErr := r.Orchestrator.Handle(ctx, setting, discoveredVersion, discovered)

	var agg extension.AggregateStatus
	var aggErr error
	if handleErr == nil {
		agg, aggErr = r.Orchestrator.AggregateStatus(inst)
	}

	finalErr := handleErr
	if finalErr == nil {
		finalErr = aggErr
	}

	if finalErr != nil {
		if log != nil {
			log.WithError(finalErr).Warn("extension reconciliation failed")
		}
		r.reportFailure(ctx, setting, inst.CurrOperation, finalErr)
		return
	}

	if log != nil {
		log.WithField("status", agg.Status).Info("extension reconciled")
	}
	if err := r.Source.ReportStatus(ctx, setting.Name, inst.CurrVersion, agg); err != nil && log != nil {
		log.WithError(err).Warn("reportStatus failed")
	}
}

// reportFailure implements §4.9 step 4: synthesize a NotReady aggregate
// carrying a synthetic error status record, emit a failure event, and
// report upstream.
func (r *Reconciler) reportFailure(ctx context.Context, setting extension.Setting, op extension.OperationTag, cause error) {
	message := cause.Error()
	code := -1

	agg := extension.AggregateStatus{
		HandlerName: setting.Name,
		Status:      extension.AggNotReady,
		RuntimeSettingsStatus: extension.RuntimeSettingsStatus{
			SequenceNumber: setting.SeqNo,
			SettingsStatus: handlerstatus.ExtensionStatus{
				Status:    handlerstatus.StatusError,
				Operation: string(op),
				Code:      code,
				Name:      setting.Name,
				FormattedMessage: handlerstatus.FormattedMessage{
					Lang:    "en-US",
					Message: message,
				},
			},
		},
	}

	if r.Sink != nil {
		r.Sink.AddExtensionEvent(setting.Name, false, op, message)
	}

	version := setting.Version
	if extErr, ok := cause.(*extensionerror.Error); ok && extErr.Version != "" {
		version = extErr.Version
	}

	if err := r.Source.ReportStatus(ctx, setting.Name, version, agg); err != nil && r.Log != nil {
		r.Log.WithError(err).Warn("reportStatus failed for synthetic NotReady aggregate")
	}
}
