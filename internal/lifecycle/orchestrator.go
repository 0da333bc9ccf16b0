// Package lifecycle implements the per-extension state machine (C8): given
// a control-plane setting and whatever C6 discovered on disk, it drives
// install/enable/disable/uninstall/upgrade through the acquirer, supervisor,
// manifest, and handler-state-store components, and assembles the aggregate
// status the control plane consumes.
package lifecycle

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/azure/walinuxagent-go/internal/acquire"
	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/handlerstate"
	"github.com/azure/walinuxagent-go/internal/manifest"
	"github.com/azure/walinuxagent-go/internal/paths"
	"github.com/azure/walinuxagent-go/internal/version"
)

// EventSink records operation outcomes for later telemetry upload. It is
// fire-and-forget: failures to record are not the engine's concern.
type EventSink interface {
	AddExtensionEvent(name string, success bool, op extension.OperationTag, message string)
}

// Orchestrator drives the state machine for one extension at a time. It
// owns no process-wide mutable state: every dependency is injected at
// construction.
type Orchestrator struct {
	Paths               paths.Paths
	Order               version.Order
	HTTPClient          acquire.HTTPClient
	Sink                EventSink
	Log                 *logrus.Entry
	StatusRetryAttempts int
	StatusRetryDelay    time.Duration
}

// New builds an Orchestrator with sane defaults for the status-read retry
// window.
func New(p paths.Paths, order version.Order, client acquire.HTTPClient, sink EventSink, log *logrus.Entry) *Orchestrator {
	if order == nil {
		order = version.Default
	}
	return &Orchestrator{
		Paths:               p,
		Order:               order,
		HTTPClient:          client,
		Sink:                sink,
		Log:                 log,
		StatusRetryAttempts: 3,
		StatusRetryDelay:    2 * time.Second,
	}
}

func (o *Orchestrator) emit(inst *extension.Instance, success bool, message string) {
	if o.Sink == nil {
		return
	}
	o.Sink.AddExtensionEvent(inst.Setting.Name, success, inst.CurrOperation, message)
}

// Handle implements §4.8's top-level state machine. discoveredVersion/
// discovered come from C6; enabled is read from the persisted handler state
// when discovered is true.
func (o *Orchestrator) Handle(ctx context.Context, setting extension.Setting, discoveredVersion string, discovered bool) (*extension.Instance, error) {
	inst := &extension.Instance{Setting: setting, Installed: discovered, CurrVersion: discoveredVersion}

	if discovered {
		state, err := handlerstate.Read(o.Paths.HandlerStateFilePath(setting.Name, discoveredVersion))
		if err != nil {
			return inst, err
		}
		inst.Enabled = state == handlerstate.Enabled
	}

	switch setting.State {
	case extension.GoalEnabled:
		return inst, o.handleEnabled(ctx, inst)
	case extension.GoalDisabled:
		return inst, o.handleDisabled(ctx, inst)
	case extension.GoalUninstall:
		return inst, o.handleUninstall(ctx, inst)
	default:
		return inst, extensionerror.Newf(extensionerror.UnknownGoalState, "unrecognized goal state %q", setting.State).WithInstance(setting.Name, setting.Version)
	}
}

func (o *Orchestrator) handleEnabled(ctx context.Context, inst *extension.Instance) error {
	target, err := acquire.ResolveTargetVersion(inst.Setting, o.Order)
	if err != nil {
		return err.(*extensionerror.Error).WithInstance(inst.Setting.Name, inst.Setting.Version)
	}

	if !inst.Installed {
		inst.CurrVersion = target
		if err := o.download(ctx, inst); err != nil {
			return err
		}
		if err := o.initExtensionDir(inst); err != nil {
			return err
		}
		if err := o.install(ctx, inst); err != nil {
			return err
		}
		return o.enable(ctx, inst)
	}

	cmp := o.Order.Compare(target, inst.CurrVersion)
	switch {
	case cmp > 0:
		return o.upgrade(ctx, inst, target)
	case cmp == 0:
		return o.enable(ctx, inst)
	default:
		return extensionerror.Newf(extensionerror.DowngradeDisallowed, "target %s < installed %s", target, inst.CurrVersion).WithInstance(inst.Setting.Name, inst.CurrVersion)
	}
}

func (o *Orchestrator) handleDisabled(ctx context.Context, inst *extension.Instance) error {
	if !inst.Installed || !inst.Enabled {
		return nil
	}
	return o.disable(ctx, inst)
}

func (o *Orchestrator) handleUninstall(ctx context.Context, inst *extension.Instance) error {
	if !inst.Installed {
		return nil
	}
	if inst.Enabled {
		if err := o.disable(ctx, inst); err != nil {
			return err
		}
	}
	return o.uninstall(ctx, inst)
}

// upgrade implements §4.8.2's hard-ordered recipe: download/init new, then
// disable(old) -> update(new) -> uninstall(old) -> [install(new)] ->
// enable(new). old and new are independent Instance values cooperating
// through this imperative sequence; neither holds a back-reference to the
// other.
func (o *Orchestrator) upgrade(ctx context.Context, old *extension.Instance, targetVersion string) error {
	newInst := &extension.Instance{Setting: old.Setting, CurrVersion: targetVersion}

	if err := o.download(ctx, newInst); err != nil {
		return err
	}
	if err := o.initExtensionDir(newInst); err != nil {
		return err
	}

	old.CurrOperation = extension.OpDisable
	if err := o.disable(ctx, old); err != nil {
		return err
	}

	newInst.CurrOperation = extension.OpUpdate
	if err := o.update(ctx, newInst); err != nil {
		return err
	}

	old.CurrOperation = extension.OpUninstall
	if err := o.uninstall(ctx, old); err != nil {
		return err
	}

	m, err := o.loadManifest(newInst)
	if err != nil {
		return err
	}
	if m.UpdatesWithInstall() {
		if err := o.install(ctx, newInst); err != nil {
			return err
		}
	}

	if err := o.enable(ctx, newInst); err != nil {
		return err
	}

	newInst.CurrOperation = extension.OpUpgrade
	o.emit(newInst, true, "")
	*old = *newInst
	return nil
}

func (o *Orchestrator) loadManifest(inst *extension.Instance) (manifest.HandlerManifest, error) {
	m, err := manifest.Load(o.Paths.ManifestPath(inst.Setting.Name, inst.CurrVersion))
	if err != nil {
		return manifest.HandlerManifest{}, err.(*extensionerror.Error).WithInstance(inst.Setting.Name, inst.CurrVersion)
	}
	return m, nil
}
