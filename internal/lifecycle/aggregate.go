package lifecycle

import (
	"time"

	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/handlerstate"
	"github.com/azure/walinuxagent-go/internal/handlerstatus"
)

var baseAggregateByState = map[handlerstate.State]extension.AggregateStatusValue{
	handlerstate.Uninstalled: extension.AggNotReady,
	handlerstate.Installed:   extension.AggInstalling,
	handlerstate.Disabled:    extension.AggReady,
	handlerstate.Enabled:     extension.AggReady,
}

// AggregateStatus implements §4.8.4: read the extension status and handler
// state, map the state through the fixed table, then override with the
// heartbeat's reported status when the manifest advertises heartbeat
// reporting.
func (o *Orchestrator) AggregateStatus(inst *extension.Instance) (extension.AggregateStatus, error) {
	name, ver := inst.Setting.Name, inst.CurrVersion

	extStatus, err := handlerstatus.ReadExtensionStatusWithRetry(
		o.Paths.StatusFilePath(name, ver, inst.Setting.SeqNo), o.StatusRetryAttempts, o.StatusRetryDelay)
	if err != nil {
		return extension.AggregateStatus{}, err.(*extensionerror.Error).WithInstance(name, ver)
	}

	state, err := handlerstate.Read(o.Paths.HandlerStateFilePath(name, ver))
	if err != nil {
		return extension.AggregateStatus{}, err.(*extensionerror.Error).WithInstance(name, ver)
	}

	base, ok := baseAggregateByState[state]
	if !ok {
		return extension.AggregateStatus{}, extensionerror.Newf(extensionerror.InvalidAggregateStatus, "unrecognized handler state %q", state).WithInstance(name, ver)
	}

	agg := extension.AggregateStatus{
		HandlerVersion: ver,
		HandlerName:    name,
		Status:         base,
		RuntimeSettingsStatus: extension.RuntimeSettingsStatus{
			SettingsStatus: extStatus,
			SequenceNumber: inst.Setting.SeqNo,
		},
	}

	m, err := o.loadManifest(inst)
	if err != nil {
		return extension.AggregateStatus{}, err
	}
	if m.ReportHeartbeat() {
		hb, err := handlerstatus.ReadHeartbeat(o.Paths.HeartbeatPath(name, ver), time.Now())
		if err != nil {
			return extension.AggregateStatus{}, err.(*extensionerror.Error).WithInstance(name, ver)
		}
		agg.Status = extension.AggregateStatusValue(hb.Status)
		code := hb.Code
		agg.Code = &code
		agg.Message = hb.Message
	}

	if !extension.ValidAggregateStatus(agg.Status) {
		return extension.AggregateStatus{}, extensionerror.Newf(extensionerror.InvalidAggregateStatus, "status %q not in ValidAggStatus", agg.Status).WithInstance(name, ver)
	}

	return agg, nil
}
