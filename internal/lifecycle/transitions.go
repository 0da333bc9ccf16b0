package lifecycle

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/azure/walinuxagent-go/internal/acquire"
	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/handlerstate"
	"github.com/azure/walinuxagent-go/internal/manifest"
	"github.com/azure/walinuxagent-go/internal/paths"
	"github.com/azure/walinuxagent-go/internal/supervisor"
)

// download resolves the package URIs for inst.CurrVersion, attempts each in
// order, and unpacks the first success into the instance's base directory.
func (o *Orchestrator) download(ctx context.Context, inst *extension.Instance) error {
	inst.CurrOperation = extension.OpDownload

	uris, err := acquire.ResolveURIs(inst.Setting, inst.CurrVersion)
	if err != nil {
		return o.fail(inst, err)
	}

	result, err := acquire.Download(ctx, o.HTTPClient, uris)
	if err != nil {
		return o.fail(inst, err)
	}

	if err := paths.EnsureDir(o.Paths.LibDir); err != nil {
		return o.fail(inst, err)
	}
	archivePath, err := acquire.WriteArchive(o.Paths.LibDir, result)
	if err != nil {
		return o.fail(inst, err)
	}

	destDir := o.Paths.BaseDir(inst.Setting.Name, inst.CurrVersion)
	if err := acquire.Unpack(archivePath, destDir); err != nil {
		return o.fail(inst, err)
	}
	_ = acquire.WriteDownloadDigest(destDir, result.Body)

	o.emit(inst, true, "")
	return nil
}

// initExtensionDir implements §4.8.3: find the manifest wherever the
// archive placed it, normalize it to the canonical path, lay out status/
// and config/ directories, and seed handler state as uninstalled.
func (o *Orchestrator) initExtensionDir(inst *extension.Instance) error {
	name, ver := inst.Setting.Name, inst.CurrVersion
	baseDir := o.Paths.BaseDir(name, ver)

	foundPath, err := findManifest(baseDir)
	if err != nil {
		return o.fail(inst, err)
	}

	raw, err := os.ReadFile(foundPath)
	if err != nil {
		return o.fail(inst, extensionerror.New(extensionerror.IoError, "read "+foundPath, err))
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	if err := os.WriteFile(o.Paths.ManifestPath(name, ver), raw, 0600); err != nil {
		return o.fail(inst, extensionerror.New(extensionerror.IoError, "write canonical manifest", err))
	}

	if err := paths.EnsureDir(o.Paths.StatusDir(name, ver)); err != nil {
		return o.fail(inst, err)
	}
	if err := paths.EnsureDir(o.Paths.ConfigDir(name, ver)); err != nil {
		return o.fail(inst, err)
	}

	if err := handlerstate.Write(o.Paths.HandlerStateFilePath(name, ver), handlerstate.Uninstalled); err != nil {
		return o.fail(inst, err)
	}

	err = manifest.WriteEnvironment(o.Paths.EnvironmentPath(name, ver), name, ver, manifest.Environment{
		LogFolder:     o.Paths.LogDir(name, ver),
		ConfigFolder:  o.Paths.ConfigDir(name, ver),
		StatusFolder:  o.Paths.StatusDir(name, ver),
		HeartbeatFile: o.Paths.HeartbeatPath(name, ver),
	})
	if err != nil {
		return o.fail(inst, err)
	}
	return nil
}

// findManifest does a depth-first search under root for a file named
// HandlerManifest.json, returning the first match.
func findManifest(root string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found != "" {
			return filepath.SkipAll
		}
		if !d.IsDir() && d.Name() == "HandlerManifest.json" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		return "", extensionerror.New(extensionerror.IoError, "search for HandlerManifest.json under "+root, err)
	}
	if found == "" {
		return "", extensionerror.Newf(extensionerror.MalformedManifest, "no HandlerManifest.json found under %s", root)
	}
	return found, nil
}

// runCommand is the shared shape of every §4.8.1 transition: set
// currOperation, load the manifest, launch the corresponding command, and
// on success only, persist the new handler state.
func (o *Orchestrator) runCommand(ctx context.Context, inst *extension.Instance, op extension.OperationTag, newState handlerstate.State) error {
	inst.CurrOperation = op
	name, ver := inst.Setting.Name, inst.CurrVersion

	m, err := o.loadManifest(inst)
	if err != nil {
		return o.fail(inst, err)
	}
	cmd, ok := m.CommandFor(string(op))
	if !ok {
		return o.fail(inst, extensionerror.Newf(extensionerror.LaunchFailed, "manifest has no command for operation %s", op).WithInstance(name, ver))
	}

	settingsData := []byte(inst.Setting.Settings)
	if len(settingsData) == 0 {
		settingsData = []byte("{}")
	}

	spec := supervisor.LaunchSpec{
		Operation:      string(op),
		BaseDir:        o.Paths.BaseDir(name, ver),
		Command:        cmd,
		Timeout:        supervisor.Timeouts[string(op)],
		SettingsPath:   o.Paths.SettingsFilePath(name, ver, inst.Setting.SeqNo),
		SettingsData:   settingsData,
		CommandLogPath: o.Paths.CommandExecutionLogPath(name, ver),
	}
	if launchErr := supervisor.Launch(ctx, spec); launchErr != nil {
		return o.fail(inst, launchErr.(*extensionerror.Error).WithInstance(name, ver))
	}

	if newState != "" {
		if err := handlerstate.Write(o.Paths.HandlerStateFilePath(name, ver), newState); err != nil {
			return o.fail(inst, err)
		}
	}
	if op == extension.OpEnable {
		inst.Enabled = true
	} else if op == extension.OpDisable {
		inst.Enabled = false
	}

	o.emit(inst, true, "")
	return nil
}

func (o *Orchestrator) install(ctx context.Context, inst *extension.Instance) error {
	inst.Installed = true
	return o.runCommand(ctx, inst, extension.OpInstall, handlerstate.Installed)
}

func (o *Orchestrator) enable(ctx context.Context, inst *extension.Instance) error {
	return o.runCommand(ctx, inst, extension.OpEnable, handlerstate.Enabled)
}

func (o *Orchestrator) disable(ctx context.Context, inst *extension.Instance) error {
	return o.runCommand(ctx, inst, extension.OpDisable, handlerstate.Disabled)
}

func (o *Orchestrator) uninstall(ctx context.Context, inst *extension.Instance) error {
	return o.runCommand(ctx, inst, extension.OpUninstall, handlerstate.Uninstalled)
}

// update never alters persisted handler state (§4.8.1).
func (o *Orchestrator) update(ctx context.Context, inst *extension.Instance) error {
	return o.runCommand(ctx, inst, extension.OpUpdate, "")
}

// fail normalizes err into an *extensionerror.Error tagged with the current
// instance. Per §4.8.1/§4.9 the failure event itself is emitted by the
// Reconciler once handle() returns, not per transition, so this only shapes
// the error.
func (o *Orchestrator) fail(inst *extension.Instance, err error) error {
	extErr, ok := err.(*extensionerror.Error)
	if !ok {
		extErr = extensionerror.New(extensionerror.IoError, string(inst.CurrOperation), err)
	}
	return extErr.WithInstance(inst.Setting.Name, inst.CurrVersion)
}
