// Package paths centralizes the on-disk layout of the extension lifecycle
// engine: every file or directory the rest of the engine touches is named
// here, anchored at a process-wide Paths record rather than package-level
// globals.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
)

const ownerOnly = 0700

// Paths anchors every derived path at the two directories the daemon injects
// at construction: the handler library directory and the per-extension log
// root. The engine holds no other process-wide state.
type Paths struct {
	LibDir    string
	ExtLogDir string
}

// JoinNameVersion renders the canonical "<name>-<version>" directory name.
func JoinNameVersion(name, version string) string {
	return name + "-" + version
}

// SplitNameVersion recovers (name, version) from a directory name, splitting
// on the LAST '-' so that names containing '-' round-trip correctly.
func SplitNameVersion(dirName string) (name, version string, err error) {
	idx := strings.LastIndex(dirName, "-")
	if idx <= 0 || idx == len(dirName)-1 {
		return "", "", extensionerror.Newf(extensionerror.InvalidExtDirName, "%q has no valid name-version separator", dirName)
	}
	return dirName[:idx], dirName[idx+1:], nil
}

// BaseDir is <libDir>/<name>-<version>.
func (p Paths) BaseDir(name, version string) string {
	return filepath.Join(p.LibDir, JoinNameVersion(name, version))
}

func (p Paths) ManifestPath(name, version string) string {
	return filepath.Join(p.BaseDir(name, version), "HandlerManifest.json")
}

func (p Paths) EnvironmentPath(name, version string) string {
	return filepath.Join(p.BaseDir(name, version), "HandlerEnvironment.json")
}

func (p Paths) HeartbeatPath(name, version string) string {
	return filepath.Join(p.BaseDir(name, version), "heartbeat.log")
}

func (p Paths) StatusDir(name, version string) string {
	return filepath.Join(p.BaseDir(name, version), "status")
}

func (p Paths) StatusFilePath(name, version string, seqNo int) string {
	return filepath.Join(p.StatusDir(name, version), fmt.Sprintf("%d.status", seqNo))
}

func (p Paths) ConfigDir(name, version string) string {
	return filepath.Join(p.BaseDir(name, version), "config")
}

func (p Paths) SettingsFilePath(name, version string, seqNo int) string {
	return filepath.Join(p.ConfigDir(name, version), fmt.Sprintf("%d.settings", seqNo))
}

func (p Paths) HandlerStateFilePath(name, version string) string {
	return filepath.Join(p.ConfigDir(name, version), "HandlerState")
}

func (p Paths) LogDir(name, version string) string {
	return filepath.Join(p.ExtLogDir, name, version)
}

func (p Paths) CommandExecutionLogPath(name, version string) string {
	return filepath.Join(p.LogDir(name, version), "CommandExecution.log")
}

// EnsureDir creates dir and all missing parents with owner-only permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, ownerOnly); err != nil {
		return extensionerror.New(extensionerror.IoError, "mkdir "+dir, err)
	}
	return nil
}
