// Package manifest provides typed views over HandlerManifest.json (read from
// an extracted extension package) and HandlerEnvironment.json (written by
// the engine for the handler to consume).
package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
)

const updateWithInstall = "updatewithinstall"

// rawManifestEntry mirrors the single element of the HandlerManifest.json
// array as written by extension authors.
type rawManifestEntry struct {
	HandlerManifest struct {
		InstallCommand     string `json:"installCommand"`
		UninstallCommand   string `json:"uninstallCommand"`
		UpdateCommand      string `json:"updateCommand"`
		EnableCommand      string `json:"enableCommand"`
		DisableCommand     string `json:"disableCommand"`
		RebootAfterInstall bool   `json:"rebootAfterInstall"`
		ReportHeartbeat    bool   `json:"reportHeartbeat"`
		UpdateMode         string `json:"updateMode"`
	} `json:"handlerManifest"`
}

// HandlerManifest is the typed accessor over a parsed HandlerManifest.json.
type HandlerManifest struct {
	installCommand     string
	uninstallCommand   string
	updateCommand      string
	enableCommand      string
	disableCommand     string
	rebootAfterInstall bool
	reportHeartbeat    bool
	updateMode         string
}

func (m HandlerManifest) InstallCommand() string   { return m.installCommand }
func (m HandlerManifest) UninstallCommand() string { return m.uninstallCommand }
func (m HandlerManifest) UpdateCommand() string    { return m.updateCommand }
func (m HandlerManifest) EnableCommand() string    { return m.enableCommand }
func (m HandlerManifest) DisableCommand() string   { return m.disableCommand }
func (m HandlerManifest) RebootAfterInstall() bool { return m.rebootAfterInstall }
func (m HandlerManifest) ReportHeartbeat() bool    { return m.reportHeartbeat }

// UpdatesWithInstall reports whether updateMode, compared case-insensitively,
// equals "updateWithInstall".
func (m HandlerManifest) UpdatesWithInstall() bool {
	return strings.ToLower(m.updateMode) == updateWithInstall
}

// CommandFor returns the command string for a named lifecycle operation.
func (m HandlerManifest) CommandFor(operation string) (string, bool) {
	switch operation {
	case "Install":
		return m.installCommand, true
	case "Uninstall":
		return m.uninstallCommand, true
	case "Update":
		return m.updateCommand, true
	case "Enable":
		return m.enableCommand, true
	case "Disable":
		return m.disableCommand, true
	default:
		return "", false
	}
}

// Parse decodes raw HandlerManifest.json bytes (a one-element JSON array)
// into a HandlerManifest, stripping a leading UTF-8 BOM if present.
func Parse(data []byte) (HandlerManifest, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	var entries []rawManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return HandlerManifest{}, extensionerror.New(extensionerror.MalformedManifest, "decode HandlerManifest.json", err)
	}
	if len(entries) == 0 {
		return HandlerManifest{}, extensionerror.Newf(extensionerror.MalformedManifest, "HandlerManifest.json has no elements")
	}
	e := entries[0].HandlerManifest
	if e.InstallCommand == "" || e.UninstallCommand == "" || e.UpdateCommand == "" ||
		e.EnableCommand == "" || e.DisableCommand == "" {
		return HandlerManifest{}, extensionerror.Newf(extensionerror.MalformedManifest, "missing required command in handlerManifest")
	}
	return HandlerManifest{
		installCommand:     e.InstallCommand,
		uninstallCommand:   e.UninstallCommand,
		updateCommand:      e.UpdateCommand,
		enableCommand:      e.EnableCommand,
		disableCommand:     e.DisableCommand,
		rebootAfterInstall: e.RebootAfterInstall,
		reportHeartbeat:    e.ReportHeartbeat,
		updateMode:         e.UpdateMode,
	}, nil
}

// Load reads and parses HandlerManifest.json from path.
func Load(path string) (HandlerManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HandlerManifest{}, extensionerror.New(extensionerror.IoError, "read "+path, err)
	}
	return Parse(data)
}

// Environment is the {handlerEnvironment:{...}} record the engine writes for
// the handler to consume.
type Environment struct {
	LogFolder     string
	ConfigFolder  string
	StatusFolder  string
	HeartbeatFile string
}

type rawEnvironmentEntry struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	HandlerEnvironment struct {
		LogFolder     string `json:"logFolder"`
		ConfigFolder  string `json:"configFolder"`
		StatusFolder  string `json:"statusFolder"`
		HeartbeatFile string `json:"heartbeatFile"`
	} `json:"handlerEnvironment"`
}

// WriteEnvironment writes the one-element HandlerEnvironment.json array to
// path.
func WriteEnvironment(path, name, version string, env Environment) error {
	entry := rawEnvironmentEntry{Name: name, Version: version}
	entry.HandlerEnvironment.LogFolder = env.LogFolder
	entry.HandlerEnvironment.ConfigFolder = env.ConfigFolder
	entry.HandlerEnvironment.StatusFolder = env.StatusFolder
	entry.HandlerEnvironment.HeartbeatFile = env.HeartbeatFile

	data, err := json.MarshalIndent([]rawEnvironmentEntry{entry}, "", "  ")
	if err != nil {
		return extensionerror.New(extensionerror.IoError, "encode HandlerEnvironment.json", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return extensionerror.New(extensionerror.IoError, "write "+path, err)
	}
	return nil
}
