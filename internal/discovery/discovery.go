// Package discovery scans the handler library directory for an already
// installed version of a named extension.
package discovery

import (
	"os"

	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/paths"
	"github.com/azure/walinuxagent-go/internal/version"
)

// FindInstalled scans libDir for directories "<name>-<version>" and returns
// the highest installed version for name, per order. ok is false when no
// matching directory exists.
func FindInstalled(libDir, name string, order version.Order) (ver string, ok bool, err error) {
	entries, err := os.ReadDir(libDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, extensionerror.New(extensionerror.IoError, "readdir "+libDir, err)
	}

	var candidates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		discoveredName, discoveredVersion, splitErr := paths.SplitNameVersion(e.Name())
		if splitErr != nil {
			continue
		}
		if discoveredName != name {
			continue
		}
		candidates = append(candidates, discoveredVersion)
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	return version.Max(order, candidates), true, nil
}
