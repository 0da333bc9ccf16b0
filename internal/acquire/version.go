package acquire

import (
	"strings"

	"github.com/azure/walinuxagent-go/internal/extension"
	"github.com/azure/walinuxagent-go/internal/extensionerror"
	"github.com/azure/walinuxagent-go/internal/version"
)

const autoUpgrade = "auto"

// ResolveTargetVersion implements §4.4's target-version resolution: outside
// auto-upgrade the target is exactly the setting's version; under auto, the
// highest version sharing the setting's major series is selected from
// versionUris.
func ResolveTargetVersion(setting extension.Setting, order version.Order) (string, error) {
	if !strings.EqualFold(setting.UpgradePolicy, autoUpgrade) {
		return setting.Version, nil
	}

	major := strings.SplitN(setting.Version, ".", 2)[0]
	prefix := major + "."
	var candidates []string
	for _, vu := range setting.VersionUris {
		if strings.HasPrefix(vu.Version, prefix) {
			candidates = append(candidates, vu.Version)
		}
	}
	if len(candidates) == 0 {
		return "", extensionerror.Newf(extensionerror.NoMatchingVersion, "no versionUris entry matches major series %q", major)
	}
	return version.Max(order, candidates), nil
}

// ResolveURIs returns the ordered mirror list for targetVersion from
// setting.VersionUris.
func ResolveURIs(setting extension.Setting, targetVersion string) ([]string, error) {
	for _, vu := range setting.VersionUris {
		if vu.Version == targetVersion {
			if len(vu.URIs) == 0 {
				return nil, extensionerror.Newf(extensionerror.NoPackageUris, "versionUris entry for %q has no uris", targetVersion)
			}
			return vu.URIs, nil
		}
	}
	return nil, extensionerror.Newf(extensionerror.NoPackageUris, "no versionUris entry for version %q", targetVersion)
}
