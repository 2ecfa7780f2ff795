package utils

import (
	"os/exec"
	"runtime/debug"
	"strings"
)

const (
	unknownVersion     = "unknown"
	developmentVersion = "(devel)"
)

// Version is set at link time with -ldflags "-X github.com/temirov/repo2txt/internal/utils.Version=v1.2.3".
var Version = ""

// GetApplicationVersion returns the link-time version, then the module version
// recorded in the build info, then the output of git describe run in the working
// directory, and finally "unknown".
func GetApplicationVersion() string {
	if Version != "" {
		return Version
	}
	if buildInfo, available := debug.ReadBuildInfo(); available {
		if moduleVersion := buildInfo.Main.Version; moduleVersion != "" && moduleVersion != developmentVersion {
			return moduleVersion
		}
	}
	// #nosec G204
	describeOutput, describeErr := exec.Command("git", "describe", "--tags", "--always", "--dirty").Output()
	if describeErr == nil {
		if described := strings.TrimSpace(string(describeOutput)); described != "" {
			return described
		}
	}
	return unknownVersion
}
