package common

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Version information (set via -ldflags during build)
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// versionFile is read from the executable's directory when the build left Version at "dev"
const versionFile = ".version"

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns version with build info
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// ResolveVersion applies the .version file shipped next to the binary
func ResolveVersion() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}
	return resolveVersionIn(filepath.Dir(exePath))
}

func resolveVersionIn(dir string) string {
	if Version != "dev" {
		return Version
	}

	f, err := os.Open(filepath.Join(dir, versionFile))
	if err != nil {
		return Version
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			Version = line
		}
	}
	return Version
}
