package protoc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"

	"golang.org/x/mod/semver"
)

// MinimumVersion is the oldest protoc release supported.
const MinimumVersion = "v3.1.0"

// EnvProtoc overrides the protoc binary.
const EnvProtoc = "PROTOC"

var versionRegexp = regexp.MustCompile(`([0-9]+)\.([0-9]+)(?:\.([0-9]+))?`)

// Maps GOOS/GOARCH to the name of a bundled protoc release binary.
var platformToBinary = map[string]string{
	"linux/386":     "protoc-linux-x86_32",
	"linux/amd64":   "protoc-linux-x86_64",
	"linux/arm64":   "protoc-linux-aarch_64",
	"linux/ppc64le": "protoc-linux-ppcle_64",
	"darwin/amd64":  "protoc-osx-x86_64",
	"darwin/arm64":  "protoc-osx-aarch_64",
}

// BundledName returns the bundled binary name for the given platform, or "" if none is shipped.
func BundledName(goos, goarch string) string {
	if goos == "windows" {
		return "protoc-win32.exe"
	}
	return platformToBinary[goos+"/"+goarch]
}

// Locate returns the protoc binary to use, by order of preference:
// explicit path, $PROTOC, a bundled binary in bundleDir, `protoc` from PATH.
func Locate(explicit, bundleDir string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv(EnvProtoc); env != "" {
		return env
	}
	if bundleDir != "" {
		if name := BundledName(runtime.GOOS, runtime.GOARCH); name != "" {
			path := filepath.Join(bundleDir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return "protoc"
}

// ParseVersion extracts a canonical semver from `protoc --version` output.
func ParseVersion(output string) (string, error) {
	matches := versionRegexp.FindStringSubmatch(output)
	if matches == nil {
		return "", fmt.Errorf("no version found in %q", output)
	}
	patch := matches[3]
	if patch == "" {
		patch = "0"
	}
	version := fmt.Sprintf("v%s.%s.%s", matches[1], matches[2], patch)
	if !semver.IsValid(version) {
		return "", fmt.Errorf("invalid version %q", version)
	}
	return version, nil
}

// Version runs `protoc --version` and returns the parsed version.
func Version(ctx context.Context, path string) (string, error) {
	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("program `%s` not installed (is it in PATH?): %w", path, err)
	}
	return ParseVersion(string(output))
}

// CheckVersion returns an error if the protoc at path is older than MinimumVersion.
func CheckVersion(ctx context.Context, path string) error {
	version, err := Version(ctx, path)
	if err != nil {
		return err
	}
	return Supported(version)
}

// Supported returns an error if version, as returned by Version, is older than MinimumVersion.
func Supported(version string) error {
	if semver.Compare(version, MinimumVersion) < 0 {
		return fmt.Errorf("invalid version of protoc (required at least %s, got %s)", semver.MajorMinor(MinimumVersion), version)
	}
	return nil
}
