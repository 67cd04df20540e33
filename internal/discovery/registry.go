package discovery

import (
	"fmt"
	"strings"
)

// BinaryName is the executable looked up on PATH and in the cache.
const BinaryName = "opa"

// EnvBinary overrides binary discovery when it names an existing file.
const EnvBinary = "OPA_BINARY"

// DefaultDownloadBase is where OPA release binaries are published.
const DefaultDownloadBase = "https://openpolicyagent.org/downloads"

// archAliases maps machine names to the names used in release assets.
// runtime.GOARCH values already match; the aliases cover uname output.
var archAliases = map[string]string{
	"x86_64":  "amd64",
	"amd64":   "amd64",
	"aarch64": "arm64",
	"arm64":   "arm64",
}

// NormalizeArch maps a machine name to a release asset architecture.
func NormalizeArch(arch string) string {
	lower := strings.ToLower(arch)
	if mapped, ok := archAliases[lower]; ok {
		return mapped
	}
	return lower
}

// AssetName returns the release asset for a platform.
func AssetName(goos, goarch string) string {
	name := fmt.Sprintf("opa_%s_%s", strings.ToLower(goos), NormalizeArch(goarch))
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// DownloadURL builds the release URL for a version. "latest" and the
// empty string resolve to the rolling latest release.
func DownloadURL(base, version, goos, goarch string) string {
	if base == "" {
		base = DefaultDownloadBase
	}
	base = strings.TrimRight(base, "/")

	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" || version == "latest" {
		return fmt.Sprintf("%s/latest/%s", base, AssetName(goos, goarch))
	}
	return fmt.Sprintf("%s/v%s/%s", base, version, AssetName(goos, goarch))
}

// CachedBinaryName returns the file name used inside the cache directory.
func CachedBinaryName(goos string) string {
	if goos == "windows" {
		return BinaryName + ".exe"
	}
	return BinaryName
}
