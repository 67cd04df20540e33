package discovery

import (
	"os"
	"path/filepath"
	"runtime"
)

// LookPathFunc matches the signature of exec.LookPath.
type LookPathFunc func(file string) (string, error)

// GetenvFunc matches the signature of os.Getenv.
type GetenvFunc func(key string) string

// StatFunc matches the signature of os.Stat.
type StatFunc func(name string) (os.FileInfo, error)

// Origin says where a binary was found.
type Origin string

const (
	OriginEnv      Origin = "env"
	OriginPath     Origin = "path"
	OriginCache    Origin = "cache"
	OriginDownload Origin = "download"
	OriginNone     Origin = "none"
)

// Locator finds the OPA executable. Injectable deps make it fully testable.
type Locator struct {
	lookPath LookPathFunc
	getenv   GetenvFunc
	stat     StatFunc
	goos     string
	goarch   string
}

// New creates a Locator with the given dependency functions.
func New(lookPath LookPathFunc, getenv GetenvFunc, stat StatFunc) *Locator {
	return &Locator{
		lookPath: lookPath,
		getenv:   getenv,
		stat:     stat,
		goos:     runtime.GOOS,
		goarch:   runtime.GOARCH,
	}
}

// WithPlatform overrides the target platform (tests, cross-fetching).
func (l *Locator) WithPlatform(goos, goarch string) *Locator {
	l.goos = goos
	l.goarch = goarch
	return l
}

// BinaryLocation describes what was found for the OPA binary.
type BinaryLocation struct {
	Path        string `json:"path"`
	Origin      Origin `json:"origin"`
	Found       bool   `json:"found"`
	DownloadURL string `json:"download_url,omitempty"`
}

// Locate checks, in order: the OPA_BINARY override, PATH, then the cache
// directory. When nothing is found the result carries the cache path and
// the URL to download into it. No network calls are made here.
func (l *Locator) Locate(cacheDir, version, downloadBase string) BinaryLocation {
	if override := l.getenv(EnvBinary); override != "" {
		if l.isFile(override) {
			return BinaryLocation{Path: override, Origin: OriginEnv, Found: true}
		}
	}

	if path, err := l.lookPath(BinaryName); err == nil {
		return BinaryLocation{Path: path, Origin: OriginPath, Found: true}
	}

	cached := filepath.Join(cacheDir, CachedBinaryName(l.goos))
	if l.isFile(cached) {
		return BinaryLocation{Path: cached, Origin: OriginCache, Found: true}
	}

	return BinaryLocation{
		Path:        cached,
		Origin:      OriginNone,
		Found:       false,
		DownloadURL: DownloadURL(downloadBase, version, l.goos, l.goarch),
	}
}

// isFile checks if a path exists and is not a directory.
func (l *Locator) isFile(path string) bool {
	info, err := l.stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
