package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/ppiankov/dastgate/internal/discovery"
	"github.com/ppiankov/dastgate/internal/policy"
	"github.com/ppiankov/dastgate/internal/release"
	"github.com/ppiankov/dastgate/internal/runner"
)

// downloader fetches a release binary to dest.
type downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Seams swapped out in tests.
var (
	opaExec       runner.ExecFunc        = runner.CommandExec
	opaLookPath   discovery.LookPathFunc = exec.LookPath
	newDownloader                        = func() downloader { return release.New(0) }
)

// opaGetenv resolves the binary override from config before the process env.
func opaGetenv(key string) string {
	if key == discovery.EnvBinary && cfg.OPABinary != "" {
		return cfg.OPABinary
	}
	return os.Getenv(key)
}

// resolveOPA finds the OPA binary, downloading it into cacheDir when it
// is neither overridden, on PATH, nor cached.
func resolveOPA(ctx context.Context, cacheDir, version string) (string, error) {
	loc := discovery.New(opaLookPath, opaGetenv, os.Stat).Locate(cacheDir, version, cfg.OPADownloadURL)
	if loc.Found {
		logVerbose("Using OPA from %s: %s", loc.Origin, loc.Path)
		return loc.Path, nil
	}

	fmt.Printf("Downloading OPA from %s\n", loc.DownloadURL)
	if err := newDownloader().Download(ctx, loc.DownloadURL, loc.Path); err != nil {
		return "", fmt.Errorf("failed to download OPA binary: %w", err)
	}
	logVerbose("Cached OPA at %s", loc.Path)
	return loc.Path, nil
}

// newPolicyClient wires discovery, download and the OPA runner into a
// policy client for policyDir.
func newPolicyClient(ctx context.Context, cacheDir, version, policyDir, inputPath string) (*policy.Client, error) {
	if info, err := os.Stat(policyDir); err != nil || !info.IsDir() {
		return nil, &ValidationError{Message: fmt.Sprintf("Policy directory does not exist: %s", policyDir)}
	}

	binary, err := resolveOPA(ctx, cacheDir, version)
	if err != nil {
		return nil, err
	}

	r := runner.New(opaExec, runner.Config{
		Binary:  binary,
		Query:   cfg.OPAQuery,
		Timeout: cfg.OPATimeout,
	})
	logDebug("OPA command: %v", r.Args(inputPath, policyDir))

	return policy.NewClient(r, policyDir, inputPath).WithPolicyFile(cfg.PolicyFile), nil
}
