package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/dastgate/internal/config"
	"github.com/ppiankov/dastgate/internal/discovery"
	"github.com/ppiankov/dastgate/internal/policy"
	"github.com/spf13/cobra"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment readiness and diagnose common problems",
	Long: `Doctor validates your dastgate setup end-to-end:

  1. Config file - found and readable?
  2. Policy      - directory and rule file present?
  3. OPA         - installed, cached, or downloadable?
  4. Canonical   - health check input present?
  5. Gate file   - found and parseable?
  6. Storage     - directory writable?

Fix the issues it reports, then run 'dastgate evaluate' with confidence.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"output format: text or json")
}

type doctorCheck struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "warn", "fail"
	Detail string `json:"detail,omitempty"`
}

type doctorResult struct {
	Checks  []doctorCheck `json:"checks"`
	Summary string        `json:"summary"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := []doctorCheck{
		checkConfig(),
		checkPolicy(),
		checkOPA(),
		checkCanonicalInput(),
		checkGate(),
		checkStorage(),
	}

	result := doctorResult{Checks: checks, Summary: summarizeChecks(checks)}

	if doctorFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	return writeDoctorText(result)
}

func summarizeChecks(checks []doctorCheck) string {
	fails, warns := 0, 0
	for _, c := range checks {
		switch c.Status {
		case "fail":
			fails++
		case "warn":
			warns++
		}
	}

	if fails > 0 {
		return fmt.Sprintf("%d issue(s) found", fails)
	}
	if warns > 0 {
		return fmt.Sprintf("ok with %d warning(s)", warns)
	}
	return "all checks passed"
}

func writeDoctorText(result doctorResult) error {
	icons := map[string]string{
		"ok":   "✓",
		"warn": "△",
		"fail": "✗",
	}

	for _, c := range result.Checks {
		icon := icons[c.Status]
		if c.Detail != "" {
			fmt.Printf("  %s %-12s %s\n", icon, c.Name, c.Detail)
		} else {
			fmt.Printf("  %s %s\n", icon, c.Name)
		}
	}

	fmt.Printf("\n%s\n", result.Summary)
	return nil
}

func checkConfig() doctorCheck {
	path := configFile
	if path == "" {
		for _, candidate := range []string{config.FileName, config.ConfigPath()} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path == "" {
		return doctorCheck{
			Name:   "config",
			Status: "warn",
			Detail: "no config file found (using defaults). Run: dastgate init",
		}
	}
	if _, err := os.Stat(path); err != nil {
		return doctorCheck{Name: "config", Status: "fail", Detail: fmt.Sprintf("%s not readable: %v", path, err)}
	}

	return doctorCheck{Name: "config", Status: "ok", Detail: path}
}

func checkPolicy() doctorCheck {
	info, err := os.Stat(cfg.PolicyDir)
	if err != nil || !info.IsDir() {
		return doctorCheck{
			Name:   "policy",
			Status: "fail",
			Detail: fmt.Sprintf("policy directory %s does not exist", cfg.PolicyDir),
		}
	}

	rules := filepath.Join(cfg.PolicyDir, cfg.PolicyFile)
	if _, err := os.Stat(rules); err != nil {
		return doctorCheck{
			Name:   "policy",
			Status: "warn",
			Detail: fmt.Sprintf("%s not found (policy reference will point at a missing file)", rules),
		}
	}

	return doctorCheck{Name: "policy", Status: "ok", Detail: rules}
}

func checkOPA() doctorCheck {
	cacheDir := cfg.CacheDir("reports")
	loc := discovery.New(opaLookPath, opaGetenv, os.Stat).Locate(cacheDir, cfg.OPAVersion, cfg.OPADownloadURL)
	if loc.Found {
		return doctorCheck{
			Name:   "opa",
			Status: "ok",
			Detail: fmt.Sprintf("%s (%s)", loc.Path, loc.Origin),
		}
	}

	return doctorCheck{
		Name:   "opa",
		Status: "warn",
		Detail: fmt.Sprintf("not installed; will download %s", loc.DownloadURL),
	}
}

func checkCanonicalInput() doctorCheck {
	if _, err := os.Stat(cfg.CanonicalInput); err != nil {
		return doctorCheck{
			Name:   "canonical",
			Status: "warn",
			Detail: fmt.Sprintf("%s not found ('dastgate health' needs it)", cfg.CanonicalInput),
		}
	}
	return doctorCheck{Name: "canonical", Status: "ok", Detail: cfg.CanonicalInput}
}

func checkGate() doctorCheck {
	path := policy.FindGateFile("")
	if path == "" {
		return doctorCheck{Name: "gate", Status: "ok", Detail: "no gate file (OPA verdict only)"}
	}

	if _, err := policy.LoadGate(path); err != nil {
		return doctorCheck{Name: "gate", Status: "fail", Detail: err.Error()}
	}
	return doctorCheck{Name: "gate", Status: "ok", Detail: path}
}

func checkStorage() doctorCheck {
	storagePath := cfg.StorageDir

	info, err := os.Stat(storagePath)
	if err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "ok",
			Detail: fmt.Sprintf("%s (will be created on first --store)", storagePath),
		}
	}

	if !info.IsDir() {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s exists but is not a directory", storagePath),
		}
	}

	tmpFile := filepath.Join(storagePath, ".doctor-check")
	if err := os.WriteFile(tmpFile, []byte("ok"), 0o600); err != nil {
		return doctorCheck{
			Name:   "storage",
			Status: "fail",
			Detail: fmt.Sprintf("%s not writable: %v", storagePath, err),
		}
	}
	_ = os.Remove(tmpFile)

	return doctorCheck{Name: "storage", Status: "ok", Detail: storagePath}
}
