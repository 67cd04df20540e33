package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/dastgate/internal/guard"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/spf13/cobra"
)

// healthCacheDir keeps the health-check OPA download apart from scan runs.
var healthCacheDir = filepath.Join("reports", ".opa-health-cache")

var (
	healthPolicyDir      string
	healthInput          string
	healthExpectedStatus string
	healthMaxRisk        int
	healthOPAVersion     string
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the policy against a canonical input to detect drift",
	Long: `Health runs the OPA policy on a canonical input document with a known
expected outcome. It exits 1 when the status differs from --expected-status
or the risk score exceeds --max-risk, so policy edits that silently change
verdicts are caught.

Example:
  dastgate health --policy-dir policies \
    --input policies/canonical-input.json --expected-status PASS --max-risk 5`,
	RunE: runHealth,
}

func init() {
	healthCmd.Flags().StringVar(&healthPolicyDir, "policy-dir", "",
		"path to the policy directory (default: config policy_dir)")
	healthCmd.Flags().StringVar(&healthInput, "input", "",
		"canonical evaluation input (default: config canonical_input)")
	healthCmd.Flags().StringVar(&healthExpectedStatus, "expected-status", "",
		"expected status for the canonical dataset (default: config expected_status)")
	healthCmd.Flags().IntVar(&healthMaxRisk, "max-risk", -1,
		"maximum acceptable risk score (default: config max_risk)")
	healthCmd.Flags().StringVar(&healthOPAVersion, "opa-version", "",
		"OPA release version (default: config opa_version)")
}

func runHealth(cmd *cobra.Command, args []string) error {
	policyDir := firstNonEmpty(healthPolicyDir, cfg.PolicyDir)
	inputPath := firstNonEmpty(healthInput, cfg.CanonicalInput)
	expected := models.ParseStatus(firstNonEmpty(healthExpectedStatus, cfg.ExpectedStatus))
	maxRisk := healthMaxRisk
	if maxRisk < 0 {
		maxRisk = cfg.MaxRisk
	}

	if info, err := os.Stat(inputPath); err != nil || info.IsDir() {
		return &ValidationError{Message: fmt.Sprintf("Canonical input not found: %s", inputPath)}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cacheDir := healthCacheDir
	if cfg.OPACacheDir != "" {
		cacheDir = cfg.OPACacheDir
	}
	client, err := newPolicyClient(ctx, cacheDir, firstNonEmpty(healthOPAVersion, cfg.OPAVersion), policyDir, inputPath)
	if err != nil {
		return err
	}

	verdict, err := client.EvaluateFile(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	fmt.Printf("Policy health check status: %s, risk score: %d\n", verdict.Status, verdict.RiskScore)
	if err := guard.CheckDrift(verdict, expected, maxRisk); err != nil {
		return err
	}

	fmt.Println("Policy health check passed.")
	return nil
}
