package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/dastgate/internal/config"
	"github.com/ppiankov/dastgate/internal/guard"
	"github.com/ppiankov/dastgate/internal/models"
	"github.com/ppiankov/dastgate/internal/runner"
	"github.com/ppiankov/dastgate/internal/storage"
)

const opaFailVerdict = `{"result":[{"expressions":[{"value":{
	"status":"FAIL","risk_score":12,
	"severity_counts":{"CRITICAL":0,"HIGH":2,"MEDIUM":2,"LOW":0,"INFO":1},
	"violations":["high severity findings present"],
	"recommendations":["Fix reflected XSS"]}}]}]}`

const opaPassVerdict = `{"result":[{"expressions":[{"value":{"status":"PASS","risk_score":2}}]}]}`

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testEnv is a temp working directory with a policy dir and a fake OPA.
type testEnv struct {
	dir   string
	calls [][]string
}

// setupEnv chdirs into a fresh temp dir, installs a config and swaps the
// OPA seams for a fake that answers with output.
func setupEnv(t *testing.T, output string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll("policies", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join("policies", "severity-rules.rego"), []byte("package dast\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := config.DefaultConfig()
	c.StorageDir = filepath.Join(dir, ".dastgate")
	withTestConfig(t, c)

	env := &testEnv{dir: dir}
	t.Setenv("OPA_BINARY", "")

	oldExec, oldLookPath, oldNow := opaExec, opaLookPath, now
	t.Cleanup(func() {
		opaExec, opaLookPath, now = oldExec, oldLookPath, oldNow
	})
	opaLookPath = func(string) (string, error) { return "/fake/bin/opa", nil }
	opaExec = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		env.calls = append(env.calls, append([]string{name}, args...))
		return []byte(output), nil
	}
	now = func() time.Time { return fixedNow }

	return env
}

// resetEvaluateFlags restores evaluate flags after the test.
func resetEvaluateFlags(t *testing.T) {
	t.Helper()
	oldApp, oldZAP, oldNuclei, oldOut := evalAppName, evalZAPReport, evalNucleiReport, evalOutput
	oldVersion, oldPolicy, oldStore, oldNoGate := evalOPAVersion, evalPolicyDir, evalStore, evalNoGate
	t.Cleanup(func() {
		evalAppName, evalZAPReport, evalNucleiReport, evalOutput = oldApp, oldZAP, oldNuclei, oldOut
		evalOPAVersion, evalPolicyDir, evalStore, evalNoGate = oldVersion, oldPolicy, oldStore, oldNoGate
	})
	evalOPAVersion, evalPolicyDir, evalStore, evalNoGate = "", "", false, false
}

func fixturePath(t *testing.T, name string) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	return filepath.Join(wd, "..", "collector", "testdata", name)
}

func writeEvaluation(t *testing.T, path string, eval *models.Evaluation) {
	t.Helper()
	data, err := json.MarshalIndent(eval, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func sampleEvaluation(risk int, at time.Time) *models.Evaluation {
	findings := []models.Finding{
		{Source: models.SourceZAP, Scanner: models.SourceZAP, Name: "CSP Header Not Set", Severity: models.SeverityMedium, Location: "https://shop/", RuleID: "10038"},
		{Source: models.SourceZAP, Scanner: models.SourceZAP, Name: "CSP Header Not Set", Severity: models.SeverityMedium, Location: "https://shop/cart", RuleID: "10038"},
		{Source: models.SourceNuclei, Scanner: models.SourceNuclei, Name: "Exposed Git", Severity: models.SeverityHigh, Location: "https://shop/.git/config", TemplateID: "exposed-git"},
	}
	return &models.Evaluation{
		AppName:        "shop",
		Status:         models.StatusWarn,
		RiskScore:      risk,
		SeverityCounts: models.CountSeverities(findings),
		TotalFindings:  len(findings),
		Findings:       findings,
		Violations:     []string{},
		AnalysisTime:   at,
	}
}

// --- evaluate ---

func TestRunEvaluateWritesEvaluation(t *testing.T) {
	zap := fixturePath(t, "zap-report.json")
	nuclei := fixturePath(t, "nuclei-report.json")
	env := setupEnv(t, opaFailVerdict)
	resetEvaluateFlags(t)

	evalAppName = "shop"
	evalZAPReport = zap
	evalNucleiReport = nuclei
	evalOutput = filepath.Join("reports", "evaluation.json")

	var err error
	out := captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	if err != nil {
		t.Fatalf("runEvaluate: %v", err)
	}

	for _, want := range []string{
		"Using policy directory: policies",
		"Evaluation complete: FAIL",
		"Risk score: 12",
		"Input payload: " + filepath.Join("reports", "dast-input.json"),
		"Policy reference: " + filepath.Join("policies", "severity-rules.rego"),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}

	eval, err := storage.LoadFile(evalOutput)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if eval.Status != models.StatusFail || eval.RiskScore != 12 {
		t.Errorf("unexpected verdict %s/%d", eval.Status, eval.RiskScore)
	}
	if eval.TotalFindings != 5 || len(eval.Findings) != 5 {
		t.Errorf("expected 5 findings, got %d/%d", eval.TotalFindings, len(eval.Findings))
	}
	if eval.SeverityCounts.High != 2 {
		t.Errorf("severity counts should come from the verdict, got %+v", eval.SeverityCounts)
	}
	if !eval.AnalysisTime.Equal(fixedNow) {
		t.Errorf("analysis_time = %s", eval.AnalysisTime)
	}

	var input models.PolicyInput
	data, err := os.ReadFile(filepath.Join("reports", "dast-input.json"))
	if err != nil {
		t.Fatalf("input document not written: %v", err)
	}
	if err := json.Unmarshal(data, &input); err != nil {
		t.Fatal(err)
	}
	if input.AppName != "shop" || len(input.Findings) != 5 {
		t.Errorf("unexpected input %s/%d", input.AppName, len(input.Findings))
	}

	if len(env.calls) != 1 {
		t.Fatalf("expected one OPA call, got %d", len(env.calls))
	}
	got := strings.Join(env.calls[0], " ")
	want := "/fake/bin/opa eval --format json --input " + filepath.Join("reports", "dast-input.json") + " --data policies data.dast.evaluation"
	if got != want {
		t.Errorf("OPA command = %q, want %q", got, want)
	}
}

func TestRunEvaluateMissingReportsYieldNoFindings(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetEvaluateFlags(t)

	evalAppName = "shop"
	evalZAPReport = "missing-zap.json"
	evalNucleiReport = "missing-nuclei.json"
	evalOutput = filepath.Join("reports", "evaluation.json")

	var err error
	captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	if err != nil {
		t.Fatalf("runEvaluate: %v", err)
	}

	eval, err := storage.LoadFile(evalOutput)
	if err != nil {
		t.Fatal(err)
	}
	if eval.TotalFindings != 0 || eval.Findings == nil {
		t.Errorf("expected empty non-nil findings, got %v", eval.Findings)
	}
}

func TestRunEvaluateRequiresAppName(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetEvaluateFlags(t)
	evalAppName = ""
	evalOutput = "reports/evaluation.json"

	var vErr *ValidationError
	if err := runEvaluate(evaluateCmd, nil); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestRunEvaluateMissingPolicyDir(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetEvaluateFlags(t)
	evalAppName = "shop"
	evalOutput = "reports/evaluation.json"
	evalPolicyDir = "does-not-exist"

	var err error
	captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	var vErr *ValidationError
	if !errors.As(err, &vErr) || !strings.Contains(err.Error(), "Policy directory does not exist") {
		t.Errorf("expected policy dir ValidationError, got %v", err)
	}
	if exitCodeOf(t, err) != ExitInvalidInput {
		t.Error("missing policy dir should exit 2")
	}
}

func TestRunEvaluateOPAFailure(t *testing.T) {
	setupEnv(t, "")
	resetEvaluateFlags(t)
	opaExec = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("partial"), errors.New("exit status 1")
	}
	evalAppName = "shop"
	evalOutput = "reports/evaluation.json"

	var err error
	captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	var evalErr *runner.EvalError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvalError, got %v", err)
	}
	if evalErr.Stdout != "partial" {
		t.Errorf("Stdout = %q", evalErr.Stdout)
	}
	if _, statErr := os.Stat("reports/evaluation.json"); !os.IsNotExist(statErr) {
		t.Error("no evaluation should be written when OPA fails")
	}
}

func TestRunEvaluateEmptyOPAOutput(t *testing.T) {
	setupEnv(t, "  ")
	resetEvaluateFlags(t)
	evalAppName = "shop"
	evalOutput = "reports/evaluation.json"

	var err error
	captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	if err == nil || !strings.Contains(err.Error(), "OPA did not return output") {
		t.Errorf("expected empty output error, got %v", err)
	}
}

func TestRunEvaluateDownloadsOPA(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetEvaluateFlags(t)
	opaLookPath = func(string) (string, error) { return "", errors.New("not found") }

	fake := &fakeDownloader{}
	oldDownloader := newDownloader
	t.Cleanup(func() { newDownloader = oldDownloader })
	newDownloader = func() downloader { return fake }

	evalAppName = "shop"
	evalOutput = filepath.Join("reports", "evaluation.json")
	evalOPAVersion = "0.61.0"

	var err error
	out := captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	if err != nil {
		t.Fatalf("runEvaluate: %v", err)
	}
	if !strings.HasPrefix(fake.url, "https://openpolicyagent.org/downloads/v0.61.0/opa_") {
		t.Errorf("download url = %q", fake.url)
	}
	if fake.dest != filepath.Join("reports", ".opa-cache", "opa") && !strings.HasSuffix(fake.dest, "opa.exe") {
		t.Errorf("download dest = %q", fake.dest)
	}
	if !strings.Contains(out, "Downloading OPA from") {
		t.Errorf("expected download notice:\n%s", out)
	}
}

type fakeDownloader struct {
	url  string
	dest string
}

func (f *fakeDownloader) Download(ctx context.Context, url, dest string) error {
	f.url, f.dest = url, dest
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte("#!/bin/sh\n"), 0o755)
}

func TestRunEvaluateGateFailure(t *testing.T) {
	setupEnv(t, opaFailVerdict)
	resetEvaluateFlags(t)

	gate := "version: \"1\"\nrules:\n  max_risk_score: 10\n  fail_on_status: [FAIL]\n"
	if err := os.WriteFile(".dastgate-gate.yaml", []byte(gate), 0o644); err != nil {
		t.Fatal(err)
	}

	evalAppName = "shop"
	evalOutput = "reports/evaluation.json"

	var err error
	out := captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	var gateErr *GateFailedError
	if !errors.As(err, &gateErr) {
		t.Fatalf("expected GateFailedError, got %v", err)
	}
	if len(gateErr.Violations) != 2 {
		t.Errorf("expected 2 violations, got %v", gateErr.Violations)
	}
	if !strings.Contains(out, "gate violation: risk score 12 exceeds limit 10") {
		t.Errorf("expected violation line:\n%s", out)
	}
	if _, statErr := os.Stat("reports/evaluation.json"); statErr != nil {
		t.Error("evaluation should be written before the gate runs")
	}

	evalNoGate = true
	captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	if err != nil {
		t.Errorf("--no-gate should skip the gate, got %v", err)
	}
}

func TestRunEvaluateStoreAddsTrend(t *testing.T) {
	env := setupEnv(t, opaFailVerdict)
	resetEvaluateFlags(t)

	prev := sampleEvaluation(4, fixedNow.Add(-24*time.Hour))
	if _, err := storage.NewLocal(cfg.StorageDir).SaveEvaluation(prev); err != nil {
		t.Fatal(err)
	}

	evalAppName = "shop"
	evalOutput = "reports/evaluation.json"
	evalStore = true

	var err error
	out := captureStdout(t, func() { err = runEvaluate(evaluateCmd, nil) })
	if err != nil {
		t.Fatalf("runEvaluate: %v", err)
	}
	if !strings.Contains(out, "↑ +8 from previous run") {
		t.Errorf("expected trend against stored run:\n%s", out)
	}

	runs, err := storage.NewLocal(filepath.Join(env.dir, ".dastgate")).ListRuns()
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 stored runs, got %d", len(runs))
	}
}

// exitCodeOf maps err to an exit code, discarding the error log.
func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	var code int
	captureStderr(t, func() { code = HandleError(err) })
	return code
}

// --- report ---

func TestRunReport(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldIn, oldOut, oldArt, oldStore, oldTuning := reportInput, reportOutput, reportArtifactsURL, reportStorageURL, reportTuningJSON
	t.Cleanup(func() {
		reportInput, reportOutput, reportArtifactsURL, reportStorageURL, reportTuningJSON = oldIn, oldOut, oldArt, oldStore, oldTuning
	})

	writeEvaluation(t, "reports/evaluation.json", sampleEvaluation(7, fixedNow))
	reportInput = "reports/evaluation.json"
	reportOutput = "reports/summary.md"
	reportArtifactsURL = "https://ci.example.com/run/1"
	reportStorageURL = ""
	reportTuningJSON = "reports/missing-tuning.json"

	var err error
	out := captureStdout(t, func() { err = runReport(reportCmd, nil) })
	if err != nil {
		t.Fatalf("runReport: %v", err)
	}
	if !strings.Contains(out, "Report generated: reports/summary.md") {
		t.Errorf("stdout = %q", out)
	}

	data, err := os.ReadFile("reports/summary.md")
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{
		"## DAST Security Scan Report",
		"**Application:** shop",
		"### Attack surface highlights",
		"### Automated tuning guidance",
		"https://ci.example.com/run/1",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRunReportMissingInput(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldIn, oldOut := reportInput, reportOutput
	t.Cleanup(func() { reportInput, reportOutput = oldIn, oldOut })

	reportInput = "nope.json"
	reportOutput = "out.md"

	var vErr *ValidationError
	if err := runReport(reportCmd, nil); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if _, err := os.Stat("out.md"); !os.IsNotExist(err) {
		t.Error("no report should be written for missing input")
	}
}

// --- tune ---

func TestRunTune(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldIn, oldOut, oldJSON, oldLimit := tuneInput, tuneOutput, tuneJSON, tuneLimit
	t.Cleanup(func() { tuneInput, tuneOutput, tuneJSON, tuneLimit = oldIn, oldOut, oldJSON, oldLimit })

	writeEvaluation(t, "reports/evaluation.json", sampleEvaluation(7, fixedNow))
	tuneInput = "reports/evaluation.json"
	tuneOutput = "reports/tuning.md"
	tuneJSON = "reports/tuning.json"
	tuneLimit = 0

	var err error
	out := captureStdout(t, func() { err = runTune(tuneCmd, nil) })
	if err != nil {
		t.Fatalf("runTune: %v", err)
	}
	if !strings.Contains(out, "Tuning guidance written to reports/tuning.md and reports/tuning.json") {
		t.Errorf("stdout = %q", out)
	}

	var summary models.TuningSummary
	data, err := os.ReadFile("reports/tuning.json")
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatal(err)
	}
	if summary.GeneratedAt != "2026-03-01 12:00 UTC" {
		t.Errorf("generated_at = %q", summary.GeneratedAt)
	}
	if len(summary.TopFindings) != 2 || summary.TopFindings[0].Rule != "10038" || summary.TopFindings[0].Count != 2 {
		t.Errorf("unexpected top findings %+v", summary.TopFindings)
	}

	md, err := os.ReadFile("reports/tuning.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(md), "configs/zap-config.conf") {
		t.Errorf("tuning markdown should point at the ZAP config:\n%s", md)
	}

	// The report picks the tuning summary up
	oldRIn, oldROut, oldRT := reportInput, reportOutput, reportTuningJSON
	t.Cleanup(func() { reportInput, reportOutput, reportTuningJSON = oldRIn, oldROut, oldRT })
	reportInput, reportOutput, reportTuningJSON = "reports/evaluation.json", "reports/summary.md", "reports/tuning.json"
	captureStdout(t, func() { err = runReport(reportCmd, nil) })
	if err != nil {
		t.Fatalf("runReport: %v", err)
	}
	report, _ := os.ReadFile("reports/summary.md")
	if !strings.Contains(string(report), "2026-03-01 12:00 UTC") {
		t.Error("report should embed the tuning summary")
	}
}

// --- regression ---

func resetRegressionFlags(t *testing.T) {
	t.Helper()
	oldCur, oldPrev, oldThr := regressionCurrent, regressionPrevious, regressionThreshold
	t.Cleanup(func() { regressionCurrent, regressionPrevious, regressionThreshold = oldCur, oldPrev, oldThr })
	regressionPrevious = ""
	regressionThreshold = -1
}

func TestRunRegression(t *testing.T) {
	tests := []struct {
		name     string
		previous int
		current  int
		wantErr  bool
		wantLine string
	}{
		{"within threshold", 10, 15, false, "Regression guard passed."},
		{"improvement", 20, 5, false, "delta: -15"},
		{"over threshold", 10, 16, true, "delta: 6"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, opaPassVerdict)
			resetRegressionFlags(t)

			writeEvaluation(t, "cur.json", sampleEvaluation(tt.current, fixedNow))
			writeEvaluation(t, "prev.json", sampleEvaluation(tt.previous, fixedNow.Add(-time.Hour)))
			regressionCurrent = "cur.json"
			regressionPrevious = "prev.json"

			var err error
			out := captureStdout(t, func() { err = runRegression(regressionCmd, nil) })
			if !strings.Contains(out, tt.wantLine) {
				t.Errorf("stdout missing %q:\n%s", tt.wantLine, out)
			}
			var regErr *guard.RegressionError
			if tt.wantErr != errors.As(err, &regErr) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunRegressionMissingPreviousSkips(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetRegressionFlags(t)

	writeEvaluation(t, "cur.json", sampleEvaluation(50, fixedNow))
	regressionCurrent = "cur.json"
	regressionPrevious = "missing.json"

	var err error
	out := captureStdout(t, func() { err = runRegression(regressionCmd, nil) })
	if err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	if !strings.Contains(out, "No previous evaluation found, skipping regression check.") {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunRegressionFallsBackToStorage(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetRegressionFlags(t)

	store := storage.NewLocal(cfg.StorageDir)
	for _, e := range []*models.Evaluation{
		sampleEvaluation(2, fixedNow.Add(-48*time.Hour)),
		sampleEvaluation(3, fixedNow.Add(-24*time.Hour)),
		sampleEvaluation(40, fixedNow),
	} {
		if _, err := store.SaveEvaluation(e); err != nil {
			t.Fatal(err)
		}
	}

	writeEvaluation(t, "cur.json", sampleEvaluation(40, fixedNow))
	regressionCurrent = "cur.json"
	regressionThreshold = 5

	var err error
	out := captureStdout(t, func() { err = runRegression(regressionCmd, nil) })
	if !strings.Contains(out, "previous: 3, delta: 37") {
		t.Errorf("expected comparison with the run before current:\n%s", out)
	}
	var regErr *guard.RegressionError
	if !errors.As(err, &regErr) || regErr.Threshold != 5 {
		t.Errorf("expected RegressionError with threshold 5, got %v", err)
	}
}

// --- health ---

func resetHealthFlags(t *testing.T) {
	t.Helper()
	oldDir, oldIn, oldStatus, oldRisk, oldVersion := healthPolicyDir, healthInput, healthExpectedStatus, healthMaxRisk, healthOPAVersion
	t.Cleanup(func() {
		healthPolicyDir, healthInput, healthExpectedStatus, healthMaxRisk, healthOPAVersion = oldDir, oldIn, oldStatus, oldRisk, oldVersion
	})
	healthPolicyDir, healthInput, healthExpectedStatus, healthMaxRisk, healthOPAVersion = "", "", "", -1, ""
}

func writeCanonicalInput(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(filepath.Join("policies", "canonical-input.json"), []byte(`{"app_name":"canonical","findings":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRunHealthPass(t *testing.T) {
	env := setupEnv(t, opaPassVerdict)
	resetHealthFlags(t)
	writeCanonicalInput(t)

	var err error
	out := captureStdout(t, func() { err = runHealth(healthCmd, nil) })
	if err != nil {
		t.Fatalf("runHealth: %v", err)
	}
	if !strings.Contains(out, "Policy health check status: PASS, risk score: 2") || !strings.Contains(out, "Policy health check passed.") {
		t.Errorf("stdout = %q", out)
	}
	if len(env.calls) != 1 || !strings.Contains(strings.Join(env.calls[0], " "), "--input "+filepath.Join("policies", "canonical-input.json")) {
		t.Errorf("OPA should run on the canonical input, got %v", env.calls)
	}
}

func TestRunHealthDrift(t *testing.T) {
	setupEnv(t, opaFailVerdict)
	resetHealthFlags(t)
	writeCanonicalInput(t)

	var err error
	captureStdout(t, func() { err = runHealth(healthCmd, nil) })
	var mismatch *guard.StatusMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected StatusMismatchError, got %v", err)
	}
	if err.Error() != "unexpected policy status: FAIL (expected PASS)" {
		t.Errorf("message = %q", err.Error())
	}

	healthExpectedStatus = "fail"
	healthMaxRisk = 10
	captureStdout(t, func() { err = runHealth(healthCmd, nil) })
	var riskErr *guard.RiskExceededError
	if !errors.As(err, &riskErr) {
		t.Errorf("expected RiskExceededError, got %v", err)
	}
}

func TestRunHealthMissingInput(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	resetHealthFlags(t)

	err := runHealth(healthCmd, nil)
	var vErr *ValidationError
	if !errors.As(err, &vErr) || !strings.Contains(err.Error(), "Canonical input not found") {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// --- history ---

func TestRunHistoryText(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldLast, oldFormat := historyLast, historyFormat
	t.Cleanup(func() { historyLast, historyFormat = oldLast, oldFormat })
	historyLast, historyFormat = 7, "text"

	var err error
	out := captureStdout(t, func() { err = runHistory(historyCmd, nil) })
	if err != nil {
		t.Fatalf("runHistory: %v", err)
	}
	if !strings.Contains(out, "No stored evaluations.") {
		t.Errorf("stdout = %q", out)
	}

	store := storage.NewLocal(cfg.StorageDir)
	for i, risk := range []int{10, 6} {
		if _, err := store.SaveEvaluation(sampleEvaluation(risk, fixedNow.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}
	out = captureStdout(t, func() { err = runHistory(historyCmd, nil) })
	if err != nil {
		t.Fatalf("runHistory: %v", err)
	}
	if !strings.Contains(out, "Evaluation History") || !strings.Contains(out, "Latest change: improving ↓ (10 → 6)") {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunHistoryJSON(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldLast, oldFormat := historyLast, historyFormat
	t.Cleanup(func() { historyLast, historyFormat = oldLast, oldFormat })
	historyLast, historyFormat = 0, "json"

	if _, err := storage.NewLocal(cfg.StorageDir).SaveEvaluation(sampleEvaluation(9, fixedNow)); err != nil {
		t.Fatal(err)
	}

	var err error
	out := captureStdout(t, func() { err = runHistory(historyCmd, nil) })
	if err != nil {
		t.Fatalf("runHistory: %v", err)
	}

	var result historyOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(result.Runs) != 1 || result.Runs[0].RiskScore != 9 {
		t.Errorf("unexpected runs %+v", result.Runs)
	}
	if result.Summary == nil || result.Summary.TimeRange != "Single run" {
		t.Errorf("unexpected summary %+v", result.Summary)
	}
}

func TestRunHistoryInvalidFormat(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldFormat := historyFormat
	t.Cleanup(func() { historyFormat = oldFormat })
	historyFormat = "xml"

	var vErr *ValidationError
	if err := runHistory(historyCmd, nil); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// --- browse ---

func TestRunBrowseRequiresTerminal(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldTerm := isTerminal
	t.Cleanup(func() { isTerminal = oldTerm })
	isTerminal = func() bool { return false }

	var vErr *ValidationError
	if err := runBrowse(browseCmd, []string{"x.json"}); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestRunBrowseWithHistory(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldTerm, oldRun := isTerminal, runTUI
	t.Cleanup(func() { isTerminal, runTUI = oldTerm, oldRun })
	isTerminal = func() bool { return true }

	var gotEval *models.Evaluation
	var gotTrend *models.RiskTrend
	var gotHistory *models.TrendSummary
	runTUI = func(eval *models.Evaluation, trend *models.RiskTrend, history *models.TrendSummary) error {
		gotEval, gotTrend, gotHistory = eval, trend, history
		return nil
	}

	store := storage.NewLocal(cfg.StorageDir)
	if _, err := store.SaveEvaluation(sampleEvaluation(3, fixedNow.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveEvaluation(sampleEvaluation(8, fixedNow)); err != nil {
		t.Fatal(err)
	}

	if err := runBrowse(browseCmd, nil); err != nil {
		t.Fatalf("runBrowse: %v", err)
	}
	if gotEval == nil || gotEval.RiskScore != 8 {
		t.Fatalf("expected latest stored run, got %+v", gotEval)
	}
	if gotTrend == nil || gotTrend.Delta != 5 {
		t.Errorf("expected trend +5, got %+v", gotTrend)
	}
	if gotHistory == nil || len(gotHistory.RiskSparkline) != 2 {
		t.Errorf("expected 2-run history, got %+v", gotHistory)
	}
}

func TestRunBrowseNoRuns(t *testing.T) {
	setupEnv(t, opaPassVerdict)
	oldTerm := isTerminal
	t.Cleanup(func() { isTerminal = oldTerm })
	isTerminal = func() bool { return true }

	var vErr *ValidationError
	if err := runBrowse(browseCmd, nil); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

// --- init ---

func TestRunInit(t *testing.T) {
	env := setupEnv(t, opaPassVerdict)
	oldPath, oldPrint, oldGlobal := initPath, initPrint, initGlobal
	t.Cleanup(func() { initPath, initPrint, initGlobal = oldPath, oldPrint, oldGlobal })

	initPath = filepath.Join(env.dir, "dastgate.yaml")
	initPrint, initGlobal = false, false
	cfg.PolicyDir = "rego"

	var err error
	out := captureStdout(t, func() { err = runInit(initCmd, nil) })
	if err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if !strings.Contains(out, "Config written to") {
		t.Errorf("stdout = %q", out)
	}

	loaded, err := config.LoadFromFile(initPath)
	if err != nil {
		t.Fatalf("written config should load: %v", err)
	}
	if loaded.PolicyDir != "rego" {
		t.Errorf("policy_dir = %q", loaded.PolicyDir)
	}

	initPrint = true
	out = captureStdout(t, func() { err = runInit(initCmd, nil) })
	if err != nil || !strings.Contains(out, "# dastgate configuration") {
		t.Errorf("--print output = %q, err %v", out, err)
	}
}

func TestLoadTuningSummary(t *testing.T) {
	setupEnv(t, opaPassVerdict)

	if got := loadTuningSummary(""); got != nil {
		t.Errorf("empty path should yield nil, got %+v", got)
	}
	if got := loadTuningSummary("missing.json"); got != nil {
		t.Errorf("missing file should yield nil, got %+v", got)
	}

	if err := os.WriteFile("bad.json", []byte(`{"generated_at":"","top_findings":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	var got *models.TuningSummary
	stderr := captureStderr(t, func() { got = loadTuningSummary("bad.json") })
	if got != nil {
		t.Error("inconsistent summary should be ignored")
	}
	if !strings.Contains(stderr, "generated_at") {
		t.Errorf("expected the reason to be logged, got %q", stderr)
	}

	if err := os.WriteFile("good.json", []byte(`{"generated_at":"2026-03-01 12:00 UTC","top_findings":[{"source":"ZAP","rule":"10038","count":2}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := loadTuningSummary("good.json"); got == nil || len(got.TopFindings) != 1 {
		t.Errorf("expected summary, got %+v", got)
	}
}
