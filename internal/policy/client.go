package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/dastgate/internal/models"
)

// PolicyFile is the rule file recorded as the evaluation's policy reference.
const PolicyFile = "severity-rules.rego"

// Errors for each missing layer of an OPA response.
var (
	ErrEmptyOutput   = errors.New("OPA did not return output")
	ErrNoResult      = errors.New("OPA did not return an evaluation result")
	ErrNoExpressions = errors.New("OPA response is missing expressions")
	ErrNoValue       = errors.New("OPA response is missing the expression value")
)

// Evaluator runs a policy query against an input document on disk.
type Evaluator interface {
	Eval(ctx context.Context, inputPath, policyDir string) ([]byte, error)
}

// Client packages findings for the policy engine and decodes its verdict.
type Client struct {
	evaluator  Evaluator
	policyDir  string
	policyFile string
	inputPath  string
}

// NewClient creates a policy client. inputPath is where the request
// document is written before each evaluation.
func NewClient(evaluator Evaluator, policyDir, inputPath string) *Client {
	return &Client{
		evaluator:  evaluator,
		policyDir:  policyDir,
		policyFile: PolicyFile,
		inputPath:  inputPath,
	}
}

// WithPolicyFile overrides the rule file name recorded in evaluations.
func (c *Client) WithPolicyFile(name string) *Client {
	if name != "" {
		c.policyFile = name
	}
	return c
}

// InputPath returns where the request document is written.
func (c *Client) InputPath() string {
	return c.inputPath
}

// PolicyReference returns the rule file path recorded in evaluations.
func (c *Client) PolicyReference() string {
	return filepath.Join(c.policyDir, c.policyFile)
}

// Evaluate writes {app_name, findings} to the input path and asks the
// policy engine for a verdict.
func (c *Client) Evaluate(ctx context.Context, appName string, findings []models.Finding) (*models.Verdict, error) {
	if findings == nil {
		findings = []models.Finding{}
	}
	if err := WriteInput(c.inputPath, models.PolicyInput{AppName: appName, Findings: findings}); err != nil {
		return nil, err
	}
	return c.EvaluateFile(ctx, c.inputPath)
}

// EvaluateFile runs the policy engine against an existing input document.
func (c *Client) EvaluateFile(ctx context.Context, inputPath string) (*models.Verdict, error) {
	out, err := c.evaluator.Eval(ctx, inputPath, c.policyDir)
	if err != nil {
		return nil, err
	}
	return DecodeResponse(out)
}

// WriteInput writes the request document as indented JSON.
func WriteInput(path string, input models.PolicyInput) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create input directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal policy input: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write policy input: %w", err)
	}
	return nil
}

type opaResponse struct {
	Result []struct {
		Expressions []struct {
			Value json.RawMessage `json:"value"`
		} `json:"expressions"`
	} `json:"result"`
}

type verdictValue struct {
	Status          *string            `json:"status"`
	RiskScore       *float64           `json:"risk_score"`
	SeverityCounts  map[string]float64 `json:"severity_counts"`
	Violations      []string           `json:"violations"`
	Recommendations []string           `json:"recommendations"`
}

// DecodeResponse extracts the verdict from `opa eval --format json` output.
// The shape is {"result":[{"expressions":[{"value":{...}}]}]}. A missing
// status fails closed to FAIL.
func DecodeResponse(data []byte) (*models.Verdict, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyOutput
	}

	var resp opaResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode OPA response: %w", err)
	}
	if len(resp.Result) == 0 {
		return nil, ErrNoResult
	}
	exprs := resp.Result[0].Expressions
	if len(exprs) == 0 {
		return nil, ErrNoExpressions
	}
	raw := bytes.TrimSpace(exprs[0].Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNoValue
	}

	var v verdictValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode OPA verdict: %w", err)
	}

	verdict := &models.Verdict{
		Status:          models.StatusFail,
		Violations:      []string{},
		Recommendations: []string{},
	}
	if v.Status != nil {
		verdict.Status = models.ParseStatus(*v.Status)
	}
	if v.RiskScore != nil && *v.RiskScore > 0 {
		verdict.RiskScore = int(*v.RiskScore)
	}
	for key, n := range v.SeverityCounts {
		sev := models.Severity(strings.ToUpper(strings.TrimSpace(key)))
		if !sev.IsKnown() || n <= 0 {
			continue
		}
		verdict.SeverityCounts.Add(sev, int(n))
	}
	if v.Violations != nil {
		verdict.Violations = v.Violations
	}
	if v.Recommendations != nil {
		verdict.Recommendations = v.Recommendations
	}

	return verdict, nil
}
