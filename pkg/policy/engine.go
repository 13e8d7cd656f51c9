package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/glazeui/glaze/pkg/engine"
)

// Engine evaluates advisory policies against finished transitions. It
// implements engine.PolicyEvaluator.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	logger   zerolog.Logger
	builtins []Policy
}

// compiledPolicy is a policy with its prepared deny query.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// evalInput is the document handed to Rego evaluation.
type evalInput struct {
	Transition engine.PolicyInput `json:"transition"`
	Context    evalContext        `json:"context"`
}

type evalContext struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
		builtins: BuiltinPolicies(),
	}
	if err := e.loadBuiltins(context.Background()); err != nil {
		return nil, fmt.Errorf("loading built-in policies: %w", err)
	}
	return e, nil
}

// EvaluateTransition runs every enabled policy against the finished
// transition and returns the findings as warning strings. Findings are
// advisory and never fail the transition.
func (e *Engine) EvaluateTransition(ctx context.Context, input engine.PolicyInput) ([]string, error) {
	result, err := e.Evaluate(ctx, input)
	if err != nil {
		return nil, err
	}
	warnings := make([]string, 0, len(result.Findings))
	for _, f := range result.Findings {
		warnings = append(warnings, fmt.Sprintf("%s: %s", f.Policy, f.Message))
	}
	return warnings, nil
}

// Evaluate runs every enabled policy and returns the full result.
func (e *Engine) Evaluate(ctx context.Context, input engine.PolicyInput) (*Result, error) {
	start := time.Now()
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc := evalInput{
		Transition: input,
		Context:    evalContext{Timestamp: start},
	}

	var findings []Finding
	evaluated := make([]string, 0, len(e.policies))
	for _, cp := range e.policies {
		if !cp.policy.Enabled {
			continue
		}
		evaluated = append(evaluated, cp.policy.Name)

		fs, err := e.evaluatePolicy(ctx, cp, doc)
		if err != nil {
			e.logger.Error().Err(err).
				Str("policy", cp.policy.Name).
				Str("session_id", input.SessionID).
				Msg("policy evaluation failed")
			continue
		}
		findings = append(findings, fs...)
	}
	sort.Strings(evaluated)

	e.logger.Debug().
		Str("session_id", input.SessionID).
		Int("findings", len(findings)).
		Dur("duration", time.Since(start)).
		Msg("policy evaluation completed")

	return &Result{
		Findings:          findings,
		EvaluatedPolicies: evaluated,
		EvaluatedAt:       start,
		Duration:          time.Since(start),
	}, nil
}

// evaluatePolicy runs one prepared deny query against the input.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, doc evalInput) ([]Finding, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(doc))
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", cp.policy.Name, err)
	}

	var findings []Finding
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				findings = append(findings, e.toFinding(cp.policy, d))
			}
		}
	}
	return findings, nil
}

// toFinding converts a deny result into a Finding.
func (e *Engine) toFinding(policy *Policy, result interface{}) Finding {
	finding := Finding{
		Policy:     policy.Name,
		Severity:   policy.Severity,
		DetectedAt: time.Now(),
	}
	switch v := result.(type) {
	case string:
		finding.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			finding.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			finding.Severity = Severity(sev)
		}
	default:
		finding.Message = fmt.Sprintf("%v", result)
	}
	return finding
}

// LoadPolicies loads and compiles policy files from the given paths.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("loading policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range policies {
		if err := e.compileLocked(ctx, &policies[i]); err != nil {
			return fmt.Errorf("compiling policy %s: %w", policies[i].Name, err)
		}
	}
	e.logger.Info().Int("count", len(policies)).Msg("policies loaded")
	return nil
}

// compileLocked parses and prepares a policy's deny query.
// Callers must hold e.mu.
func (e *Engine) compileLocked(ctx context.Context, policy *Policy) error {
	if _, err := ast.ParseModule(policy.Name, policy.Rego); err != nil {
		return fmt.Errorf("parsing policy: %w", err)
	}

	pkg := extractPackageName(policy.Rego)
	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query("data."+pkg+".deny"),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("preparing query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		query:    query,
		compiled: time.Now(),
	}
	e.logger.Debug().Str("policy", policy.Name).Msg("policy compiled")
	return nil
}

// extractPackageName extracts the package name from Rego code.
func extractPackageName(code string) string {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "glaze.policies"
}

func (e *Engine) loadBuiltins(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.builtins {
		if err := e.compileLocked(ctx, &e.builtins[i]); err != nil {
			return fmt.Errorf("built-in policy %s: %w", e.builtins[i].Name, err)
		}
	}
	return nil
}

// GetPolicy returns a loaded policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("policy toggled")
	return nil
}
