package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"go.uber.org/zap"

	"soc-portal/internal/policy/domain"
)

const allowQuery = "data.socportal.access.allow"

// Default Rego policy: admins may do everything, users may use the self-service resources,
// SOC users may also upload rosters.
const defaultRegoPolicy = `package socportal.access

default allow := false

admin_roles := {"Super Admin", "Admin"}

user_resources := {
	"roster.read",
	"shift.exchange",
	"downtime.report",
	"downtime.read",
	"notifications",
	"profile",
}

allow if {
	input.user_type == "admin"
	admin_roles[input.role]
}

allow if {
	input.user_type == "user"
	user_resources[input.resource]
}

allow if {
	input.user_type == "user"
	input.stored_role == "SOC"
	input.resource == "roster.upload"
}
`

// PolicySource lists stored policies that replace the default while any are enabled.
type PolicySource interface {
	ListEnabled(ctx context.Context) ([]*domain.Policy, error)
}

// OPAEvaluator evaluates access decisions using OPA Rego.
type OPAEvaluator struct {
	source   PolicySource
	logger   *zap.Logger
	prepared rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the default policy. source may be nil, in which case only the default is used.
func NewOPAEvaluator(ctx context.Context, source PolicySource, logger *zap.Logger) (*OPAEvaluator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler, err := compile([]string{defaultRegoPolicy})
	if err != nil {
		return nil, fmt.Errorf("compile default policy: %w", err)
	}
	prepared, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare default policy: %w", err)
	}
	return &OPAEvaluator{source: source, logger: logger, prepared: prepared}, nil
}

// HealthCheck verifies that the in-process OPA Rego engine can compile and evaluate the default policy.
// Does not call the policy source or database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compile([]string{defaultRegoPolicy})
	if err != nil {
		return fmt.Errorf("compile default policy: %w", err)
	}
	in := Input{Role: "Admin", UserType: "admin", Resource: ResourceAdminUsers}
	rs, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler), rego.Input(in.toMap())).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

// Allow evaluates the enabled stored policies, or the default when none are enabled or they fail to compile.
// An evaluation error denies.
func (e *OPAEvaluator) Allow(ctx context.Context, in Input) (bool, error) {
	if rules := e.storedRules(ctx); len(rules) > 0 {
		compiler, err := compile(rules)
		if err == nil {
			rs, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler), rego.Input(in.toMap())).Eval(ctx)
			if err == nil {
				return allowed(rs), nil
			}
			e.logger.Warn("policy: stored policy evaluation failed, using default", zap.Error(err))
		} else {
			e.logger.Warn("policy: stored policy compile failed, using default", zap.Error(err))
		}
	}
	rs, err := e.prepared.Eval(ctx, rego.EvalInput(in.toMap()))
	if err != nil {
		return false, fmt.Errorf("eval access policy: %w", err)
	}
	return allowed(rs), nil
}

func (e *OPAEvaluator) storedRules(ctx context.Context) []string {
	if e.source == nil {
		return nil
	}
	policies, err := e.source.ListEnabled(ctx)
	if err != nil {
		e.logger.Warn("policy: failed to load stored policies", zap.Error(err))
		return nil
	}
	var rules []string
	for _, p := range policies {
		if p.Enabled && p.Rules != "" {
			rules = append(rules, p.Rules)
		}
	}
	return rules
}

func compile(policies []string) (*ast.Compiler, error) {
	modules := make(map[string]string, len(policies))
	for i, p := range policies {
		modules[fmt.Sprintf("policy_%d.rego", i)] = p
	}
	return ast.CompileModules(modules)
}

func allowed(rs rego.ResultSet) bool {
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false
	}
	v, ok := rs[0].Expressions[0].Value.(bool)
	return ok && v
}

func (in Input) toMap() map[string]interface{} {
	return map[string]interface{}{
		"role":        in.Role,
		"stored_role": in.StoredRole,
		"user_type":   in.UserType,
		"resource":    in.Resource,
	}
}

// Validate compiles rules on their own and checks they define data.socportal.access.allow.
func Validate(ctx context.Context, rules string) error {
	compiler, err := compile([]string{rules})
	if err != nil {
		return fmt.Errorf("compile policy: %w", err)
	}
	in := Input{Role: "Admin", UserType: "admin", Resource: ResourceAdminUsers}
	rs, err := rego.New(rego.Query(allowQuery), rego.Compiler(compiler), rego.Input(in.toMap())).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy does not define %s", allowQuery)
	}
	return nil
}
