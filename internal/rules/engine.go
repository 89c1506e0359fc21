// Package rules provides the CEL-Go based rule evaluation engine.
package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/govguard/internal/domain"
)

// RuleDef is one entry of the ordered rule table.
type RuleDef struct {
	ID         domain.FlagID `json:"id"`
	Label      string        `json:"label"`
	Expression string        `json:"expression"`
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Def     RuleDef
	Program cel.Program
}

// Engine evaluates an invoice against a fixed, ordered rule table.
// It holds no mutable state after construction and is safe for
// concurrent use.
type Engine struct {
	env    *cel.Env
	rules  []*CompiledRule
	logger *slog.Logger
}

// NewEnv creates the CEL environment rule expressions are compiled against.
func NewEnv() (*cel.Env, error) {
	opts := []cel.EnvOption{
		cel.Variable("invoice_id", cel.StringType),
		cel.Variable("amount", cel.StringType),
		cel.Variable("vendor", cel.StringType),
		cel.Variable("department", cel.StringType),
		cel.Variable("issued_at", cel.TimestampType),
		cel.Variable("stale_before", cel.TimestampType),
		cel.Variable("history", cel.ListType(cel.StringType)),
		cel.Variable("high_risk_departments", cel.ListType(cel.StringType)),
		cel.Variable("watched_vendors", cel.ListType(cel.StringType)),
	}
	opts = append(opts, decimalFunctions()...)

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine compiles defs in order. Every expression must type-check to
// bool and rule IDs must be unique.
func NewEngine(defs []RuleDef) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		env:    env,
		rules:  make([]*CompiledRule, 0, len(defs)),
		logger: slog.Default().With("component", "rules"),
	}

	seen := make(map[domain.FlagID]struct{}, len(defs))
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("rule id is required")
		}
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("duplicate rule id: %s", def.ID)
		}
		seen[def.ID] = struct{}{}

		compiled, err := e.compileRule(def)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiled)
	}

	return e, nil
}

// NewDefaultEngine returns an engine loaded with BuiltinRules.
func NewDefaultEngine() (*Engine, error) {
	return NewEngine(BuiltinRules())
}

// Evaluate normalizes inv against ref and runs every rule in table order.
// Triggered flags are returned in table order. A rule that fails at
// runtime is logged and counted as not triggered.
func (e *Engine) Evaluate(inv domain.InvoiceRecord, ref time.Time) []domain.Flag {
	n := Normalize(inv, ref)
	activation := e.activation(n, ref)

	flags := make([]domain.Flag, 0, len(e.rules))
	for _, rule := range e.rules {
		if e.evaluateRule(rule, activation, n.InvoiceID) {
			flags = append(flags, domain.Flag{ID: rule.Def.ID, Label: rule.Def.Label})
		}
	}
	return flags
}

func (e *Engine) activation(inv domain.InvoiceRecord, ref time.Time) map[string]any {
	history := make([]string, 0, len(inv.PreviousTransactions))
	for _, tx := range inv.PreviousTransactions {
		history = append(history, tx.Amount.String())
	}

	return map[string]any{
		"invoice_id":            inv.InvoiceID,
		"amount":                inv.Amount.String(),
		"vendor":                inv.Vendor,
		"department":            inv.Department,
		"issued_at":             CalendarDate(inv.Date),
		"stale_before":          StaleBefore(ref),
		"history":               history,
		"high_risk_departments": highRiskDepartments,
		"watched_vendors":       watchedVendors,
	}
}

// evaluateRule reports whether a single rule triggered.
func (e *Engine) evaluateRule(rule *CompiledRule, activation map[string]any, invoiceID string) bool {
	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		e.logger.Warn("rule evaluation failed",
			"rule_id", rule.Def.ID,
			"invoice_id", invoiceID,
			"error", err,
		)
		return false
	}

	triggered, ok := out.(types.Bool)
	if !ok {
		e.logger.Warn("rule returned non-bool value",
			"rule_id", rule.Def.ID,
			"invoice_id", invoiceID,
			"type", out.Type(),
		)
		return false
	}
	return bool(triggered)
}

// Rules returns the loaded rule table in evaluation order.
func (e *Engine) Rules() []RuleDef {
	defs := make([]RuleDef, 0, len(e.rules))
	for _, r := range e.rules {
		defs = append(defs, r.Def)
	}
	return defs
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	return len(e.rules)
}

func (e *Engine) compileRule(def RuleDef) (*CompiledRule, error) {
	ast, issues := e.env.Compile(def.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", def.ID, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", def.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", def.ID, err)
	}

	return &CompiledRule{
		Def:     def,
		Program: program,
	}, nil
}
