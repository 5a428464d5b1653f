package acl

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Wildcard is the rule consulted when an action has no rule of its own.
const Wildcard = "*"

// PolicyChecker evaluates locally configured rules, one boolean expression
// per action. Expressions see acl, principal and action, for example
//
//	principal in ["wasm1alice", "wasm1bob"] && action != "migrate"
//
// An action without a rule and without a wildcard rule is denied.
type PolicyChecker struct {
	rules map[string]*vm.Program
}

func NewPolicyChecker(rules map[string]string) (*PolicyChecker, error) {
	p := &PolicyChecker{rules: make(map[string]*vm.Program, len(rules))}
	for action, src := range rules {
		if src == "" {
			return nil, fmt.Errorf("acl: rule for %q is empty", action)
		}
		program, err := expr.Compile(src, expr.Env(env("", "", "")), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("acl: compile rule for %q: %w", action, err)
		}
		p.rules[action] = program
	}
	return p, nil
}

func env(acl, principal, action string) map[string]any {
	return map[string]any{
		"acl":       acl,
		"principal": principal,
		"action":    action,
	}
}

func (p *PolicyChecker) IsAllowed(_ context.Context, acl, principal, action string) (bool, error) {
	program, ok := p.rules[action]
	if !ok {
		if program, ok = p.rules[Wildcard]; !ok {
			return false, nil
		}
	}
	out, err := expr.Run(program, env(acl, principal, action))
	if err != nil {
		return false, fmt.Errorf("acl: evaluate rule for %q: %w", action, err)
	}
	allowed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("acl: rule for %q returned %T", action, out)
	}
	return allowed, nil
}
