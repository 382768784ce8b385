package services

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
)

type compiledRule struct {
	rule    types.Rule
	program cel.Program
}

// RuleSet validates encoded records against a schema's required fields and
// CEL rules. The record is bound as `r` (map of field name to value).
type RuleSet struct {
	schema types.Schema
	rules  []compiledRule
}

func newRulesEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("r", cel.MapType(cel.StringType, cel.DynType)))
}

func CompileRules(schema types.Schema) (*RuleSet, error) {
	rs := &RuleSet{schema: schema}
	if len(schema.Rules) == 0 {
		return rs, nil
	}
	env, err := newRulesEnv()
	if err != nil {
		return nil, err
	}
	for _, r := range schema.Rules {
		ast, issues := env.Compile(strings.TrimSpace(r.Expr))
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("schema %s rule %s: %w", schema.Name, r.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("schema %s rule %s: expression must return bool", schema.Name, r.Name)
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("schema %s rule %s: %w", schema.Name, r.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{rule: r, program: program})
	}
	return rs, nil
}

// Check returns one message per violated requirement; nil means valid.
// fields must be a full encoded record.
func (rs *RuleSet) Check(fields map[string]any) []string {
	var out []string
	for _, f := range rs.schema.Fields {
		if !f.Required {
			continue
		}
		if s, ok := fields[f.Name].(string); f.Kind == types.KindString && (!ok || strings.TrimSpace(s) == "") {
			out = append(out, f.Name+" es obligatorio")
		}
	}
	for _, cr := range rs.rules {
		val, _, err := cr.program.Eval(map[string]any{"r": fields})
		if err != nil {
			out = append(out, fmt.Sprintf("%s: %v", cr.rule.Name, err))
			continue
		}
		if ok, isBool := val.Value().(bool); !isBool || !ok {
			msg := cr.rule.Message
			if msg == "" {
				msg = cr.rule.Name
			}
			out = append(out, msg)
		}
	}
	return out
}
