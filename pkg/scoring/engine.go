// Package scoring computes lead scores from expression rules.
package scoring

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Rule awards Points when Condition evaluates to true
type Rule struct {
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Points    int    `json:"points"`
}

// DefaultRules are used when the organization has no `lead_scoring_rules` setting
var DefaultRules = []Rule{
	{Name: "temperatura quente", Condition: `temperature == "quente"`, Points: 30},
	{Name: "temperatura morna", Condition: `temperature == "morno"`, Points: 15},
	{Name: "indicação", Condition: `source == "indicacao" || hasReferrer`, Points: 20},
	{Name: "produto definido", Condition: `product != "" && product != "indefinido"`, Points: 10},
	{Name: "possui clínica", Condition: `hasClinic`, Points: 15},
	{Name: "email informado", Condition: `email != ""`, Points: 10},
	{Name: "profissão informada", Condition: `profession != ""`, Points: 5},
	{Name: "em negociação", Condition: `stage in ["proposta", "negociacao"]`, Points: 10},
}

// Engine compiles and caches rule programs
type Engine struct {
	programCache map[string]*vm.Program
	mu           sync.RWMutex
}

// NewEngine creates a new scoring engine
func NewEngine() *Engine {
	return &Engine{programCache: make(map[string]*vm.Program)}
}

// Score sums the points of matching rules and clamps the result to 0-100.
// A rule that fails to compile or run contributes nothing.
func (e *Engine) Score(rules []Rule, env map[string]interface{}) int {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	total := 0
	for _, rule := range rules {
		ok, err := e.Match(rule.Condition, env)
		if err != nil || !ok {
			continue
		}
		total += rule.Points
	}
	if total < 0 {
		return 0
	}
	if total > 100 {
		return 100
	}
	return total
}

// Match evaluates a boolean condition
func (e *Engine) Match(condition string, env map[string]interface{}) (bool, error) {
	program, err := e.getProgram(condition, env)
	if err != nil {
		return false, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return a boolean", condition)
	}
	return b, nil
}

// Validate compiles every rule and reports the first broken one
func (e *Engine) Validate(rules []Rule) error {
	env := LeadEnv(LeadFacts{})
	for _, rule := range rules {
		if strings.TrimSpace(rule.Condition) == "" {
			return fmt.Errorf("rule %q has no condition", rule.Name)
		}
		if _, err := e.getProgram(rule.Condition, env); err != nil {
			return fmt.Errorf("rule %q: %w", rule.Name, err)
		}
	}
	return nil
}

func (e *Engine) getProgram(condition string, env map[string]interface{}) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.programCache[condition]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double check
	if prog, ok := e.programCache[condition]; ok {
		return prog, nil
	}

	program, err := expr.Compile(condition,
		expr.Env(env),
		expr.AsBool(),
		expr.Function("LOWER", func(params ...interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("LOWER requires 1 argument")
			}
			s, ok := params[0].(string)
			if !ok {
				return nil, fmt.Errorf("LOWER argument must be string")
			}
			return strings.ToLower(s), nil
		}),
	)
	if err != nil {
		return nil, err
	}

	e.programCache[condition] = program
	return program, nil
}

// LeadFacts is the data a rule can see
type LeadFacts struct {
	Stage       string
	Temperature string
	Source      string
	Product     string
	Email       string
	Profession  string
	HasClinic   bool
	HasReferrer bool
	MainPain    string
}

// LeadEnv flattens facts into the expression environment
func LeadEnv(f LeadFacts) map[string]interface{} {
	return map[string]interface{}{
		"stage":       f.Stage,
		"temperature": f.Temperature,
		"source":      f.Source,
		"product":     f.Product,
		"email":       f.Email,
		"profession":  f.Profession,
		"hasClinic":   f.HasClinic,
		"hasReferrer": f.HasReferrer,
		"mainPain":    f.MainPain,
	}
}
