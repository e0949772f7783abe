package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/flowgpt/pkg/schema"
)

// MaxConditionLength matches the width of the edges.condition column.
const MaxConditionLength = 255

// conditionEnv is the shape of the state an edge condition may refer to.
var conditionEnv = map[string]any{
	"text":            "",
	"summary":         "",
	"translated_text": "",
	"config":          map[string]any{},
	"metadata":        map[string]any{},
}

// ExprEngine compiles edge conditions with expr-lang/expr. Conditions are
// stored and displayed but never change the walk, so the engine mostly acts
// as a syntax check at write time.
// Compiled *vm.Program objects are cached and reused across goroutines.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEngine returns an engine with an empty program cache.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{
		cache: make(map[string]*vm.Program),
	}
}

func (e *ExprEngine) Name() string {
	return "expr"
}

// CheckCondition validates an edge condition. Empty conditions are allowed.
func (e *ExprEngine) CheckCondition(condition string) error {
	if condition == "" {
		return nil
	}
	if len(condition) > MaxConditionLength {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"condition is %d characters long, at most %d allowed", len(condition), MaxConditionLength)
	}
	_, err := e.getOrCompile(condition)
	return err
}

// Evaluate runs expression against a state document.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}

	prg, err := e.getOrCompile(expression)
	if err != nil {
		return nil, err
	}

	env := make(map[string]any, len(conditionEnv)+len(data))
	for k, v := range conditionEnv {
		env[k] = v
	}
	for k, v := range data {
		env[k] = v
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out, nil
}

func (e *ExprEngine) getOrCompile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expression]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(expression,
		expr.Env(conditionEnv),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"expr compile error in %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	e.cache[expression] = prg
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)
