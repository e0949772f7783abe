package expressions

import "context"

// Engine evaluates expressions against plain JSON-shaped data.
// Three implementations: CEL (history filters), GoJQ (status projections),
// Expr (edge conditions).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
