package mapping

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/lyzr/pubmigrate/common/models"
)

// guard is a compiled CEL predicate over a source field
type guard struct {
	expr string
	prg  cel.Program
}

func newGuardEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("field", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return env, nil
}

func compileGuard(env *cel.Env, expr string) (*guard, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compilation error in %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("CEL guard %q must return bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return &guard{expr: expr, prg: prg}, nil
}

// allows evaluates the guard. Evaluation errors count as a failed guard.
func (g *guard) allows(name string, fieldType models.FieldType) bool {
	out, _, err := g.prg.Eval(map[string]any{
		"field": map[string]string{
			"name": name,
			"type": string(fieldType),
		},
	})
	if err != nil {
		return false
	}
	ok, isBool := out.Value().(bool)
	return isBool && ok
}
