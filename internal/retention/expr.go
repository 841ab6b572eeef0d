package retention

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
)

// Expr compiles an expression predicate. The expression sees the field
// under `value`, the whole payload under `data`, and every payload field by
// name. It must evaluate to a boolean.
//
//	Expr("value > 0.9")
//	Expr("epoch % 10 == 0 && loss < best")
func Expr(source string) (Predicate, error) {
	if source == "" {
		return Predicate{}, fmt.Errorf("retention: expression must not be empty")
	}
	program, err := exprlang.Compile(source,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return Predicate{}, fmt.Errorf("retention: compile %q: %w", source, err)
	}
	return Predicate{kind: predicateExpr, program: program, source: source}, nil
}

// MustExpr is like Expr but panics if the expression does not compile.
func MustExpr(source string) Predicate {
	p, err := Expr(source)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Predicate) evalExpr(value any, data map[string]any) bool {
	if p.program == nil {
		return false
	}
	env := make(map[string]any, len(data)+2)
	for k, v := range data {
		env[k] = v
	}
	env["value"] = value
	env["data"] = data
	out, err := exprlang.Run(p.program, env)
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}
