package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/shopspring/decimal"
)

// decimalFunctions exposes exact decimal arithmetic to rule expressions.
// Amounts travel through CEL as canonical decimal strings so no comparison
// ever passes through a float.
func decimalFunctions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("decimal_gt",
			cel.Overload("decimal_gt_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					a, b, err := decimalPair(lhs, rhs)
					if err != nil {
						return types.NewErr("decimal_gt: %v", err)
					}
					return types.Bool(a.GreaterThan(b))
				}),
			),
		),
		cel.Function("decimal_multiple_of",
			cel.Overload("decimal_multiple_of_string_string",
				[]*cel.Type{cel.StringType, cel.StringType}, cel.BoolType,
				cel.BinaryBinding(func(lhs, rhs ref.Val) ref.Val {
					a, m, err := decimalPair(lhs, rhs)
					if err != nil {
						return types.NewErr("decimal_multiple_of: %v", err)
					}
					if m.IsZero() {
						return types.False
					}
					return types.Bool(a.Mod(m).IsZero())
				}),
			),
		),
		cel.Function("decimal_within",
			cel.Overload("decimal_within_string_string_string",
				[]*cel.Type{cel.StringType, cel.StringType, cel.StringType}, cel.BoolType,
				cel.FunctionBinding(func(args ...ref.Val) ref.Val {
					if len(args) != 3 {
						return types.NewErr("decimal_within: expected 3 arguments, got %d", len(args))
					}
					a, b, err := decimalPair(args[0], args[1])
					if err != nil {
						return types.NewErr("decimal_within: %v", err)
					}
					eps, err := toDecimal(args[2])
					if err != nil {
						return types.NewErr("decimal_within: %v", err)
					}
					return types.Bool(a.Sub(b).Abs().LessThan(eps))
				}),
			),
		),
	}
}

func decimalPair(lhs, rhs ref.Val) (decimal.Decimal, decimal.Decimal, error) {
	a, err := toDecimal(lhs)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	b, err := toDecimal(rhs)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return a, b, nil
}

func toDecimal(v ref.Val) (decimal.Decimal, error) {
	s, ok := v.(types.String)
	if !ok {
		return decimal.Zero, fmt.Errorf("expected string, got %s", v.Type())
	}
	d, err := decimal.NewFromString(string(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", string(s), err)
	}
	return d, nil
}
