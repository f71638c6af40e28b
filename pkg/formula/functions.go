package formula

import (
	"math"

	"github.com/expr-lang/expr"

	"github.com/ajitpratap0/roast/pkg/errors"
)

// math functions on top of the expr builtins (abs, ceil, floor, round, min, max)
var functions = []expr.Option{
	unary("sqrt", math.Sqrt),
	unary("exp", math.Exp),
	unary("log", math.Log),
	unary("log10", math.Log10),
	unary("sin", math.Sin),
	unary("cos", math.Cos),
	unary("tan", math.Tan),
	unary("asin", math.Asin),
	unary("acos", math.Acos),
	unary("atan", math.Atan),
	binary("atan2", math.Atan2),
	binary("pow", math.Pow),
	binary("hypot", math.Hypot),
	expr.Function("isnan", func(params ...interface{}) (interface{}, error) {
		if len(params) != 1 {
			return nil, errors.New(errors.ErrorTypeFormula, "isnan expects one argument")
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		return math.IsNaN(x), nil
	}),
}

func unary(name string, fn func(float64) float64) expr.Option {
	return expr.Function(name, func(params ...interface{}) (interface{}, error) {
		if len(params) != 1 {
			return nil, errors.Newf(errors.ErrorTypeFormula, "%s expects one argument", name)
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		return fn(x), nil
	})
}

func binary(name string, fn func(float64, float64) float64) expr.Option {
	return expr.Function(name, func(params ...interface{}) (interface{}, error) {
		if len(params) != 2 {
			return nil, errors.Newf(errors.ErrorTypeFormula, "%s expects two arguments", name)
		}
		x, err := toFloat(params[0])
		if err != nil {
			return nil, err
		}
		y, err := toFloat(params[1])
		if err != nil {
			return nil, err
		}
		return fn(x, y), nil
	})
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Newf(errors.ErrorTypeFormula, "expected a number, got %T", v)
}
