// Package assertmod provides comparison invocables. A comparison that does
// not hold is reported as an assertion failure, never as an error.
package assertmod

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/spf13/cast"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

// Name is the module name in the catalog.
const Name = "assert"

// Module registers the assert invocables.
type Module struct{}

// Register adds the module to the registry.
func (m *Module) Register(r *catalog.Registry) {
	r.RegisterModule(catalog.ModuleMeta{
		Name:        Name,
		Description: "Checks on literal or chained values.",
		Invocables: []*catalog.Invocable{
			{
				Name:        "equals",
				Description: "Pass when actual equals expected.",
				Params: []catalog.Param{
					catalog.Required("actual", "raw", "Observed value."),
					catalog.Required("expected", "raw", "Expected value."),
				},
				Func: equals,
			},
			{
				Name:        "contains",
				Description: "Pass when text contains substring.",
				Params: []catalog.Param{
					catalog.Required("text", "string", "Text to search."),
					catalog.Required("substring", "string", "Required substring."),
				},
				Func: contains,
			},
			{
				Name:        "matches",
				Description: "Pass when text matches a regular expression.",
				Params: []catalog.Param{
					catalog.Required("text", "string", "Text to match."),
					catalog.Required("pattern", "string", "Regular expression."),
				},
				Func: matches,
			},
			{
				Name:        "expr",
				Description: "Pass when a boolean expression holds. The expression sees value and every key of vars.",
				Params: []catalog.Param{
					catalog.Required("expression", "string", "Boolean expression, e.g. value.status_code == 200."),
					catalog.Optional("value", "raw", nil, "Value bound as `value`."),
					catalog.Optional("vars", "raw", nil, "Extra variables."),
				},
				Func: evalExpr,
			},
		},
	})
}

// equals compares structurally, then numerically when both sides are
// numbers, so that a literal 5 equals a chained 5.0 decoded from JSON.
func equals(_ context.Context, params map[string]any) (any, error) {
	actual, expected := params["actual"], params["expected"]
	if reflect.DeepEqual(actual, expected) || numbersEqual(actual, expected) {
		return true, nil
	}
	return nil, catalog.Failf("expected %#v, got %#v", expected, actual)
}

func numbersEqual(a, b any) bool {
	if !isNumber(a) || !isNumber(b) {
		return false
	}
	fa, errA := cast.ToFloat64E(a)
	fb, errB := cast.ToFloat64E(b)
	return errA == nil && errB == nil && fa == fb
}

func isNumber(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func contains(_ context.Context, params map[string]any) (any, error) {
	text, sub := fmt.Sprint(params["text"]), fmt.Sprint(params["substring"])
	if !strings.Contains(text, sub) {
		return nil, catalog.Failf("%q does not contain %q", text, sub)
	}
	return true, nil
}

func matches(_ context.Context, params map[string]any) (any, error) {
	pattern := fmt.Sprint(params["pattern"])
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}
	text := fmt.Sprint(params["text"])
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil, catalog.Failf("%q does not match %q", text, pattern)
	}
	if len(m) > 1 {
		return m[1], nil
	}
	return m[0], nil
}

func evalExpr(_ context.Context, params map[string]any) (any, error) {
	src := strings.TrimSpace(fmt.Sprint(params["expression"]))
	if src == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	env := map[string]any{}
	if vars, ok := params["vars"].(map[string]any); ok {
		for k, v := range vars {
			env[k] = v
		}
	}
	env["value"] = params["value"]

	program, err := expr.Compile(src, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", src, err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval expression %q: %w", src, err)
	}
	if ok, _ := out.(bool); !ok {
		return nil, catalog.Failf("expression %q is false", src)
	}
	return true, nil
}
