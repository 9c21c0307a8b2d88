// Package envmod exposes process environment variables to test cases.
package envmod

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

// Name is the module name in the catalog.
const Name = "env"

// Module registers the env invocables.
type Module struct{}

// Register adds the module to the registry.
func (m *Module) Register(r *catalog.Registry) {
	r.RegisterModule(catalog.ModuleMeta{
		Name:        Name,
		Description: "Read environment variables.",
		Invocables: []*catalog.Invocable{
			{
				Name:        "get",
				Description: "Return one variable. Without a fallback an unset variable is an error.",
				Params: []catalog.Param{
					catalog.Required("name", "string", "Variable name."),
					catalog.Optional("fallback", "raw", nil, "Value used when the variable is unset."),
				},
				Func: get,
			},
			{
				Name:        "all",
				Description: "Return every variable as a mapping.",
				Func:        all,
			},
		},
	})
}

func get(_ context.Context, params map[string]any) (any, error) {
	name := fmt.Sprint(params["name"])
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if fb, ok := params["fallback"]; ok && fb != nil {
		return fb, nil
	}
	return nil, fmt.Errorf("environment variable %s is not set", name)
}

func all(context.Context, map[string]any) (any, error) {
	env := make(map[string]any)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env, nil
}
