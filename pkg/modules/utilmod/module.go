// Package utilmod holds small helpers for composing test cases.
package utilmod

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

// Name is the module name in the catalog.
const Name = "util"

// Module registers the util invocables.
type Module struct{}

// Register adds the module to the registry.
func (m *Module) Register(r *catalog.Registry) {
	r.RegisterModule(catalog.ModuleMeta{
		Name:        Name,
		Description: "Helpers: echo values, generate ids, wait, fail on purpose.",
		Invocables: []*catalog.Invocable{
			{
				Name:        "echo",
				Description: "Return value unchanged, for seeding a chain.",
				Params:      []catalog.Param{catalog.Required("value", "raw", "Value to return.")},
				Func:        echo,
			},
			{
				Name:        "uuid",
				Description: "Return a random UUID.",
				Func:        newUUID,
			},
			{
				Name:        "sleep",
				Description: "Wait for a duration.",
				Params:      []catalog.Param{catalog.Optional("duration", "duration", "1s", "How long to wait.")},
				Func:        sleep,
			},
			{
				Name:        "fail",
				Description: "Always fail with the given message.",
				Params:      []catalog.Param{catalog.Optional("message", "string", "forced failure", "Failure message.")},
				Func:        fail,
			},
		},
	})
}

func echo(_ context.Context, params map[string]any) (any, error) {
	return params["value"], nil
}

func newUUID(context.Context, map[string]any) (any, error) {
	return uuid.NewString(), nil
}

func sleep(ctx context.Context, params map[string]any) (any, error) {
	var d time.Duration
	switch v := params["duration"].(type) {
	case time.Duration:
		d = v
	case string:
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
	default:
		return nil, fmt.Errorf("duration: unsupported value %v (%T)", v, v)
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return d.String(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func fail(_ context.Context, params map[string]any) (any, error) {
	return nil, catalog.Failf("%v", params["message"])
}
