// Package chain turns the result of an earlier step into parameter values
// for a later step in the same test case.
//
// A structured result (a map with string keys, or a struct encoded through
// its JSON field names) supplies values by name. Any other non-nil result is
// a scalar: it binds to the first declared parameter, in declaration order,
// that the dependent step does not supply literally. A nil result supplies
// nothing.
package chain

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/ormasoftchile/tent/pkg/catalog"
	"github.com/ormasoftchile/tent/pkg/report"
)

// ErrChainSourceFailed is returned when the referenced step did not pass.
var ErrChainSourceFailed = errors.New("chain source did not pass")

// Values is the chain-supplied data extracted from one step outcome.
type Values struct {
	Named     map[string]any
	Scalar    any
	HasScalar bool
}

// Extract returns the chain values carried by a prior outcome.
func Extract(o report.StepOutcome) (Values, error) {
	if !o.Passed() {
		return Values{}, fmt.Errorf("step %d (%s) is %s: %w", o.Index, o.Ref, o.Status, ErrChainSourceFailed)
	}
	return FromResult(o.Result)
}

// FromResult classifies a raw result value.
func FromResult(result any) (Values, error) {
	if result == nil {
		return Values{}, nil
	}

	rv := reflect.ValueOf(result)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Values{}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		named := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			named[iter.Key().String()] = iter.Value().Interface()
		}
		return Values{Named: named}, nil
	case reflect.Struct:
		named, err := structFields(rv.Interface())
		if err != nil {
			return Values{}, fmt.Errorf("chain result %T: %w", result, err)
		}
		return Values{Named: named}, nil
	}
	return Values{Scalar: result, HasScalar: true}, nil
}

func structFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	named := make(map[string]any)
	if err := json.Unmarshal(data, &named); err != nil {
		return nil, err
	}
	return named, nil
}

// Supply returns the values the chain provides for the declared parameters
// that literals does not already cover.
func (v Values) Supply(params []catalog.Param, literals map[string]any) map[string]any {
	out := make(map[string]any)
	for _, p := range params {
		if _, ok := literals[p.Name]; ok {
			continue
		}
		if v.HasScalar {
			out[p.Name] = v.Scalar
			return out
		}
		if val, ok := v.Named[p.Name]; ok {
			out[p.Name] = val
		}
	}
	return out
}
