package envmod

import (
	"context"
	"testing"

	"github.com/ormasoftchile/tent/pkg/catalog"
)

func invoke(t *testing.T, name string, params map[string]any) (any, error) {
	t.Helper()
	r := catalog.New().Discover(&Module{})
	inv, err := r.Resolve(Name, name)
	if err != nil {
		t.Fatal(err)
	}
	return r.Invoke(context.Background(), inv, params)
}

func TestGet(t *testing.T) {
	t.Setenv("TENT_TEST_HOST", "srv1")

	got, err := invoke(t, "get", map[string]any{"name": "TENT_TEST_HOST"})
	if err != nil || got != "srv1" {
		t.Errorf("get = %v, %v", got, err)
	}

	got, err = invoke(t, "get", map[string]any{"name": "TENT_TEST_UNSET_VAR", "fallback": "local"})
	if err != nil || got != "local" {
		t.Errorf("fallback = %v, %v", got, err)
	}

	_, err = invoke(t, "get", map[string]any{"name": "TENT_TEST_UNSET_VAR", "fallback": nil})
	if err == nil || catalog.IsAssertion(err) {
		t.Errorf("unset err = %v, want error", err)
	}
}

func TestAll(t *testing.T) {
	t.Setenv("TENT_TEST_ALL", "yes")
	got, err := invoke(t, "all", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if got.(map[string]any)["TENT_TEST_ALL"] != "yes" {
		t.Error("TENT_TEST_ALL missing from all()")
	}
}
