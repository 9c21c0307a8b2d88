package bind

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cast"
)

// CoerceFunc converts a raw value to the representation a type tag demands.
type CoerceFunc func(v any) (any, error)

// Coercers maps type annotations to coercion rules. Tags are matched
// case-insensitively; an unknown or empty tag passes values through.
type Coercers struct {
	mu    sync.RWMutex
	rules map[string]CoerceFunc
}

// NewCoercers returns a registry holding the built-in rules.
func NewCoercers() *Coercers {
	c := &Coercers{rules: make(map[string]CoerceFunc)}
	c.Register(castTo(cast.ToStringE), "string", "str")
	c.Register(toInt, "int", "integer")
	c.Register(castTo(cast.ToFloat64E), "float", "number", "double")
	c.Register(castTo(cast.ToBoolE), "bool", "boolean")
	c.Register(castTo(cast.ToDurationE), "duration")
	c.Register(toList, "list", "strings")
	c.Register(passThrough, "raw", "any")
	return c
}

// Default is the registry used by Bind.
var Default = NewCoercers()

// Register adds or replaces the rule for one or more tags.
func (c *Coercers) Register(fn CoerceFunc, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range tags {
		c.rules[normalizeTag(tag)] = fn
	}
}

// Coerce applies the rule registered for tag. A nil value is left alone.
func (c *Coercers) Coerce(tag string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	c.mu.RLock()
	fn, ok := c.rules[normalizeTag(tag)]
	c.mu.RUnlock()
	if !ok {
		return v, nil
	}
	return fn(v)
}

// Known reports whether a rule exists for tag.
func (c *Coercers) Known(tag string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.rules[normalizeTag(tag)]
	return ok
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func castTo[T any](fn func(any) (T, error)) CoerceFunc {
	return func(v any) (any, error) {
		return fn(v)
	}
}

// toInt reads strings as base 10 only, so "010" is ten and "0x10" is
// rejected.
func toInt(v any) (any, error) {
	if s, ok := v.(string); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 0)
		if err != nil {
			return nil, fmt.Errorf("unable to cast %q to int: %w", s, err)
		}
		return int(n), nil
	}
	return cast.ToIntE(v)
}

func passThrough(v any) (any, error) { return v, nil }

// toList accepts a sequence, or a comma separated string.
func toList(v any) (any, error) {
	if s, ok := v.(string); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, nil
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
	out, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("not a list: %w", err)
	}
	return out, nil
}
