// Package match implements a small pattern matcher over decoded JSON
// values, used to check simulation events against expectations.
//
// A pattern is matched structurally against a fact.  A string of the
// form "?name" in the pattern binds the corresponding fact value;
// "?" matches anything without binding.  Map patterns require each of
// their keys to match in the fact (extra fact keys are ignored);
// slice patterns match elementwise.
package match

import (
	"fmt"
	"reflect"
	"strings"
)

// Bindings maps pattern variables to the fact values they matched.
type Bindings map[string]interface{}

// Copy makes a shallow copy of the bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// IsVariable reports whether the string is a pattern variable.
func IsVariable(s string) bool {
	return strings.HasPrefix(s, "?")
}

// Match matches the pattern against the fact, extending the given
// bindings.  The given bindings are never mutated; on success the
// returned bindings include any new matches.
func Match(pattern, fact interface{}, bs Bindings) (Bindings, bool) {
	if bs == nil {
		bs = make(Bindings)
	}

	switch p := pattern.(type) {
	case string:
		if IsVariable(p) {
			if p == "?" {
				return bs, true
			}
			name := p[1:]
			if bound, have := bs[name]; have {
				if !equal(bound, fact) {
					return nil, false
				}
				return bs, true
			}
			acc := bs.Copy()
			acc[name] = fact
			return acc, true
		}
		s, is := fact.(string)
		if !is || s != p {
			return nil, false
		}
		return bs, true

	case map[string]interface{}:
		f, is := fact.(map[string]interface{})
		if !is {
			return nil, false
		}
		acc := bs
		for k, pv := range p {
			fv, have := f[k]
			if !have {
				return nil, false
			}
			var ok bool
			if acc, ok = Match(pv, fv, acc); !ok {
				return nil, false
			}
		}
		return acc, true

	case []interface{}:
		f, is := fact.([]interface{})
		if !is || len(f) != len(p) {
			return nil, false
		}
		acc := bs
		for i, pv := range p {
			var ok bool
			if acc, ok = Match(pv, f[i], acc); !ok {
				return nil, false
			}
		}
		return acc, true

	default:
		if !equal(pattern, fact) {
			return nil, false
		}
		return bs, true
	}
}

// equal compares scalars with JSON number tolerance: numeric types
// compare by value regardless of Go type.
func equal(a, b interface{}) bool {
	if an, is := asFloat(a); is {
		bn, is := asFloat(b)
		return is && an == bn
	}
	return reflect.DeepEqual(a, b)
}

// Canonicalize rewrites YAML-decoded values, whose maps are
// map[interface{}]interface{}, into their JSON shapes so they can be
// used as patterns.
func Canonicalize(x interface{}) (interface{}, error) {
	switch v := x.(type) {
	case map[interface{}]interface{}:
		acc := make(map[string]interface{}, len(v))
		for k, val := range v {
			s, is := k.(string)
			if !is {
				return nil, fmt.Errorf("non-string map key %v (%T)", k, k)
			}
			c, err := Canonicalize(val)
			if err != nil {
				return nil, err
			}
			acc[s] = c
		}
		return acc, nil
	case map[string]interface{}:
		acc := make(map[string]interface{}, len(v))
		for k, val := range v {
			c, err := Canonicalize(val)
			if err != nil {
				return nil, err
			}
			acc[k] = c
		}
		return acc, nil
	case []interface{}:
		acc := make([]interface{}, len(v))
		for i, val := range v {
			c, err := Canonicalize(val)
			if err != nil {
				return nil, err
			}
			acc[i] = c
		}
		return acc, nil
	default:
		return x, nil
	}
}

func asFloat(x interface{}) (float64, bool) {
	switch v := x.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
