// Package testutil has small helpers used by tests and tools.
package testutil

import (
	"encoding/json"
	"fmt"
)

// JS renders its argument as JSON, falling back to %#v on error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Dwimjs parses strings and byte slices as JSON and returns anything
// else unchanged.  Panics on bad JSON, so test inputs stay honest.
func Dwimjs(x interface{}) interface{} {
	switch vv := x.(type) {
	case []byte:
		return Dwimjs(string(vv))
	case string:
		var v interface{}
		if err := json.Unmarshal([]byte(vv), &v); err != nil {
			panic(err)
		}
		return v
	default:
		return x
	}
}
