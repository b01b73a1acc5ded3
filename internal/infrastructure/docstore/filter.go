package docstore

import (
	"encoding/json"
	"fmt"
	"strings"

	"archie-builder-credential-broker/internal/ports"
)

var knownOperators = map[string]struct{}{
	ports.OpEqual:        {},
	ports.OpNotEqual:     {},
	ports.OpLess:         {},
	ports.OpLessEqual:    {},
	ports.OpGreater:      {},
	ports.OpGreaterEqual: {},
	ports.OpIn:           {},
}

// validateFilters rejects filters no driver can evaluate
func validateFilters(filters []ports.Filter) error {
	for _, f := range filters {
		if f.Field == "" {
			return fmt.Errorf("filter field cannot be empty")
		}
		if _, ok := knownOperators[f.Operator]; !ok {
			return fmt.Errorf("unsupported filter operator %q", f.Operator)
		}
	}
	return nil
}

// normalize converts v to the shape encoding/json produces when decoding into any
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// lookupPath walks a dot path through decoded JSON objects
func lookupPath(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// matchesAll evaluates a conjunction of filters against a decoded document
func matchesAll(key string, doc map[string]any, filters []ports.Filter) (bool, error) {
	for _, f := range filters {
		var actual any
		var found bool
		if f.Field == ports.KeyField {
			actual, found = key, true
		} else {
			actual, found = lookupPath(doc, f.Field)
		}
		expected, err := normalize(f.Value)
		if err != nil {
			return false, fmt.Errorf("invalid filter value for %s: %w", f.Field, err)
		}
		ok, err := compare(actual, found, f.Operator, expected)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func compare(actual any, found bool, op string, expected any) (bool, error) {
	switch op {
	case ports.OpEqual:
		return found && equal(actual, expected), nil
	case ports.OpNotEqual:
		return !found || !equal(actual, expected), nil
	case ports.OpIn:
		list, ok := expected.([]any)
		if !ok {
			return false, fmt.Errorf("operator in expects a list")
		}
		if !found {
			return false, nil
		}
		for _, candidate := range list {
			if equal(actual, candidate) {
				return true, nil
			}
		}
		return false, nil
	}

	if !found {
		return false, nil
	}
	c, ok := order(actual, expected)
	if !ok {
		return false, nil
	}
	switch op {
	case ports.OpLess:
		return c < 0, nil
	case ports.OpLessEqual:
		return c <= 0, nil
	case ports.OpGreater:
		return c > 0, nil
	case ports.OpGreaterEqual:
		return c >= 0, nil
	}
	return false, fmt.Errorf("unsupported filter operator %q", op)
}

func equal(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return false
}

// order compares two scalars of the same kind
func order(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
