package asl

import (
	"fmt"
	"strings"

	"github.com/itchyny/gojq"
)

// getPath evaluates a JSONPath of the supported subset ($ or $.dotted.path)
// against v. The second return is false when the path yields no value;
// choice rules referencing missing paths evaluate false.
func getPath(v any, path string) (any, bool) {
	if path == "$" {
		return v, true
	}
	if !strings.HasPrefix(path, "$.") {
		return nil, false
	}
	// The dotted subset maps 1:1 onto a jq field query.
	query, err := gojq.Parse("." + path[2:])
	if err != nil {
		return nil, false
	}
	iter := query.Run(v)
	out, ok := iter.Next()
	if !ok {
		return nil, false
	}
	if _, isErr := out.(error); isErr {
		return nil, false
	}
	if out == nil {
		// jq yields null both for a stored null and a missing key; the
		// supported rule set cannot observe the difference.
		return nil, false
	}
	return out, true
}

// setPath returns base with value merged in at path. Path $ replaces base
// outright; $.a.b creates intermediate objects as needed.
func setPath(base any, path string, value any) (any, error) {
	if path == "$" {
		return value, nil
	}
	if !strings.HasPrefix(path, "$.") {
		return nil, fmt.Errorf("unsupported ResultPath %q", path)
	}
	segments := strings.Split(path[2:], ".")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("unsupported ResultPath %q", path)
		}
	}

	root, ok := base.(map[string]any)
	if !ok {
		if base == nil {
			root = map[string]any{}
		} else {
			return nil, fmt.Errorf("ResultPath %q requires an object input", path)
		}
	}
	out := deepCopyMap(root)

	cur := out
	for _, s := range segments[:len(segments)-1] {
		next, ok := cur[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[s] = next
		}
		cur = next
	}
	cur[segments[len(segments)-1]] = value
	return out, nil
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
			continue
		}
		out[k] = v
	}
	return out
}
