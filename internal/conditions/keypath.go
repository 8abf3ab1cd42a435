// internal/conditions/keypath.go
package conditions

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/conditions/internal/types"
)

/*
 * Key path resolution against evaluation contexts.
 *
 * A condition key is a dotted selector ("user.address.city", "orders.0.total",
 * "orders.*.total"). ParseKey splits it into PathSegments once at construction;
 * Resolve walks the context at evaluation time.
 *
 * Segment forms:
 *   - name: object key
 *   - digits: array index, or object key when the current value is an object
 *   - "*": wildcard, ANY semantics (first element that resolves wins)
 *
 * Limits: MaxKeyDepth segments and MaxKeyWildcards wildcards, enforced by ParseKey
 * so a constructed condition can never exceed them at evaluation time.
 *
 * Wildcards over objects iterate keys in sorted order so resolution is deterministic.
 */

// ResolveResult contains the resolved value and the actual path taken.
type ResolveResult struct {
	Value        any                 // resolved value (nil if not found or null)
	ResolvedPath []types.PathSegment // path with wildcards replaced by actual indices
	Found        bool                // true if path resolved to a value
}

// ParseKey splits a dotted key into path segments.
// Returns ErrInvalidKey for empty keys or empty segments, and for keys over the limits.
func ParseKey(key string) ([]types.PathSegment, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", types.ErrInvalidKey)
	}

	parts := strings.Split(key, ".")
	if len(parts) > types.MaxKeyDepth {
		return nil, fmt.Errorf("%w: %q has %d segments (max %d)", types.ErrInvalidKey, key, len(parts), types.MaxKeyDepth)
	}

	path := make([]types.PathSegment, 0, len(parts))
	wildcards := 0
	for _, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: %q has an empty segment", types.ErrInvalidKey, key)
		case part == "*":
			wildcards++
			path = append(path, types.PathSegment{Wildcard: true})
		default:
			seg := types.PathSegment{Key: part}
			if idx, err := strconv.Atoi(part); err == nil && idx >= 0 {
				seg.Index = idx
				seg.IsIndex = true
			}
			path = append(path, seg)
		}
	}
	if wildcards > types.MaxKeyWildcards {
		return nil, fmt.Errorf("%w: %q has %d wildcards (max %d)", types.ErrInvalidKey, key, wildcards, types.MaxKeyWildcards)
	}

	return path, nil
}

// Resolve traverses data following path segments.
// Returns ErrFieldNotFound if path does not exist in data.
func Resolve(path []types.PathSegment, data any) (ResolveResult, error) {
	return resolveRecursive(path, data, nil)
}

// resolveRecursive traverses nested structures following path segments.
// Returns first match for wildcards (ANY semantics).
func resolveRecursive(path []types.PathSegment, current any, resolvedSoFar []types.PathSegment) (ResolveResult, error) {
	if len(path) == 0 {
		return ResolveResult{
			Value:        current,
			ResolvedPath: resolvedSoFar,
			Found:        true,
		}, nil
	}

	seg := path[0]
	remaining := path[1:]

	switch v := current.(type) {
	case Context:
		return resolveObject(seg, remaining, v, resolvedSoFar)
	case map[string]any:
		return resolveObject(seg, remaining, v, resolvedSoFar)
	case []any:
		if seg.Wildcard {
			for i, elem := range v {
				resolved := appendSegment(resolvedSoFar, types.PathSegment{Index: i, IsIndex: true})
				result, err := resolveRecursive(remaining, elem, resolved)
				if err == nil && result.Found {
					return result, nil
				}
			}
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if !seg.IsIndex {
			// Cannot use string key on array
			return ResolveResult{}, types.ErrFieldNotFound
		}
		if seg.Index >= len(v) {
			return ResolveResult{}, types.ErrFieldNotFound
		}
		return resolveRecursive(remaining, v[seg.Index], appendSegment(resolvedSoFar, seg))
	default:
		// nil or scalar value but path continues
		return ResolveResult{}, types.ErrFieldNotFound
	}
}

func resolveObject(seg types.PathSegment, remaining []types.PathSegment, obj map[string]any, resolvedSoFar []types.PathSegment) (ResolveResult, error) {
	if seg.Wildcard {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			resolved := appendSegment(resolvedSoFar, types.PathSegment{Key: key})
			result, err := resolveRecursive(remaining, obj[key], resolved)
			if err == nil && result.Found {
				return result, nil
			}
		}
		return ResolveResult{}, types.ErrFieldNotFound
	}
	val, ok := obj[seg.Key]
	if !ok {
		return ResolveResult{}, types.ErrFieldNotFound
	}
	return resolveRecursive(remaining, val, appendSegment(resolvedSoFar, types.PathSegment{Key: seg.Key}))
}

// appendSegment copies before appending so wildcard siblings never share a backing array.
func appendSegment(path []types.PathSegment, seg types.PathSegment) []types.PathSegment {
	out := make([]types.PathSegment, len(path), len(path)+1)
	copy(out, path)
	return append(out, seg)
}

// FormatPath renders a resolved path back into dotted key form.
func FormatPath(path []types.PathSegment) string {
	parts := make([]string, len(path))
	for i, seg := range path {
		switch {
		case seg.Wildcard:
			parts[i] = "*"
		case seg.Key != "":
			parts[i] = seg.Key
		default:
			parts[i] = strconv.Itoa(seg.Index)
		}
	}
	return strings.Join(parts, ".")
}
