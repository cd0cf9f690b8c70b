package request

import (
	"encoding/json"
	"sort"
	"strings"
)

// Key separator. Underscore keeps keys readable in logs and metrics labels.
const keySeparator = "_"

// CacheKey generates a deterministic cache key from method, endpoint, and
// query parameters. With useInitialValues the raw route template is used and
// query parameters are ignored, which groups all invocations of one route
// under a single key.
//
// Example:
//
//	GET_/users/42/orders_page=1
func CacheKey(d *Descriptor, useInitialValues bool) string {
	endpoint := d.ResolvedEndpoint()
	query := serializeParams(d.QueryParams)
	if useInitialValues {
		endpoint = d.Endpoint
		query = ""
	}
	return strings.Join([]string{d.Method, endpoint, query}, keySeparator)
}

// QueueKey generates the key grouping requests that share concurrency and
// ordering constraints: one logical queue per method + endpoint template.
func QueueKey(d *Descriptor) string {
	return strings.Join([]string{d.Method, d.Endpoint}, keySeparator)
}

// AbortKey generates the key grouping requests that should be abort-notified
// together, even across distinct descriptors of the same logical action.
func AbortKey(method, baseURL, endpoint string, cancelable bool) string {
	c := "false"
	if cancelable {
		c = "true"
	}
	return strings.Join([]string{method, baseURL, endpoint, c}, keySeparator)
}

// serializeParams renders params deterministically: keys sorted, values
// stringified. Serialization failure yields an empty segment, never a panic.
func serializeParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+stringifyValue(params[k]))
	}
	return strings.Join(parts, "&")
}

// stringifyValue renders an arbitrary value for key derivation. Strings pass
// through, nil becomes empty, everything else is JSON-serialized. A value
// that cannot be serialized becomes the empty string.
func stringifyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// applyParams substitutes ":name" segments of a route template.
func applyParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	segments := strings.Split(endpoint, "/")
	for i, seg := range segments {
		if strings.HasPrefix(seg, ":") {
			if val, ok := params[seg[1:]]; ok {
				segments[i] = val
			}
		}
	}
	return strings.Join(segments, "/")
}
