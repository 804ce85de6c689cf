package sink

import (
	"fmt"
	"sort"
	"strings"
)

// Flatten converts a nested record into a flat key→string map for tabular
// output. Nested objects join keys with ".", lists of objects contribute a
// "<key>_count" column plus the first element under "<key>_0", and scalar
// lists join with ";".
func Flatten(record map[string]any) map[string]string {
	out := make(map[string]string)
	flattenInto(out, "", record)
	return out
}

func flattenInto(out map[string]string, prefix string, record map[string]any) {
	for k, v := range record {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case map[string]any:
			flattenInto(out, key, val)
		case []any:
			if objs, ok := allObjects(val); ok {
				out[key+"_count"] = fmt.Sprintf("%d", len(objs))
				if len(objs) > 0 {
					flattenInto(out, key+"_0", objs[0])
				}
			} else {
				parts := make([]string, len(val))
				for i, x := range val {
					parts[i] = scalarString(x)
				}
				out[key] = strings.Join(parts, ";")
			}
		default:
			out[key] = scalarString(val)
		}
	}
}

func allObjects(list []any) ([]map[string]any, bool) {
	if len(list) == 0 {
		return nil, false
	}
	objs := make([]map[string]any, len(list))
	for i, x := range list {
		m, ok := x.(map[string]any)
		if !ok {
			return nil, false
		}
		objs[i] = m
	}
	return objs, true
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; print integers without a dot.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Columns returns the union of keys across all flattened records, sorted for
// a stable column order.
func Columns(flattened []map[string]string) []string {
	set := make(map[string]struct{})
	for _, rec := range flattened {
		for k := range rec {
			set[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(set))
	for k := range set {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
