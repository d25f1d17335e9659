package model

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Params holds the filter and query arguments of a list request. Values are
// scalars: strings, booleans, integers or floats.
type Params map[string]any

// Canonical returns a serialization of the params that does not depend on
// insertion order. Two Params with the same keys and values always produce the
// same string. Empty and nil Params both serialize to "{}".
func (p Params) Canonical() string {
	if len(p) == 0 {
		return "{}"
	}
	// Map keys are marshaled in sorted order.
	b, err := json.Marshal(map[string]any(p))
	if err != nil {
		// Non-scalar value. fmt also prints maps in sorted key order.
		return fmt.Sprintf("{%v}", map[string]any(p))
	}
	return string(b)
}

// Values converts the params into URL query values. Nil values are omitted.
func (p Params) Values() url.Values {
	if len(p) == 0 {
		return nil
	}
	v := make(url.Values, len(p))
	for key, val := range p {
		switch x := val.(type) {
		case nil:
			continue
		case string:
			v.Set(key, x)
		case bool:
			v.Set(key, strconv.FormatBool(x))
		case int64:
			v.Set(key, strconv.FormatInt(x, 10))
		case float64:
			v.Set(key, strconv.FormatFloat(x, 'f', -1, 64))
		default:
			v.Set(key, fmt.Sprint(x))
		}
	}
	return v
}

// With returns a copy of p with key set to val.
func (p Params) With(key string, val any) Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = val
	return out
}
