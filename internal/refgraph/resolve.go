// Package refgraph resolves the backend's reference-preserving JSON format,
// where objects carry a "$id" tag and later occurrences are replaced by a
// {"$ref": id} pointer, into plain object graphs.
//
// Resolved graphs keep shared substructure: every "$ref" to the same "$id"
// yields the same map instance. Cycles are preserved as cycles; resolution
// itself never recurses through an object twice.
package refgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/go-faster/errors"
)

const (
	keyID     = "$id"
	keyRef    = "$ref"
	keyValues = "$values"
)

// Decode parses data into a generic JSON tree. Numbers are kept as
// json.Number so that monetary amounts survive without float rounding.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	return v, nil
}

// DecodeResolved decodes data and resolves its references.
func DecodeResolved(data []byte) (any, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Resolve(v), nil
}

// Resolve returns a copy of root with every {"$ref": id} node replaced by
// the object tagged with that "$id", and every {"$values": [...]} wrapper
// replaced by its array. Dangling references resolve to nil. The input is
// not modified.
func Resolve(root any) any {
	r := &resolver{
		raw:    make(map[string]map[string]any),
		byID:   make(map[string]any),
		byAddr: make(map[containerKey]any),
	}
	r.index(root, make(map[containerKey]struct{}))
	return r.resolve(root)
}

// containerKey identifies a map or slice by address, so that graphs which
// are already cyclic (a previously resolved payload) are walked once.
type containerKey struct {
	ptr uintptr
	len int
}

type resolver struct {
	raw    map[string]map[string]any
	byID   map[string]any
	byAddr map[containerKey]any
}

func keyOf(v any) (containerKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		return containerKey{ptr: rv.Pointer()}, true
	case reflect.Slice:
		if rv.Len() == 0 {
			return containerKey{}, false
		}
		return containerKey{ptr: rv.Pointer(), len: rv.Len()}, true
	}
	return containerKey{}, false
}

// index records every object carrying an "$id".
func (r *resolver) index(v any, seen map[containerKey]struct{}) {
	if k, ok := keyOf(v); ok {
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
	}
	switch t := v.(type) {
	case map[string]any:
		if id, ok := idOf(t[keyID]); ok {
			if _, exists := r.raw[id]; !exists {
				r.raw[id] = t
			}
		}
		for k, child := range t {
			if k == keyID || k == keyRef {
				continue
			}
			r.index(child, seen)
		}
	case []any:
		for _, child := range t {
			r.index(child, seen)
		}
	}
}

func (r *resolver) resolve(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return r.resolveObject(t)
	case []any:
		k, keyed := keyOf(t)
		if keyed {
			if done, ok := r.byAddr[k]; ok {
				return done
			}
		}
		out := make([]any, len(t))
		if keyed {
			r.byAddr[k] = out
		}
		for i, child := range t {
			out[i] = r.resolve(child)
		}
		return out
	default:
		return v
	}
}

func (r *resolver) resolveObject(m map[string]any) any {
	if ref, isRef := m[keyRef]; isRef {
		id, ok := idOf(ref)
		if !ok {
			return nil
		}
		if done, ok := r.byID[id]; ok {
			return done
		}
		target, ok := r.raw[id]
		if !ok {
			return nil
		}
		return r.resolveObject(target)
	}

	k, _ := keyOf(m)
	if done, ok := r.byAddr[k]; ok {
		return done
	}
	id, hasID := idOf(m[keyID])
	if hasID {
		if done, ok := r.byID[id]; ok {
			return done
		}
	}

	if vals, ok := m[keyValues].([]any); ok {
		out := make([]any, len(vals))
		r.remember(k, id, hasID, out)
		for i, child := range vals {
			out[i] = r.resolve(child)
		}
		return out
	}

	out := make(map[string]any, len(m))
	r.remember(k, id, hasID, out)
	for key, child := range m {
		if key == keyID {
			continue
		}
		out[key] = r.resolve(child)
	}
	return out
}

// remember registers a resolved container before its children are filled,
// which is what makes self and mutual references terminate.
func (r *resolver) remember(k containerKey, id string, hasID bool, out any) {
	r.byAddr[k] = out
	if hasID {
		r.byID[id] = out
	}
}

// idOf normalizes "$id"/"$ref" values: the backend emits them as strings,
// hand-written payloads often use numbers.
func idOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		return t.String(), true
	case float64:
		return fmt.Sprintf("%g", t), true
	case int:
		return fmt.Sprintf("%d", t), true
	}
	return "", false
}
