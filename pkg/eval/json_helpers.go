package eval

import (
	"math"
)

// ToNative converts an object to a Go value suitable for JSON marshaling.
// Non-finite reals become their printed form since JSON cannot carry them.
func ToNative(obj Object) interface{} {
	switch obj := obj.(type) {
	case *Integer:
		return obj.Value
	case *Real:
		if math.IsInf(obj.Value, 0) || math.IsNaN(obj.Value) {
			return obj.Inspect()
		}
		return obj.Value
	case *Text:
		return obj.Value
	case *Null, nil:
		return nil
	default:
		return obj.Inspect()
	}
}

// Snapshot returns the members of ar keyed by name, converted with ToNative.
func Snapshot(ar *ActivationRecord) map[string]interface{} {
	result := make(map[string]interface{})
	if ar == nil {
		return result
	}
	for _, name := range ar.Names() {
		val, _ := ar.Get(name)
		result[name] = ToNative(val)
	}
	return result
}
