package eval

import "strconv"

// Object is the interface that all runtime values implement.
type Object interface {
	Kind() ObjectKind
	Inspect() string
}

type Integer struct {
	Value int64
}

func (i *Integer) Kind() ObjectKind { return KindInteger }
func (i *Integer) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

// Real prints with six significant digits, the way a default C++ stream
// renders a double.
type Real struct {
	Value float64
}

func (r *Real) Kind() ObjectKind { return KindReal }
func (r *Real) Inspect() string  { return strconv.FormatFloat(r.Value, 'g', 6, 64) }

// Text only ever comes from a quoted PRINT message.
type Text struct {
	Value string
}

func (t *Text) Kind() ObjectKind { return KindText }
func (t *Text) Inspect() string  { return t.Value }

// Null is the result of executing a statement.
type Null struct{}

func (n *Null) Kind() ObjectKind { return KindNull }
func (n *Null) Inspect() string  { return "null" }

// toFloat widens a numeric value. ok is false for non-numeric values.
func toFloat(obj Object) (float64, bool) {
	switch obj := obj.(type) {
	case *Integer:
		return float64(obj.Value), true
	case *Real:
		return obj.Value, true
	default:
		return 0, false
	}
}

func isTruthy(obj Object) bool {
	switch obj := obj.(type) {
	case *Integer:
		return obj.Value != 0
	case *Real:
		return obj.Value != 0
	default:
		return false
	}
}
