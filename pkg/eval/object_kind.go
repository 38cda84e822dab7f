// pkg/eval/object_kind.go
package eval

// ObjectKind represents the type of a runtime value.
type ObjectKind uint8

const (
	KindInvalid ObjectKind = iota
	KindInteger
	KindReal
	KindText
	KindNull
)

func (k ObjectKind) String() string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindReal:
		return "REAL"
	case KindText:
		return "TEXT"
	case KindNull:
		return "NULL"
	default:
		return "INVALID"
	}
}

// Numeric reports whether values of this kind take part in arithmetic.
func (k ObjectKind) Numeric() bool {
	return k == KindInteger || k == KindReal
}

// Integer cache for small integers (-128 to 127)
const (
	minCachedInt = -128
	maxCachedInt = 127
	intCacheSize = maxCachedInt - minCachedInt + 1
)

var (
	intCache [intCacheSize]*Integer

	NULL *Null
	ZERO *Integer
	ONE  *Integer
)

// Initialize the integer cache and common singletons
func init() {
	for i := 0; i < intCacheSize; i++ {
		intCache[i] = &Integer{Value: int64(i) + minCachedInt}
	}

	NULL = &Null{}
	ZERO = NewInteger(0)
	ONE = NewInteger(1)
}

// NewInteger returns a cached integer for small values or allocates a new one.
// Values are never mutated, so sharing cached instances is safe.
func NewInteger(value int64) *Integer {
	if value >= minCachedInt && value <= maxCachedInt {
		return intCache[value-minCachedInt]
	}
	return &Integer{Value: value}
}

func NewReal(value float64) *Real {
	return &Real{Value: value}
}
