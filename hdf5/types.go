package hdf5

import "github.com/robert-malhotra/h5tree/internal/dtype"

// Type describes the elements of a dataset record or an attribute: an
// element class and size plus an optional shape.
type Type = dtype.Type

// Predefined scalar types.
var (
	Bool       = dtype.Bool
	Int8       = dtype.Int8
	Int16      = dtype.Int16
	Int32      = dtype.Int32
	Int64      = dtype.Int64
	Uint8      = dtype.Uint8
	Uint16     = dtype.Uint16
	Uint32     = dtype.Uint32
	Uint64     = dtype.Uint64
	Float32    = dtype.Float32
	Float64    = dtype.Float64
	Complex64  = dtype.Complex64
	Complex128 = dtype.Complex128
)

// FixedString returns a fixed-length string type of n bytes.
func FixedString(n uint32) Type {
	return dtype.String(n)
}

// TypeOf infers the Type of a Go value, e.g. float64@(2,3) for a
// [][]float64 with two rows of three.
func TypeOf(v interface{}) (Type, error) {
	return dtype.Of(v)
}

// ParseType parses a type name as printed by Type.String, e.g.
// "float32@(3,3)" or "string[8]".
func ParseType(s string) (Type, error) {
	return dtype.Parse(s)
}
