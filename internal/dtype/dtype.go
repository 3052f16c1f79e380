package dtype

import (
	"fmt"
	"math/bits"
	"reflect"
	"strconv"
	"strings"
)

// MaxByteSize bounds the size of one value: a dataset record or an
// attribute.
const MaxByteSize = 1 << 30

// Class is the element class of a Type.
type Class uint8

const (
	ClassInvalid Class = iota
	ClassBool
	ClassInt
	ClassUint
	ClassFloat
	ClassComplex
	ClassString
)

func (c Class) String() string {
	switch c {
	case ClassBool:
		return "bool"
	case ClassInt:
		return "int"
	case ClassUint:
		return "uint"
	case ClassFloat:
		return "float"
	case ClassComplex:
		return "complex"
	case ClassString:
		return "string"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Type describes the elements held by a dataset record or an attribute.
type Type struct {
	Class Class    `cbor:"1,keyasint"`
	Size  uint32   `cbor:"2,keyasint"`           // element size in bytes
	Shape []uint64 `cbor:"3,keyasint,omitempty"` // nil for scalars
}

// Predefined scalar types.
var (
	Bool       = Type{Class: ClassBool, Size: 1}
	Int8       = Type{Class: ClassInt, Size: 1}
	Int16      = Type{Class: ClassInt, Size: 2}
	Int32      = Type{Class: ClassInt, Size: 4}
	Int64      = Type{Class: ClassInt, Size: 8}
	Uint8      = Type{Class: ClassUint, Size: 1}
	Uint16     = Type{Class: ClassUint, Size: 2}
	Uint32     = Type{Class: ClassUint, Size: 4}
	Uint64     = Type{Class: ClassUint, Size: 8}
	Float32    = Type{Class: ClassFloat, Size: 4}
	Float64    = Type{Class: ClassFloat, Size: 8}
	Complex64  = Type{Class: ClassComplex, Size: 8}
	Complex128 = Type{Class: ClassComplex, Size: 16}
)

// String returns a fixed-length string type of n bytes.
func String(n uint32) Type {
	return Type{Class: ClassString, Size: n}
}

// WithShape returns a copy of t with the given shape.
func (t Type) WithShape(shape ...uint64) Type {
	out := Type{Class: t.Class, Size: t.Size}
	if len(shape) > 0 {
		out.Shape = append([]uint64(nil), shape...)
	}
	return out
}

// Element returns the scalar element type of t.
func (t Type) Element() Type {
	return Type{Class: t.Class, Size: t.Size}
}

// IsScalar returns true if t has no shape.
func (t Type) IsScalar() bool {
	return len(t.Shape) == 0
}

// Rank returns the number of dimensions.
func (t Type) Rank() int {
	return len(t.Shape)
}

// Elements returns the number of elements described by the shape.
func (t Type) Elements() uint64 {
	n := uint64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ByteSize returns the number of bytes needed to hold a value of type t.
func (t Type) ByteSize() uint64 {
	return t.Elements() * uint64(t.Size)
}

// Equal reports whether t and o describe the same element class, size and shape.
func (t Type) Equal(o Type) bool {
	if t.Class != o.Class || t.Size != o.Size || len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// String renders t as e.g. "int32", "float64@(2,3)" or "string[16]".
func (t Type) String() string {
	var name string
	switch t.Class {
	case ClassString:
		name = "string[" + strconv.FormatUint(uint64(t.Size), 10) + "]"
	case ClassBool:
		name = "bool"
	case ClassInvalid:
		name = "invalid"
	default:
		name = t.Class.String() + strconv.FormatUint(uint64(t.Size)*8, 10)
	}
	if len(t.Shape) == 0 {
		return name
	}
	dims := make([]string, len(t.Shape))
	for i, d := range t.Shape {
		dims[i] = strconv.FormatUint(d, 10)
	}
	return name + "@(" + strings.Join(dims, ",") + ")"
}

// Validate checks that the class and size agree and that no dimension is zero.
func (t Type) Validate() error {
	switch t.Class {
	case ClassBool:
		if t.Size != 1 {
			return fmt.Errorf("invalid bool size: %d", t.Size)
		}
	case ClassInt, ClassUint:
		switch t.Size {
		case 1, 2, 4, 8:
		default:
			return fmt.Errorf("invalid %s size: %d", t.Class, t.Size)
		}
	case ClassFloat:
		if t.Size != 4 && t.Size != 8 {
			return fmt.Errorf("invalid float size: %d", t.Size)
		}
	case ClassComplex:
		if t.Size != 8 && t.Size != 16 {
			return fmt.Errorf("invalid complex size: %d", t.Size)
		}
	case ClassString:
		if t.Size == 0 {
			return fmt.Errorf("string type must have a non-zero length")
		}
	default:
		return fmt.Errorf("unsupported datatype class: %d", uint8(t.Class))
	}
	size := uint64(t.Size)
	for i, d := range t.Shape {
		if d == 0 {
			return fmt.Errorf("dimension %d of %s is zero", i, t)
		}
		hi, lo := bits.Mul64(size, d)
		if hi != 0 || lo > MaxByteSize {
			return fmt.Errorf("%s exceeds %d bytes", t, MaxByteSize)
		}
		size = lo
	}
	if size > MaxByteSize {
		return fmt.Errorf("%s exceeds %d bytes", t, MaxByteSize)
	}
	return nil
}

// GoType returns the Go type of a single element of t.
func (t Type) GoType() (reflect.Type, error) {
	switch t.Class {
	case ClassBool:
		return reflect.TypeOf(false), nil
	case ClassInt:
		switch t.Size {
		case 1:
			return reflect.TypeOf(int8(0)), nil
		case 2:
			return reflect.TypeOf(int16(0)), nil
		case 4:
			return reflect.TypeOf(int32(0)), nil
		case 8:
			return reflect.TypeOf(int64(0)), nil
		}
	case ClassUint:
		switch t.Size {
		case 1:
			return reflect.TypeOf(uint8(0)), nil
		case 2:
			return reflect.TypeOf(uint16(0)), nil
		case 4:
			return reflect.TypeOf(uint32(0)), nil
		case 8:
			return reflect.TypeOf(uint64(0)), nil
		}
	case ClassFloat:
		switch t.Size {
		case 4:
			return reflect.TypeOf(float32(0)), nil
		case 8:
			return reflect.TypeOf(float64(0)), nil
		}
	case ClassComplex:
		switch t.Size {
		case 8:
			return reflect.TypeOf(complex64(0)), nil
		case 16:
			return reflect.TypeOf(complex128(0)), nil
		}
	case ClassString:
		return reflect.TypeOf(""), nil
	}
	return nil, fmt.Errorf("no Go type for %s", t)
}

// scalarOf maps a Go kind to its element type.
func scalarOf(k reflect.Kind) (Type, bool) {
	switch k {
	case reflect.Bool:
		return Bool, true
	case reflect.Int8:
		return Int8, true
	case reflect.Int16:
		return Int16, true
	case reflect.Int32:
		return Int32, true
	case reflect.Int64, reflect.Int:
		return Int64, true
	case reflect.Uint8:
		return Uint8, true
	case reflect.Uint16:
		return Uint16, true
	case reflect.Uint32:
		return Uint32, true
	case reflect.Uint64, reflect.Uint:
		return Uint64, true
	case reflect.Float32:
		return Float32, true
	case reflect.Float64:
		return Float64, true
	case reflect.Complex64:
		return Complex64, true
	case reflect.Complex128:
		return Complex128, true
	default:
		return Type{}, false
	}
}

// Parse is the inverse of String: it accepts names such as "uint16",
// "string[8]" or "float32@(3,3)".
func Parse(s string) (Type, error) {
	name, dims := s, ""
	if i := strings.Index(s, "@("); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Type{}, fmt.Errorf("malformed shape in %q", s)
		}
		name, dims = s[:i], s[i+2:len(s)-1]
	}

	var t Type
	switch {
	case name == "bool":
		t = Bool
	case strings.HasPrefix(name, "string[") && strings.HasSuffix(name, "]"):
		n, err := strconv.ParseUint(name[len("string["):len(name)-1], 10, 32)
		if err != nil {
			return Type{}, fmt.Errorf("bad string length in %q", s)
		}
		t = String(uint32(n))
	default:
		class, bits := name, ""
		for i, r := range name {
			if r >= '0' && r <= '9' {
				class, bits = name[:i], name[i:]
				break
			}
		}
		n, err := strconv.ParseUint(bits, 10, 32)
		if err != nil || n%8 != 0 {
			return Type{}, fmt.Errorf("unknown datatype %q", s)
		}
		switch class {
		case "int":
			t.Class = ClassInt
		case "uint":
			t.Class = ClassUint
		case "float":
			t.Class = ClassFloat
		case "complex":
			t.Class = ClassComplex
		default:
			return Type{}, fmt.Errorf("unknown datatype %q", s)
		}
		t.Size = uint32(n / 8)
	}

	if dims != "" {
		for _, part := range strings.Split(dims, ",") {
			d, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return Type{}, fmt.Errorf("bad dimension %q in %q", part, s)
			}
			t.Shape = append(t.Shape, d)
		}
	}
	return t, t.Validate()
}
