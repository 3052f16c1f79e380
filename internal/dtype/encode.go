package dtype

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Of infers the Type of a Go value. Scalars yield a scalar type; slices and
// arrays (possibly nested) yield a shaped type whose dimensions are taken
// from the first element at every level. Strings become fixed-length
// strings sized to the longest value.
func Of(v interface{}) (Type, error) {
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return Type{}, fmt.Errorf("cannot infer type of nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return Type{}, fmt.Errorf("cannot infer type of nil pointer")
		}
		val = val.Elem()
	}

	dims, leaf, err := inferDimensions(val)
	if err != nil {
		return Type{}, err
	}

	if leaf.Kind() == reflect.String {
		maxLen := 1
		for _, s := range collect(val, nil) {
			if s.Kind() == reflect.String && s.Len() > maxLen {
				maxLen = s.Len()
			}
		}
		return String(uint32(maxLen)).WithShape(dims...), nil
	}

	elem, ok := scalarOf(leaf.Kind())
	if !ok {
		return Type{}, fmt.Errorf("unsupported Go type: %v", leaf.Type())
	}
	return elem.WithShape(dims...), nil
}

// inferDimensions walks nested slices and arrays down to the first leaf.
func inferDimensions(val reflect.Value) ([]uint64, reflect.Value, error) {
	var dims []uint64
	current := val

	for {
		switch current.Kind() {
		case reflect.Slice, reflect.Array:
			if current.Len() == 0 {
				return nil, reflect.Value{}, fmt.Errorf("cannot infer type of empty %v", current.Type())
			}
			dims = append(dims, uint64(current.Len()))
			current = current.Index(0)
		case reflect.Interface, reflect.Ptr:
			if current.IsNil() {
				return nil, reflect.Value{}, fmt.Errorf("cannot infer type of nil element")
			}
			current = current.Elem()
		default:
			return dims, current, nil
		}
	}
}

// collect flattens nested slices and arrays into their leaves, row-major.
func collect(val reflect.Value, out []reflect.Value) []reflect.Value {
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return out
		}
		return collect(val.Elem(), out)
	case reflect.Slice, reflect.Array:
		for i := 0; i < val.Len(); i++ {
			out = collect(val.Index(i), out)
		}
		return out
	default:
		return append(out, val)
	}
}

// Encode converts a Go value to raw bytes of type t. The value may be a
// scalar, a flat slice or a nested slice, as long as it holds exactly
// t.Elements() leaves.
func Encode(t Type, src interface{}) ([]byte, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	leaves := collect(reflect.ValueOf(src), nil)
	if uint64(len(leaves)) != t.Elements() {
		return nil, fmt.Errorf("value has %d elements, %s needs %d", len(leaves), t, t.Elements())
	}

	size := int(t.Size)
	data := make([]byte, len(leaves)*size)
	for i, elem := range leaves {
		if err := putElement(t, data[i*size:(i+1)*size], elem); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return data, nil
}

func putElement(t Type, b []byte, elem reflect.Value) error {
	order := binary.LittleEndian

	switch t.Class {
	case ClassBool:
		if elem.Kind() != reflect.Bool {
			return fmt.Errorf("cannot encode %v as %s", elem.Kind(), t.Element())
		}
		if elem.Bool() {
			b[0] = 1
		}

	case ClassInt, ClassUint:
		var u uint64
		switch elem.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			u = uint64(elem.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			u = elem.Uint()
		default:
			return fmt.Errorf("cannot encode %v as %s", elem.Kind(), t.Element())
		}
		switch t.Size {
		case 1:
			b[0] = byte(u)
		case 2:
			order.PutUint16(b, uint16(u))
		case 4:
			order.PutUint32(b, uint32(u))
		case 8:
			order.PutUint64(b, u)
		}

	case ClassFloat:
		var f float64
		switch elem.Kind() {
		case reflect.Float32, reflect.Float64:
			f = elem.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(elem.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(elem.Uint())
		default:
			return fmt.Errorf("cannot encode %v as %s", elem.Kind(), t.Element())
		}
		if t.Size == 4 {
			order.PutUint32(b, math.Float32bits(float32(f)))
		} else {
			order.PutUint64(b, math.Float64bits(f))
		}

	case ClassComplex:
		if elem.Kind() != reflect.Complex64 && elem.Kind() != reflect.Complex128 {
			return fmt.Errorf("cannot encode %v as %s", elem.Kind(), t.Element())
		}
		c := elem.Complex()
		if t.Size == 8 {
			order.PutUint32(b[0:4], math.Float32bits(float32(real(c))))
			order.PutUint32(b[4:8], math.Float32bits(float32(imag(c))))
		} else {
			order.PutUint64(b[0:8], math.Float64bits(real(c)))
			order.PutUint64(b[8:16], math.Float64bits(imag(c)))
		}

	case ClassString:
		if elem.Kind() != reflect.String {
			return fmt.Errorf("cannot encode %v as %s", elem.Kind(), t.Element())
		}
		// Longer strings are truncated; shorter ones stay NUL padded.
		copy(b, elem.String())
	}

	return nil
}
