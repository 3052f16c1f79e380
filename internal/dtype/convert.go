package dtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
)

// Decode converts raw bytes of type t into dest, which must be a non-nil
// pointer. Supported targets are a scalar (for single-element types), a
// flat slice or array, a nested slice matching the shape, or an empty
// interface, which receives the element's natural Go type (a flat slice for
// shaped types).
func Decode(t Type, raw []byte, dest interface{}) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if uint64(len(raw)) != t.ByteSize() {
		return fmt.Errorf("raw data has %d bytes, %s needs %d", len(raw), t, t.ByteSize())
	}

	destVal := reflect.ValueOf(dest)
	if destVal.Kind() != reflect.Ptr || destVal.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer")
	}

	d := &decoder{t: t, raw: raw}
	return d.fill(destVal.Elem(), t.Shape)
}

type decoder struct {
	t   Type
	raw []byte
	pos int
}

// next returns the following element in its natural Go type.
func (d *decoder) next() reflect.Value {
	size := int(d.t.Size)
	v := element(d.t, d.raw[d.pos:d.pos+size])
	d.pos += size
	return v
}

func (d *decoder) fill(v reflect.Value, shape []uint64) error {
	switch v.Kind() {
	case reflect.Interface:
		if v.NumMethod() != 0 {
			return fmt.Errorf("cannot decode %s into %v", d.t, v.Type())
		}
		v.Set(d.natural(shape))
		return nil

	case reflect.Slice:
		if isContainer(v.Type().Elem()) && len(shape) > 0 {
			n := int(shape[0])
			v.Set(reflect.MakeSlice(v.Type(), n, n))
			for i := 0; i < n; i++ {
				if err := d.fill(v.Index(i), shape[1:]); err != nil {
					return err
				}
			}
			return nil
		}
		n := int(product(shape))
		v.Set(reflect.MakeSlice(v.Type(), n, n))
		for i := 0; i < n; i++ {
			if err := assign(v.Index(i), d.next()); err != nil {
				return err
			}
		}
		return nil

	case reflect.Array:
		if isContainer(v.Type().Elem()) && len(shape) > 0 {
			if uint64(v.Len()) != shape[0] {
				return fmt.Errorf("array length %d does not match dimension %d", v.Len(), shape[0])
			}
			for i := 0; i < v.Len(); i++ {
				if err := d.fill(v.Index(i), shape[1:]); err != nil {
					return err
				}
			}
			return nil
		}
		if uint64(v.Len()) != product(shape) {
			return fmt.Errorf("array length %d does not match %d elements", v.Len(), product(shape))
		}
		for i := 0; i < v.Len(); i++ {
			if err := assign(v.Index(i), d.next()); err != nil {
				return err
			}
		}
		return nil

	default:
		if product(shape) != 1 {
			return fmt.Errorf("cannot decode %s into scalar %v", d.t, v.Type())
		}
		return assign(v, d.next())
	}
}

// natural decodes the remaining shape into the element's own Go type.
func (d *decoder) natural(shape []uint64) reflect.Value {
	if len(shape) == 0 {
		return d.next()
	}
	gt, _ := d.t.GoType()
	n := int(product(shape))
	out := reflect.MakeSlice(reflect.SliceOf(gt), n, n)
	for i := 0; i < n; i++ {
		out.Index(i).Set(d.next())
	}
	return out
}

func element(t Type, b []byte) reflect.Value {
	order := binary.LittleEndian

	switch t.Class {
	case ClassBool:
		return reflect.ValueOf(b[0] != 0)
	case ClassInt:
		switch t.Size {
		case 1:
			return reflect.ValueOf(int8(b[0]))
		case 2:
			return reflect.ValueOf(int16(order.Uint16(b)))
		case 4:
			return reflect.ValueOf(int32(order.Uint32(b)))
		default:
			return reflect.ValueOf(int64(order.Uint64(b)))
		}
	case ClassUint:
		switch t.Size {
		case 1:
			return reflect.ValueOf(b[0])
		case 2:
			return reflect.ValueOf(order.Uint16(b))
		case 4:
			return reflect.ValueOf(order.Uint32(b))
		default:
			return reflect.ValueOf(order.Uint64(b))
		}
	case ClassFloat:
		if t.Size == 4 {
			return reflect.ValueOf(math.Float32frombits(order.Uint32(b)))
		}
		return reflect.ValueOf(math.Float64frombits(order.Uint64(b)))
	case ClassComplex:
		if t.Size == 8 {
			re := math.Float32frombits(order.Uint32(b[0:4]))
			im := math.Float32frombits(order.Uint32(b[4:8]))
			return reflect.ValueOf(complex(re, im))
		}
		re := math.Float64frombits(order.Uint64(b[0:8]))
		im := math.Float64frombits(order.Uint64(b[8:16]))
		return reflect.ValueOf(complex(re, im))
	default:
		// Fixed-length strings end at the first NUL.
		if i := bytes.IndexByte(b, 0); i >= 0 {
			b = b[:i]
		}
		return reflect.ValueOf(string(b))
	}
}

// assign stores val into v, converting between kinds of the same family.
func assign(v, val reflect.Value) error {
	if v.Kind() == reflect.Interface && v.NumMethod() == 0 {
		v.Set(val)
		return nil
	}
	if family(val.Kind()) == 0 || family(val.Kind()) != family(v.Kind()) {
		return fmt.Errorf("cannot decode %v into %v", val.Type(), v.Type())
	}
	v.Set(val.Convert(v.Type()))
	return nil
}

func family(k reflect.Kind) int {
	switch k {
	case reflect.Bool:
		return 1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 2
	case reflect.Complex64, reflect.Complex128:
		return 3
	case reflect.String:
		return 4
	default:
		return 0
	}
}

func isContainer(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func product(shape []uint64) uint64 {
	n := uint64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}
