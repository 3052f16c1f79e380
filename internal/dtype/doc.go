// Package dtype describes the element types stored in datasets and
// attributes, and converts between Go values and their raw bytes.
//
// A [Type] is an element class and size plus an optional shape. A type with
// no shape is a scalar; otherwise it holds the product of its dimensions in
// row-major order. Raw bytes are always little-endian and fixed width.
//
// # Type Mapping
//
//	Class    | Go type
//	---------|-------------------------------------------
//	bool     | bool
//	int      | int8/16/32/64 (int maps to int64)
//	uint     | uint8/16/32/64 (uint maps to uint64)
//	float    | float32, float64
//	complex  | complex64, complex128
//	string   | string (fixed length, NUL padded)
//
// # Usage
//
// Infer a type from a Go value, encode it, and decode it back:
//
//	t, err := dtype.Of([][]float64{{1, 2, 3}, {4, 5, 6}}) // float64@(2,3)
//	raw, err := dtype.Encode(t, value)
//	var out [][]float64
//	err = dtype.Decode(t, raw, &out)
//
// # Key Functions
//
//   - [Of]: Infers the Type of a Go value
//   - [Encode]: Converts Go values to raw bytes
//   - [Decode]: Converts raw bytes to Go values
package dtype
