package filter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DefaultLevel is used when no compression level is given.
const DefaultLevel = 6

// Deflate implements zlib compression.
type Deflate struct {
	level int
}

// NewDeflate creates a new deflate filter.
// Client data: [0] = compression level (0-9, or default if empty)
func NewDeflate(clientData []uint32) (*Deflate, error) {
	level := DefaultLevel
	if len(clientData) > 0 {
		level = int(clientData[0])
	}
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("deflate: compression level %d out of range 0-9", level)
	}
	return &Deflate{level: level}, nil
}

func (f *Deflate) ID() uint16 {
	return FilterDeflate
}

// Level returns the compression level.
func (f *Deflate) Level() int {
	return f.level
}

func (f *Deflate) Encode(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(input); err != nil {
		w.Close()
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Deflate) Decode(input []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}

	return output, nil
}
