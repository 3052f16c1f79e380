package filter

import "fmt"

// Filter identifiers.
const (
	FilterDeflate    uint16 = 1
	FilterShuffle    uint16 = 2
	FilterFletcher32 uint16 = 3
)

// Info describes one filter of a dataset's pipeline.
type Info struct {
	ID         uint16   `cbor:"1,keyasint"`
	ClientData []uint32 `cbor:"2,keyasint,omitempty"`
}

// Name returns a readable name for the filter.
func (i Info) Name() string {
	if name, ok := filterNames[i.ID]; ok {
		return name
	}
	return fmt.Sprintf("filter(%d)", i.ID)
}

// Filter is the interface implemented by all filters.
type Filter interface {
	// ID returns the filter identifier.
	ID() uint16

	// Encode transforms raw data to its stored form.
	Encode(input []byte) ([]byte, error)

	// Decode transforms stored data back to raw form.
	Decode(input []byte) ([]byte, error)
}

// Registry maps filter IDs to filter constructors.
var Registry = map[uint16]func([]uint32) (Filter, error){
	FilterDeflate:    func(cd []uint32) (Filter, error) { return NewDeflate(cd) },
	FilterShuffle:    func(cd []uint32) (Filter, error) { return NewShuffle(cd), nil },
	FilterFletcher32: func(cd []uint32) (Filter, error) { return NewFletcher32(cd), nil },
}

var filterNames = map[uint16]string{
	FilterDeflate:    "deflate",
	FilterShuffle:    "shuffle",
	FilterFletcher32: "fletcher32",
}

// New creates a filter from its Info.
func New(info Info) (Filter, error) {
	constructor, ok := Registry[info.ID]
	if !ok {
		return nil, fmt.Errorf("unsupported filter ID: %d", info.ID)
	}
	return constructor(info.ClientData)
}
