// Package filter implements the record filter pipeline applied to dataset
// records before they reach the store.
//
// A dataset carries an ordered list of filters chosen at creation time.
// Writing runs each filter's Encode in order; reading runs Decode in
// reverse order. A pipeline of [Shuffle] then [Deflate] then
// [Fletcher32Filter] therefore stores checksummed, compressed, shuffled
// bytes and verifies the checksum first on the way back.
//
// # Supported Filters
//
//   - Deflate (ID 1): zlib compression via klauspost/compress. Client data
//     [0] is the compression level (0-9).
//   - Shuffle (ID 2): groups byte i of every element together, which
//     usually helps the compressor. Client data [0] is the element size.
//   - Fletcher32 (ID 3): appends a 32-bit Fletcher checksum and verifies it
//     on decode.
//
// # Usage
//
//	p, err := filter.NewPipeline([]filter.Info{
//		{ID: filter.FilterShuffle, ClientData: []uint32{8}},
//		{ID: filter.FilterDeflate, ClientData: []uint32{6}},
//	})
//	stored, err := p.Encode(raw)
//	raw, err = p.Decode(stored)
package filter
