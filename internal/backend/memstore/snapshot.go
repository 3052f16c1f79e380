package memstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/codec"
)

// A snapshot file is a fixed header followed by the payload:
//
//	offset  size  field
//	0       8     signature \x89 H 5 T \r \n \x1a \n
//	8       1     format version
//	9       8     payload length, little-endian
//	17      32    BLAKE3-256 of the payload
//	49      n     payload: zstd-compressed CBOR image
var signature = [8]byte{0x89, 'H', '5', 'T', '\r', '\n', 0x1a, '\n'}

const (
	formatVersion = 1
	headerSize    = 8 + 1 + 8 + 32

	// maxPayload rejects absurd lengths from a corrupt header before
	// allocating.
	maxPayload = 1 << 34
)

var (
	ErrSignature = errors.New("memstore: not a snapshot file")
	ErrChecksum  = errors.New("memstore: snapshot checksum mismatch")
	ErrVersion   = errors.New("memstore: unsupported snapshot version")
)

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("memstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("memstore: zstd decoder initialization failed: " + err.Error())
	}
}

type image struct {
	HasRoot    bool             `cbor:"1,keyasint"`
	Root       uint64           `cbor:"2,keyasint"`
	Next       uint64           `cbor:"3,keyasint"`
	Free       []uint64         `cbor:"4,keyasint,omitempty"`
	Objects    []backend.Object `cbor:"5,keyasint,omitempty"`
	Links      []linkEntry      `cbor:"6,keyasint,omitempty"`
	Attributes []attrEntry      `cbor:"7,keyasint,omitempty"`
	Records    []recordEntry    `cbor:"8,keyasint,omitempty"`
}

type linkEntry struct {
	Parent uint64       `cbor:"1,keyasint"`
	Link   backend.Link `cbor:"2,keyasint"`
}

type attrEntry struct {
	Owner     uint64            `cbor:"1,keyasint"`
	Attribute backend.Attribute `cbor:"2,keyasint"`
}

type recordEntry struct {
	Addr  uint64 `cbor:"1,keyasint"`
	Index uint64 `cbor:"2,keyasint"`
	Data  []byte `cbor:"3,keyasint"`
}

// snapshot captures the store contents in a deterministic order. The
// caller holds at least a read lock.
func (s *Store) snapshot() image {
	img := image{
		HasRoot: s.hasRoot,
		Root:    s.root,
		Next:    s.alloc.Next(),
		Free:    s.alloc.FreeList(),
	}

	for _, obj := range s.objects {
		img.Objects = append(img.Objects, obj)
	}
	sort.Slice(img.Objects, func(i, j int) bool { return img.Objects[i].Addr < img.Objects[j].Addr })

	for parent, m := range s.links {
		for _, l := range m {
			img.Links = append(img.Links, linkEntry{Parent: parent, Link: l})
		}
	}
	sort.Slice(img.Links, func(i, j int) bool {
		a, b := img.Links[i], img.Links[j]
		if a.Parent != b.Parent {
			return a.Parent < b.Parent
		}
		return a.Link.Name < b.Link.Name
	})

	for owner, m := range s.attrs {
		for _, a := range m {
			img.Attributes = append(img.Attributes, attrEntry{Owner: owner, Attribute: a})
		}
	}
	sort.Slice(img.Attributes, func(i, j int) bool {
		a, b := img.Attributes[i], img.Attributes[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		return a.Attribute.Name < b.Attribute.Name
	})

	for addr, m := range s.records {
		for index, data := range m {
			img.Records = append(img.Records, recordEntry{Addr: addr, Index: index, Data: data})
		}
	}
	sort.Slice(img.Records, func(i, j int) bool {
		a, b := img.Records[i], img.Records[j]
		if a.Addr != b.Addr {
			return a.Addr < b.Addr
		}
		return a.Index < b.Index
	})

	return img
}

// restore replaces the store contents with img. The caller holds the
// write lock.
func (s *Store) restore(img image) error {
	if err := s.alloc.Restore(img.Next, img.Free); err != nil {
		return fmt.Errorf("restoring addresses: %w", err)
	}

	s.hasRoot, s.root = img.HasRoot, img.Root
	s.objects = make(map[uint64]backend.Object, len(img.Objects))
	s.links = make(map[uint64]map[string]backend.Link)
	s.attrs = make(map[uint64]map[string]backend.Attribute)
	s.records = make(map[uint64]map[uint64][]byte)

	for _, obj := range img.Objects {
		s.objects[obj.Addr] = obj
	}
	for _, e := range img.Links {
		if s.links[e.Parent] == nil {
			s.links[e.Parent] = make(map[string]backend.Link)
		}
		s.links[e.Parent][e.Link.Name] = e.Link
	}
	for _, e := range img.Attributes {
		if s.attrs[e.Owner] == nil {
			s.attrs[e.Owner] = make(map[string]backend.Attribute)
		}
		s.attrs[e.Owner][e.Attribute.Name] = e.Attribute
	}
	for _, e := range img.Records {
		if s.records[e.Addr] == nil {
			s.records[e.Addr] = make(map[uint64][]byte)
		}
		s.records[e.Addr][e.Index] = e.Data
	}

	if s.hasRoot {
		if _, ok := s.objects[s.root]; !ok {
			return fmt.Errorf("root object 0x%x missing from snapshot", s.root)
		}
	}
	return nil
}

// WriteTo writes a snapshot of the store to w.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	s.mu.RLock()
	img := s.snapshot()
	s.mu.RUnlock()

	raw, err := codec.Marshal(img)
	if err != nil {
		return 0, fmt.Errorf("encoding snapshot: %w", err)
	}
	payload := zstdEncoder.EncodeAll(raw, nil)
	digest := blake3.Sum256(payload)

	var header [headerSize]byte
	copy(header[0:8], signature[:])
	header[8] = formatVersion
	binary.LittleEndian.PutUint64(header[9:17], uint64(len(payload)))
	copy(header[17:49], digest[:])

	n, err := w.Write(header[:])
	if err != nil {
		return int64(n), err
	}
	m, err := w.Write(payload)
	return int64(n + m), err
}

// ReadFrom replaces the store contents with the snapshot read from r.
func (s *Store) ReadFrom(r io.Reader) (int64, error) {
	var header [headerSize]byte
	n, err := io.ReadFull(r, header[:])
	if n < len(signature) || !bytes.Equal(header[0:8], signature[:]) {
		return int64(n), ErrSignature
	}
	if err != nil {
		return int64(n), fmt.Errorf("reading snapshot header: %w", err)
	}
	if header[8] != formatVersion {
		return int64(n), fmt.Errorf("%w: %d", ErrVersion, header[8])
	}
	length := binary.LittleEndian.Uint64(header[9:17])
	if length > maxPayload {
		return int64(n), fmt.Errorf("snapshot payload length %d too large", length)
	}

	payload := make([]byte, length)
	m, err := io.ReadFull(r, payload)
	total := int64(n + m)
	if err != nil {
		return total, fmt.Errorf("reading snapshot payload: %w", err)
	}
	digest := blake3.Sum256(payload)
	if !bytes.Equal(digest[:], header[17:49]) {
		return total, ErrChecksum
	}

	raw, err := zstdDecoder.DecodeAll(payload, nil)
	if err != nil {
		return total, fmt.Errorf("decompressing snapshot: %w", err)
	}
	var img image
	if err := codec.Unmarshal(raw, &img); err != nil {
		return total, fmt.Errorf("decoding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.restore(img); err != nil {
		return total, err
	}
	s.dirty = false
	return total, nil
}

// SaveFile writes a snapshot to path atomically: the data goes to a
// temporary file in the same directory which then replaces path.
func (s *Store) SaveFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := s.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// LoadFile replaces the store contents with the snapshot at path.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := s.ReadFrom(f); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}
