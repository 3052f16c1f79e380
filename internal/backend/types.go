package backend

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5tree/internal/dtype"
	"github.com/robert-malhotra/h5tree/internal/filter"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// ObjectType classifies a stored object.
type ObjectType uint8

const (
	ObjectUnknown ObjectType = iota
	ObjectGroup
	ObjectDataset
)

func (t ObjectType) String() string {
	switch t {
	case ObjectGroup:
		return "group"
	case ObjectDataset:
		return "dataset"
	default:
		return fmt.Sprintf("object(%d)", uint8(t))
	}
}

// LinkType classifies a link entry.
type LinkType uint8

const (
	LinkHard LinkType = iota
	LinkSoft
)

func (t LinkType) String() string {
	switch t {
	case LinkHard:
		return "hard"
	case LinkSoft:
		return "soft"
	default:
		return fmt.Sprintf("link(%d)", uint8(t))
	}
}

// LinkInfo is what IterateLinks reports for every entry.
type LinkInfo struct {
	Type   LinkType
	Target string // soft links only
}

// LinkFunc is called for each link of a group in name order. A positive
// return stops iteration successfully; a negative return aborts it and
// becomes the result of IterateLinks.
type LinkFunc func(name string, info LinkInfo) Status

// ObjectInfo describes an object found by name.
type ObjectInfo struct {
	Type     ObjectType
	Addr     uint64
	RefCount uint32
}

// DatasetInfo is the creation-time description of a dataset.
type DatasetInfo struct {
	Type    dtype.Type    `cbor:"1,keyasint"`
	List    bool          `cbor:"2,keyasint,omitempty"`
	Filters []filter.Info `cbor:"3,keyasint,omitempty"`
	Records uint64        `cbor:"4,keyasint"`
}

// Compression returns the deflate level, or -1 when the dataset is not
// compressed.
func (d DatasetInfo) Compression() int {
	for _, f := range d.Filters {
		if f.ID == filter.FilterDeflate {
			if len(f.ClientData) > 0 {
				return int(f.ClientData[0])
			}
			return filter.DefaultLevel
		}
	}
	return -1
}

// Object is the persistent record of a group or dataset.
type Object struct {
	Addr     uint64       `cbor:"1,keyasint"`
	Type     ObjectType   `cbor:"2,keyasint"`
	RefCount uint32       `cbor:"3,keyasint"`
	Dataset  *DatasetInfo `cbor:"4,keyasint,omitempty"`
}

// Link is a named entry in a group.
type Link struct {
	Name   string   `cbor:"1,keyasint"`
	Type   LinkType `cbor:"2,keyasint"`
	Addr   uint64   `cbor:"3,keyasint,omitempty"`
	Target string   `cbor:"4,keyasint,omitempty"`
}

// Attribute is a named typed value attached to an object.
type Attribute struct {
	Name string     `cbor:"1,keyasint"`
	Type dtype.Type `cbor:"2,keyasint"`
	Data []byte     `cbor:"3,keyasint"`
}

// ErrNotFound is returned by a Store for a missing key.
var ErrNotFound = errors.New("backend: not found")

// Tx reads and writes the object graph. A Store is itself a Tx whose
// writes each apply on their own; the Tx handed to Store.Update groups
// writes so they apply together.
type Tx interface {
	// Root returns the address of the root group, or ErrNotFound for an
	// empty store.
	Root() (uint64, error)
	SetRoot(addr uint64) error

	// Alloc reserves a fresh object address.
	Alloc() (uint64, error)

	Object(addr uint64) (Object, error)
	PutObject(obj Object) error
	// DeleteObject removes the object record and releases its address.
	DeleteObject(addr uint64) error

	Link(parent uint64, name string) (Link, error)
	PutLink(parent uint64, link Link) error
	DeleteLink(parent uint64, name string) error
	// Links returns the links of parent sorted by name.
	Links(parent uint64) ([]Link, error)

	Attribute(owner uint64, name string) (Attribute, error)
	PutAttribute(owner uint64, attr Attribute) error
	DeleteAttribute(owner uint64, name string) error
	// Attributes returns the attributes of owner sorted by name.
	Attributes(owner uint64) ([]Attribute, error)

	Record(addr, index uint64) ([]byte, error)
	PutRecord(addr, index uint64, data []byte) error
	DeleteRecords(addr uint64) error
}

// Store persists the object graph. Implementations need not be safe for
// concurrent use; the Engine serializes access.
type Store interface {
	Tx

	// Update runs fn in a transaction. The writes fn makes through tx are
	// applied together when fn returns nil and discarded when it returns
	// an error, which Update then returns.
	Update(fn func(tx Tx) error) error

	Sync() error
	Close() error
}

// Backend is the status-code API the hdf5 package drives. Calls that open
// or create something return a handle; a negative handle is the failure
// status. Names may be absolute ("/a/b") or relative to the location.
type Backend interface {
	FileID() handle.ID

	OpenGroup(loc handle.ID, name string) handle.ID
	CreateGroup(loc handle.ID, name string) handle.ID
	CloseGroup(id handle.ID) Status

	DeleteLink(loc handle.ID, name string) Status
	MoveLink(src handle.ID, from string, dst handle.ID, to string, intermediate bool) Status
	CopyObject(src handle.ID, from string, dst handle.ID, to string) Status
	CreateSoftLink(loc handle.ID, name, target string) Status
	IterateLinks(loc handle.ID, fn LinkFunc) Status
	ObjectInfo(loc handle.ID, name string) (ObjectInfo, Status)

	CreateDataset(loc handle.ID, name string, info DatasetInfo) handle.ID
	OpenDataset(loc handle.ID, name string) handle.ID
	CloseDataset(id handle.ID) Status
	DatasetInfo(id handle.ID) (DatasetInfo, Status)
	WriteRecord(id handle.ID, index uint64, raw []byte) Status
	ReadRecord(id handle.ID, index uint64) ([]byte, Status)

	AttributeExists(loc handle.ID, name string) (bool, Status)
	CreateAttribute(loc handle.ID, name string, t dtype.Type) handle.ID
	OpenAttribute(loc handle.ID, name string) handle.ID
	AttributeType(attr handle.ID) (dtype.Type, Status)
	ReadAttribute(attr handle.ID, t dtype.Type, buf []byte) Status
	WriteAttribute(attr handle.ID, t dtype.Type, buf []byte) Status
	CloseAttribute(attr handle.ID) Status
	DeleteAttribute(loc handle.ID, name string) Status
	AttributeNames(loc handle.ID) ([]string, Status)

	Flush() error
	Close() error
}
