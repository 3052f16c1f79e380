// Package handle provides scoped ownership of backend resource identifiers.
//
// Every group, dataset, attribute and file handle issued by a backend must be
// released exactly once. A [Guard] starts out holding [Invalid], takes
// ownership of an identifier once the owning backend call succeeds, and
// issues the matching close call on [Guard.Close]. Closing an invalid or
// already closed guard does nothing, so a failed open never leaks a
// half-open handle and a double close never reaches the backend.
package handle

import "fmt"

// ID is an opaque backend resource identifier. Negative values are status
// codes returned by a failed backend call, never valid handles.
type ID int64

// Invalid is the sentinel held by a guard that owns nothing.
const Invalid ID = -1

// Valid returns true if the identifier refers to a live handle.
func (id ID) Valid() bool {
	return id >= 0
}

// Kind identifies what a handle refers to.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindGroup
	KindDataset
	KindAttribute
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindGroup:
		return "group"
	case KindDataset:
		return "dataset"
	case KindAttribute:
		return "attribute"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Closer releases a handle in the backend.
type Closer func(ID) error

// Guard owns a single backend handle.
type Guard struct {
	id     ID
	kind   Kind
	closer Closer
}

// NewGuard returns a guard of the given kind holding Invalid.
func NewGuard(kind Kind, closer Closer) *Guard {
	return &Guard{
		id:     Invalid,
		kind:   kind,
		closer: closer,
	}
}

// Acquire takes ownership of id. It returns false, leaving the guard
// invalid, if id is a failure status rather than a handle.
func (g *Guard) Acquire(id ID) bool {
	if !id.Valid() {
		return false
	}
	g.id = id
	return true
}

// ID returns the owned identifier, or Invalid.
func (g *Guard) ID() ID {
	if g == nil {
		return Invalid
	}
	return g.id
}

// Kind returns the kind of handle the guard owns.
func (g *Guard) Kind() Kind {
	return g.kind
}

// Valid returns true if the guard currently owns a handle.
func (g *Guard) Valid() bool {
	return g != nil && g.id.Valid()
}

// Close releases the owned handle. The identifier is invalidated before the
// closer runs, so the closer is issued at most once even if it fails.
func (g *Guard) Close() error {
	if !g.Valid() {
		return nil
	}
	id := g.id
	g.id = Invalid
	if g.closer == nil {
		return nil
	}
	return g.closer(id)
}

func (g *Guard) String() string {
	return fmt.Sprintf("%s handle %d", g.kind, g.id)
}
