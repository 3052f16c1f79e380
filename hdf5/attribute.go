package hdf5

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/dtype"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// Attributes are small typed values stored by the backend under a group or
// dataset. They are never indexed: every call goes to the backend.

// HasAttribute reports whether the attribute name exists.
func (n *node) HasAttribute(name string) (bool, error) {
	if n.file.closed {
		return false, ErrClosed
	}
	ok, st := n.file.backend.AttributeExists(n.Location(), name)
	if err := backend.Check("attribute exists", st); err != nil {
		return false, err
	}
	return ok, nil
}

// Attributes returns the attribute names, sorted.
func (n *node) Attributes() ([]string, error) {
	if n.file.closed {
		return nil, ErrClosed
	}
	names, st := n.file.backend.AttributeNames(n.Location())
	if err := backend.Check("attribute names", st); err != nil {
		return nil, err
	}
	return names, nil
}

// openAttribute opens the attribute name into a fresh guard.
func (n *node) openAttribute(name string) (*handle.Guard, error) {
	attr := handle.NewGuard(handle.KindAttribute, n.file.closeAttribute)
	if err := acquire(attr, "open attribute", n.file.backend.OpenAttribute(n.Location(), name)); err != nil {
		return nil, err
	}
	return attr, nil
}

// AttributeType returns the stored type of the attribute name.
func (n *node) AttributeType(name string) (t Type, err error) {
	if n.file.closed {
		return Type{}, ErrClosed
	}
	attr, err := n.openAttribute(name)
	if err != nil {
		return Type{}, err
	}
	defer func() {
		err = errors.Join(err, attr.Close())
	}()

	t, st := n.file.backend.AttributeType(attr.ID())
	return t, backend.Check("attribute type", st)
}

// ReadAttribute reads the raw value of the attribute name into buf. The
// stored type must equal t, otherwise the result is a LogicError wrapping
// ErrTypeMismatch and buf is left untouched.
func (n *node) ReadAttribute(name string, t Type, buf []byte) (err error) {
	if n.file.closed {
		return ErrClosed
	}
	attr, err := n.openAttribute(name)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, attr.Close())
	}()

	b := n.file.backend
	stored, st := b.AttributeType(attr.ID())
	if err := backend.Check("attribute type", st); err != nil {
		return err
	}
	if !stored.Equal(t) {
		return n.logicError("read attribute", name, ErrTypeMismatch,
			fmt.Sprintf("stored %s, requested %s", stored, t))
	}
	if uint64(len(buf)) != t.ByteSize() {
		return n.logicError("read attribute", name, ErrBufferSize,
			fmt.Sprintf("%s needs %d bytes, buffer has %d", t, t.ByteSize(), len(buf)))
	}
	return backend.Check("read attribute", b.ReadAttribute(attr.ID(), t, buf))
}

// WriteAttribute stores buf as the attribute name of type t. An existing
// attribute of that name is deleted first and replaced as a whole.
func (n *node) WriteAttribute(name string, t Type, buf []byte) (err error) {
	if err := n.file.writable(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("write attribute %q: %w", name, err)
	}
	if uint64(len(buf)) != t.ByteSize() {
		return n.logicError("write attribute", name, ErrBufferSize,
			fmt.Sprintf("%s needs %d bytes, buffer has %d", t, t.ByteSize(), len(buf)))
	}

	exists, err := n.HasAttribute(name)
	if err != nil {
		return err
	}
	b := n.file.backend
	if exists {
		if err := backend.Check("delete attribute", b.DeleteAttribute(n.Location(), name)); err != nil {
			return err
		}
	}

	attr := handle.NewGuard(handle.KindAttribute, n.file.closeAttribute)
	if err := acquire(attr, "create attribute", b.CreateAttribute(n.Location(), name, t)); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, attr.Close())
	}()
	return backend.Check("write attribute", b.WriteAttribute(attr.ID(), t, buf))
}

// DeleteAttribute removes the attribute name. A missing attribute is a
// StatusError with StatusNotFound.
func (n *node) DeleteAttribute(name string) error {
	if err := n.file.writable(); err != nil {
		return err
	}
	return backend.Check("delete attribute", n.file.backend.DeleteAttribute(n.Location(), name))
}

// SetAttr writes value as the attribute name, inferring its type.
func (n *node) SetAttr(name string, value interface{}) error {
	t, err := dtype.Of(value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	raw, err := dtype.Encode(t, value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	return n.WriteAttribute(name, t, raw)
}

// Attr reads the attribute name into dest, a pointer to a value, slice or
// empty interface compatible with the stored type.
func (n *node) Attr(name string, dest interface{}) error {
	t, err := n.AttributeType(name)
	if err != nil {
		return err
	}
	buf := make([]byte, t.ByteSize())
	if err := n.ReadAttribute(name, t, buf); err != nil {
		return err
	}
	if err := dtype.Decode(t, buf, dest); err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	return nil
}

// copyAttributes copies every attribute of src to dst. The two may belong
// to different files.
func copyAttributes(src, dst *node) error {
	names, err := src.Attributes()
	if err != nil {
		return err
	}
	for _, name := range names {
		t, err := src.AttributeType(name)
		if err != nil {
			return err
		}
		buf := make([]byte, t.ByteSize())
		if err := src.ReadAttribute(name, t, buf); err != nil {
			return err
		}
		if err := dst.WriteAttribute(name, t, buf); err != nil {
			return err
		}
	}
	return nil
}
