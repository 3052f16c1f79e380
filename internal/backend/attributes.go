package backend

import (
	"bytes"
	"errors"
	"strings"

	"github.com/robert-malhotra/h5tree/internal/dtype"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

func validAttributeName(name string) bool {
	return name != "" && !strings.Contains(name, "/")
}

// AttributeExists reports whether loc carries an attribute name.
func (e *Engine) AttributeExists(loc handle.ID, name string) (bool, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "attribute exists"
	addr, st := e.owner(loc)
	if !st.OK() {
		return false, e.fail(op, name, st)
	}
	_, err := e.tx.Attribute(addr, name)
	switch {
	case err == nil:
		return true, StatusOK
	case errors.Is(err, ErrNotFound):
		return false, StatusOK
	default:
		return false, e.storeFail(op, name, err)
	}
}

// CreateAttribute creates a zero-filled attribute of type t on loc.
func (e *Engine) CreateAttribute(loc handle.ID, name string, t dtype.Type) handle.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "create attribute"
	if st := e.mutable(); !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	if !validAttributeName(name) {
		return handle.ID(e.fail(op, name, StatusBadName))
	}
	if err := t.Validate(); err != nil {
		return handle.ID(e.fail(op, name, StatusBadArgument))
	}
	addr, st := e.owner(loc)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	_, err := e.tx.Attribute(addr, name)
	if err == nil {
		return handle.ID(e.fail(op, name, StatusExists))
	}
	if !errors.Is(err, ErrNotFound) {
		return handle.ID(e.storeFail(op, name, err))
	}

	attr := Attribute{Name: name, Type: t, Data: make([]byte, t.ByteSize())}
	if err := e.tx.PutAttribute(addr, attr); err != nil {
		return handle.ID(e.storeFail(op, name, err))
	}
	id := e.register(handle.KindAttribute, addr)
	e.handles[id].name = name
	return id
}

// OpenAttribute opens the attribute name of loc.
func (e *Engine) OpenAttribute(loc handle.ID, name string) handle.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "open attribute"
	addr, st := e.owner(loc)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	_, err := e.tx.Attribute(addr, name)
	if errors.Is(err, ErrNotFound) {
		return handle.ID(e.fail(op, name, StatusNotFound))
	}
	if err != nil {
		return handle.ID(e.storeFail(op, name, err))
	}
	id := e.register(handle.KindAttribute, addr)
	e.handles[id].name = name
	return id
}

func (e *Engine) attribute(id handle.ID) (*openObject, Attribute, Status) {
	h, st := e.lookupHandle(id, handle.KindAttribute)
	if !st.OK() {
		return nil, Attribute{}, st
	}
	attr, err := e.tx.Attribute(h.addr, h.name)
	if errors.Is(err, ErrNotFound) {
		return nil, Attribute{}, StatusNotFound
	}
	if err != nil {
		return nil, Attribute{}, e.storeFail("attribute", h.name, err)
	}
	return h, attr, StatusOK
}

// AttributeType returns the stored type of an open attribute.
func (e *Engine) AttributeType(id handle.ID) (dtype.Type, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, attr, st := e.attribute(id)
	if !st.OK() {
		return dtype.Type{}, e.fail("attribute type", "", st)
	}
	return attr.Type, StatusOK
}

// ReadAttribute copies the attribute value into buf. t must equal the
// stored type and buf must be exactly its size.
func (e *Engine) ReadAttribute(id handle.ID, t dtype.Type, buf []byte) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "read attribute"
	_, attr, st := e.attribute(id)
	if !st.OK() {
		return e.fail(op, "", st)
	}
	if !attr.Type.Equal(t) {
		return e.fail(op, attr.Name, StatusWrongKind)
	}
	if len(buf) != len(attr.Data) {
		return e.fail(op, attr.Name, StatusBadArgument)
	}
	copy(buf, attr.Data)
	return StatusOK
}

// WriteAttribute replaces the attribute value with buf.
func (e *Engine) WriteAttribute(id handle.ID, t dtype.Type, buf []byte) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "write attribute"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, "", st)
	}
	h, attr, st := e.attribute(id)
	if !st.OK() {
		return e.fail(op, "", st)
	}
	if !attr.Type.Equal(t) {
		return e.fail(op, attr.Name, StatusWrongKind)
	}
	if uint64(len(buf)) != t.ByteSize() {
		return e.fail(op, attr.Name, StatusBadArgument)
	}
	attr.Data = bytes.Clone(buf)
	if err := e.tx.PutAttribute(h.addr, attr); err != nil {
		return e.storeFail(op, attr.Name, err)
	}
	return StatusOK
}

// CloseAttribute releases an attribute handle.
func (e *Engine) CloseAttribute(id handle.ID) Status {
	return e.closeHandle("close attribute", id, handle.KindAttribute)
}

// DeleteAttribute removes the attribute name from loc.
func (e *Engine) DeleteAttribute(loc handle.ID, name string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "delete attribute"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, name, st)
	}
	addr, st := e.owner(loc)
	if !st.OK() {
		return e.fail(op, name, st)
	}
	_, err := e.tx.Attribute(addr, name)
	if errors.Is(err, ErrNotFound) {
		return e.fail(op, name, StatusNotFound)
	}
	if err != nil {
		return e.storeFail(op, name, err)
	}
	if err := e.tx.DeleteAttribute(addr, name); err != nil {
		return e.storeFail(op, name, err)
	}
	for _, h := range e.handles {
		if h.kind == handle.KindAttribute && h.addr == addr && h.name == name {
			h.stale = true
		}
	}
	return StatusOK
}

// AttributeNames lists the attributes of loc in name order.
func (e *Engine) AttributeNames(loc handle.ID) ([]string, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "attribute names"
	addr, st := e.owner(loc)
	if !st.OK() {
		return nil, e.fail(op, "", st)
	}
	attrs, err := e.tx.Attributes(addr)
	if err != nil {
		return nil, e.storeFail(op, "", err)
	}
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = a.Name
	}
	return names, StatusOK
}
