package backend

import (
	"errors"

	"github.com/robert-malhotra/h5tree/internal/handle"
)

// OpenGroup opens the group name relative to loc.
func (e *Engine) OpenGroup(loc handle.ID, name string) handle.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "open group"
	base, st := e.location(loc)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	addr, st := e.resolveFrom(base, name, 0)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	if st := e.requireGroup(addr); !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	return e.register(handle.KindGroup, addr)
}

// CreateGroup creates the group name relative to loc. The containing group
// must exist.
func (e *Engine) CreateGroup(loc handle.ID, name string) handle.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "create group"
	if st := e.mutable(); !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	base, st := e.location(loc)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	parent, leaf, st := e.resolveParent(base, name)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	var addr uint64
	st = e.update(op, name, func() (st Status) {
		addr, st = e.createGroupAt(parent, leaf)
		return st
	})
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	return e.register(handle.KindGroup, addr)
}

// CloseGroup releases a group handle.
func (e *Engine) CloseGroup(id handle.ID) Status {
	return e.closeHandle("close group", id, handle.KindGroup)
}

// linkFree fails with StatusExists when parent already has a link name.
func (e *Engine) linkFree(parent uint64, name string) Status {
	_, err := e.tx.Link(parent, name)
	switch {
	case err == nil:
		return StatusExists
	case errors.Is(err, ErrNotFound):
		return StatusOK
	default:
		return e.storeFail("link", name, err)
	}
}

func (e *Engine) createGroupAt(parent uint64, name string) (uint64, Status) {
	if st := e.linkFree(parent, name); !st.OK() {
		return 0, st
	}
	addr, err := e.tx.Alloc()
	if err != nil {
		return 0, e.storeFail("alloc", name, err)
	}
	if err := e.tx.PutObject(Object{Addr: addr, Type: ObjectGroup, RefCount: 1}); err != nil {
		return 0, e.storeFail("put object", name, err)
	}
	if err := e.tx.PutLink(parent, Link{Name: name, Type: LinkHard, Addr: addr}); err != nil {
		return 0, e.storeFail("put link", name, err)
	}
	e.log.WithField("name", name).Debug("created group")
	return addr, StatusOK
}

// DeleteLink removes the link name. Removing the last hard link to an
// object destroys it along with everything it contains.
func (e *Engine) DeleteLink(loc handle.ID, name string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "delete link"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, name, st)
	}
	base, st := e.location(loc)
	if !st.OK() {
		return e.fail(op, name, st)
	}
	parent, leaf, st := e.resolveParent(base, name)
	if !st.OK() {
		return e.fail(op, name, st)
	}
	link, err := e.tx.Link(parent, leaf)
	if errors.Is(err, ErrNotFound) {
		return e.fail(op, name, StatusNotFound)
	}
	if err != nil {
		return e.storeFail(op, name, err)
	}
	return e.update(op, name, func() Status {
		if err := e.tx.DeleteLink(parent, leaf); err != nil {
			return e.storeFail(op, name, err)
		}
		if link.Type == LinkHard {
			if st := e.release(link.Addr); !st.OK() {
				return e.fail(op, name, st)
			}
		}
		return StatusOK
	})
}

// release drops one reference to addr and destroys it at zero.
func (e *Engine) release(addr uint64) Status {
	obj, err := e.tx.Object(addr)
	if err != nil {
		return e.storeFail("object", "", err)
	}
	if obj.RefCount > 1 {
		obj.RefCount--
		if err := e.tx.PutObject(obj); err != nil {
			return e.storeFail("put object", "", err)
		}
		return StatusOK
	}
	return e.destroy(obj)
}

func (e *Engine) destroy(obj Object) Status {
	if obj.Type == ObjectGroup {
		links, err := e.tx.Links(obj.Addr)
		if err != nil {
			return e.storeFail("links", "", err)
		}
		for _, l := range links {
			if err := e.tx.DeleteLink(obj.Addr, l.Name); err != nil {
				return e.storeFail("delete link", l.Name, err)
			}
			if l.Type == LinkHard {
				if st := e.release(l.Addr); !st.OK() {
					return st
				}
			}
		}
	}

	attrs, err := e.tx.Attributes(obj.Addr)
	if err != nil {
		return e.storeFail("attributes", "", err)
	}
	for _, a := range attrs {
		if err := e.tx.DeleteAttribute(obj.Addr, a.Name); err != nil {
			return e.storeFail("delete attribute", a.Name, err)
		}
	}

	if obj.Type == ObjectDataset {
		if err := e.tx.DeleteRecords(obj.Addr); err != nil {
			return e.storeFail("delete records", "", err)
		}
	}
	if err := e.tx.DeleteObject(obj.Addr); err != nil {
		return e.storeFail("delete object", "", err)
	}
	e.doomed = append(e.doomed, obj.Addr)
	return StatusOK
}

// MoveLink moves the link from (relative to src) to to (relative to dst).
// With intermediate set, missing groups on the way to to are created.
func (e *Engine) MoveLink(src handle.ID, from string, dst handle.ID, to string, intermediate bool) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "move link"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, from, st)
	}
	srcBase, st := e.location(src)
	if !st.OK() {
		return e.fail(op, from, st)
	}
	dstBase, st := e.location(dst)
	if !st.OK() {
		return e.fail(op, to, st)
	}

	srcParent, srcLeaf, st := e.resolveParent(srcBase, from)
	if !st.OK() {
		return e.fail(op, from, st)
	}
	link, err := e.tx.Link(srcParent, srcLeaf)
	if errors.Is(err, ErrNotFound) {
		return e.fail(op, from, StatusNotFound)
	}
	if err != nil {
		return e.storeFail(op, from, err)
	}

	dstParent, missing, dstLeaf, st := e.resolvePrefix(dstBase, to)
	if !st.OK() {
		return e.fail(op, to, st)
	}
	if len(missing) > 0 && !intermediate {
		return e.fail(op, to, StatusNotFound)
	}
	if len(missing) == 0 && dstParent == srcParent && dstLeaf == srcLeaf {
		return StatusOK
	}

	if link.Type == LinkHard {
		inside, st := e.contains(link.Addr, dstParent)
		if !st.OK() {
			return e.fail(op, to, st)
		}
		if inside {
			return e.fail(op, to, StatusBadArgument)
		}
	}
	if len(missing) == 0 {
		if st := e.linkFree(dstParent, dstLeaf); !st.OK() {
			return e.fail(op, to, st)
		}
	}

	return e.update(op, to, func() Status {
		parent, st := e.createPath(dstParent, missing)
		if !st.OK() {
			return e.fail(op, to, st)
		}
		moved := link
		moved.Name = dstLeaf
		if err := e.tx.PutLink(parent, moved); err != nil {
			return e.storeFail(op, to, err)
		}
		if err := e.tx.DeleteLink(srcParent, srcLeaf); err != nil {
			return e.storeFail(op, from, err)
		}
		return StatusOK
	})
}

// CopyObject deep-copies the object linked at from (relative to src) to
// to (relative to dst). The containing group of to must exist.
func (e *Engine) CopyObject(src handle.ID, from string, dst handle.ID, to string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "copy object"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, from, st)
	}
	srcBase, st := e.location(src)
	if !st.OK() {
		return e.fail(op, from, st)
	}
	dstBase, st := e.location(dst)
	if !st.OK() {
		return e.fail(op, to, st)
	}

	srcParent, srcLeaf, st := e.resolveParent(srcBase, from)
	if !st.OK() {
		return e.fail(op, from, st)
	}
	link, err := e.tx.Link(srcParent, srcLeaf)
	if errors.Is(err, ErrNotFound) {
		return e.fail(op, from, StatusNotFound)
	}
	if err != nil {
		return e.storeFail(op, from, err)
	}

	dstParent, dstLeaf, st := e.resolveParent(dstBase, to)
	if !st.OK() {
		return e.fail(op, to, st)
	}
	if st := e.linkFree(dstParent, dstLeaf); !st.OK() {
		return e.fail(op, to, st)
	}

	return e.update(op, to, func() Status {
		copied := link
		copied.Name = dstLeaf
		if link.Type == LinkHard {
			addr, st := e.deepCopy(link.Addr)
			if !st.OK() {
				return e.fail(op, from, st)
			}
			copied.Addr = addr
		}
		if err := e.tx.PutLink(dstParent, copied); err != nil {
			return e.storeFail(op, to, err)
		}
		return StatusOK
	})
}

// deepCopy duplicates addr with its attributes, records and hard-linked
// children. Soft links are copied verbatim.
func (e *Engine) deepCopy(addr uint64) (uint64, Status) {
	obj, err := e.tx.Object(addr)
	if err != nil {
		return 0, e.storeFail("object", "", err)
	}
	newAddr, err := e.tx.Alloc()
	if err != nil {
		return 0, e.storeFail("alloc", "", err)
	}

	clone := Object{Addr: newAddr, Type: obj.Type, RefCount: 1}
	if obj.Dataset != nil {
		info := *obj.Dataset
		info.Filters = append(info.Filters[:0:0], obj.Dataset.Filters...)
		clone.Dataset = &info
	}
	if err := e.tx.PutObject(clone); err != nil {
		return 0, e.storeFail("put object", "", err)
	}

	attrs, err := e.tx.Attributes(addr)
	if err != nil {
		return 0, e.storeFail("attributes", "", err)
	}
	for _, a := range attrs {
		if err := e.tx.PutAttribute(newAddr, a); err != nil {
			return 0, e.storeFail("put attribute", a.Name, err)
		}
	}

	switch obj.Type {
	case ObjectDataset:
		for i := uint64(0); obj.Dataset != nil && i < obj.Dataset.Records; i++ {
			data, err := e.tx.Record(addr, i)
			if err != nil {
				return 0, e.storeFail("record", "", err)
			}
			if err := e.tx.PutRecord(newAddr, i, data); err != nil {
				return 0, e.storeFail("put record", "", err)
			}
		}
	case ObjectGroup:
		links, err := e.tx.Links(addr)
		if err != nil {
			return 0, e.storeFail("links", "", err)
		}
		for _, l := range links {
			if l.Type == LinkHard {
				child, st := e.deepCopy(l.Addr)
				if !st.OK() {
					return 0, st
				}
				l.Addr = child
			}
			if err := e.tx.PutLink(newAddr, l); err != nil {
				return 0, e.storeFail("put link", l.Name, err)
			}
		}
	}
	return newAddr, StatusOK
}

// CreateSoftLink stores a link name that resolves to target when followed.
// The target need not exist.
func (e *Engine) CreateSoftLink(loc handle.ID, name, target string) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "create soft link"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, name, st)
	}
	if target == "" {
		return e.fail(op, name, StatusBadArgument)
	}
	base, st := e.location(loc)
	if !st.OK() {
		return e.fail(op, name, st)
	}
	parent, leaf, st := e.resolveParent(base, name)
	if !st.OK() {
		return e.fail(op, name, st)
	}
	if st := e.linkFree(parent, leaf); !st.OK() {
		return e.fail(op, name, st)
	}
	if err := e.tx.PutLink(parent, Link{Name: leaf, Type: LinkSoft, Target: target}); err != nil {
		return e.storeFail(op, name, err)
	}
	return StatusOK
}

// IterateLinks calls fn for every link of the group loc in name order. The
// engine lock is not held while fn runs, so fn may call back into the
// engine.
func (e *Engine) IterateLinks(loc handle.ID, fn LinkFunc) Status {
	const op = "iterate links"

	e.mu.Lock()
	addr, st := e.location(loc)
	if !st.OK() {
		e.mu.Unlock()
		return e.fail(op, "", st)
	}
	links, err := e.tx.Links(addr)
	if err != nil {
		e.mu.Unlock()
		return e.storeFail(op, "", err)
	}
	e.mu.Unlock()

	for _, l := range links {
		if st := fn(l.Name, LinkInfo{Type: l.Type, Target: l.Target}); st != StatusOK {
			return st
		}
	}
	return StatusOK
}

// ObjectInfo reports the object name resolves to, following soft links.
func (e *Engine) ObjectInfo(loc handle.ID, name string) (ObjectInfo, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "object info"
	base, st := e.location(loc)
	if !st.OK() {
		return ObjectInfo{}, e.fail(op, name, st)
	}
	addr, st := e.resolveFrom(base, name, 0)
	if !st.OK() {
		return ObjectInfo{}, e.fail(op, name, st)
	}
	obj, err := e.tx.Object(addr)
	if errors.Is(err, ErrNotFound) {
		return ObjectInfo{}, e.fail(op, name, StatusNotFound)
	}
	if err != nil {
		return ObjectInfo{}, e.storeFail(op, name, err)
	}
	return ObjectInfo{Type: obj.Type, Addr: obj.Addr, RefCount: obj.RefCount}, StatusOK
}
