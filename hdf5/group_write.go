package hdf5

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-malhotra/h5tree/internal/backend"
)

// CreateGroup creates a group at path p. When p has a directory part it
// must already exist; intermediate groups are not created.
func (g *Group) CreateGroup(p string) (*Group, error) {
	if err := g.file.writable(); err != nil {
		return nil, err
	}
	dir, leaf := splitLast(normalize(p))
	parent, err := g.cd(dir, p)
	if err != nil {
		return nil, err
	}
	return parent.createChild(leaf)
}

// createChild creates and indexes the direct child group name.
func (g *Group) createChild(name string) (*Group, error) {
	child := newGroup(g.file, g, name)
	if !validName(name) {
		return nil, g.logicError("create group", name, ErrIllegalName, "")
	}
	if err := acquire(child.guard, "create group", g.file.backend.CreateGroup(g.Location(), name)); err != nil {
		return nil, err
	}
	g.groups[name] = child
	child.log().Debug("created group")
	return child, nil
}

// ensureGroup resolves p like Cd, creating every missing group on the way.
func (g *Group) ensureGroup(p, requested string) (*Group, error) {
	if p == "" {
		return g, nil
	}
	if strings.HasPrefix(p, "/") {
		return g.file.root.ensureGroup(p[1:], requested)
	}
	head, tail, more := strings.Cut(p, "/")
	next, err := g.step(head, requested)
	if errors.Is(err, ErrNotFound) {
		next, err = g.createChild(head)
	}
	if err != nil {
		return nil, err
	}
	if !more {
		return next, nil
	}
	return next.ensureGroup(tail, requested)
}

// RemoveGroup deletes the group at p with everything below it.
func (g *Group) RemoveGroup(p string) error {
	if err := g.file.writable(); err != nil {
		return err
	}
	dir, leaf := splitLast(normalize(p))
	parent, err := g.cd(dir, p)
	if err != nil {
		return err
	}
	child, ok := parent.groups[leaf]
	if !ok {
		return parent.logicError("remove group", p, ErrNotFound, fmt.Sprintf("no group %q", leaf))
	}
	if err := backend.Check("delete link", g.file.backend.DeleteLink(parent.Location(), leaf)); err != nil {
		return err
	}
	delete(parent.groups, leaf)
	child.log().Debug("removed group")
	return child.close()
}

// RemoveDataset deletes the dataset at p.
func (g *Group) RemoveDataset(p string) error {
	if err := g.file.writable(); err != nil {
		return err
	}
	dir, leaf := splitLast(normalize(p))
	parent, err := g.cd(dir, p)
	if err != nil {
		return err
	}
	ds, ok := parent.datasets[leaf]
	if !ok {
		return parent.logicError("remove dataset", p, ErrNotFound, fmt.Sprintf("no dataset %q", leaf))
	}
	if err := backend.Check("delete link", g.file.backend.DeleteLink(parent.Location(), leaf)); err != nil {
		return err
	}
	delete(parent.datasets, leaf)
	ds.log().Debug("removed dataset")
	return ds.close()
}

// RenameGroup moves the group at from to to, both relative to g. Missing
// groups on the way to to are created. Group values for the old location
// are closed; look the group up again at its new path.
func (g *Group) RenameGroup(from, to string) error {
	return g.rename("rename group", from, to, true)
}

// RenameDataset moves the dataset at from to to, both relative to g.
// Missing groups on the way to to are created.
func (g *Group) RenameDataset(from, to string) error {
	return g.rename("rename dataset", from, to, false)
}

func (g *Group) rename(op, from, to string, isGroup bool) error {
	if err := g.file.writable(); err != nil {
		return err
	}
	dir, leaf := splitLast(normalize(from))
	parent, err := g.cd(dir, from)
	if err != nil {
		return err
	}

	var old interface{ close() error }
	if isGroup {
		child, ok := parent.groups[leaf]
		if !ok {
			return parent.logicError(op, from, ErrNotFound, fmt.Sprintf("no group %q", leaf))
		}
		old = child
	} else {
		ds, ok := parent.datasets[leaf]
		if !ok {
			return parent.logicError(op, from, ErrNotFound, fmt.Sprintf("no dataset %q", leaf))
		}
		old = ds
	}

	dest, err := resolvePath(g.Path(), to)
	if err != nil {
		return g.logicError(op, to, err, "")
	}
	if dest == "/" {
		return g.logicError(op, to, ErrIllegalName, "")
	}

	b := g.file.backend
	if err := backend.Check("move link", b.MoveLink(parent.Location(), leaf, g.file.Location(), dest, true)); err != nil {
		return err
	}

	if isGroup {
		delete(parent.groups, leaf)
	} else {
		delete(parent.datasets, leaf)
	}
	closeErr := old.close()
	attachErr := g.file.root.attach(dest, isGroup)
	g.log().WithField("from", from).WithField("to", dest).Debug("renamed link")
	return errors.Join(closeErr, attachErr)
}

// maxAttachHops bounds how many soft links attach follows.
const maxAttachHops = 100

// attach indexes the object at the absolute path p after the backend
// created it. Intermediate groups missing from the index are opened with
// discovery, which also indexes the object itself. A soft link on the way
// is not indexed: attach continues at the link's target, where the backend
// put the object.
func (g *Group) attach(p string, isGroup bool) error {
	for hops := 0; hops < maxAttachHops; hops++ {
		next, done, err := g.attachStep(p, isGroup)
		if err != nil || done {
			return err
		}
		p = next
	}
	return g.logicError("attach", p, ErrNotFound, "too many soft links")
}

// attachStep indexes p, or returns the path to retry when p runs through a
// soft link.
func (g *Group) attachStep(p string, isGroup bool) (next string, done bool, err error) {
	segs := SplitPath(p)
	cur := g
	for i, seg := range segs[:len(segs)-1] {
		if child, ok := cur.groups[seg]; ok {
			cur = child
			continue
		}
		info, err := cur.linkInfo(seg)
		if err != nil {
			return "", false, err
		}
		if info.Type != backend.LinkHard {
			target, err := resolvePath(cur.Path(), info.Target)
			if err != nil {
				return "", false, cur.logicError("attach", seg, err, "")
			}
			rest := strings.Join(segs[i+1:], "/")
			return strings.TrimSuffix(target, "/") + "/" + rest, false, nil
		}
		opened, err := openGroup(cur, seg)
		if err != nil {
			return "", false, err
		}
		cur.groups[seg] = opened
		return "", true, nil
	}

	leaf := segs[len(segs)-1]
	if isGroup {
		if _, ok := cur.groups[leaf]; ok {
			return "", true, nil
		}
		child, err := openGroup(cur, leaf)
		if err != nil {
			return "", false, err
		}
		cur.groups[leaf] = child
		return "", true, nil
	}
	if _, ok := cur.datasets[leaf]; ok {
		return "", true, nil
	}
	ds, err := openDataset(cur, leaf)
	if err != nil {
		return "", false, err
	}
	cur.datasets[leaf] = ds
	return "", true, nil
}

// linkInfo describes the link name of g without following it.
func (g *Group) linkInfo(name string) (backend.LinkInfo, error) {
	var (
		info  backend.LinkInfo
		found bool
	)
	st := g.file.backend.IterateLinks(g.Location(), func(n string, li backend.LinkInfo) backend.Status {
		if n != name {
			return backend.StatusOK
		}
		info, found = li, true
		return 1
	})
	if err := backend.Check("iterate links", st); err != nil {
		return info, err
	}
	if !found {
		return info, g.logicError("attach", name, ErrNotFound, fmt.Sprintf("no link %q", name))
	}
	return info, nil
}

// copyDestination resolves the group a copy lands in and the name it gets.
// dest is split at its last slash as written, so "sub/" copies into sub
// under the source's own name.
func (g *Group) copyDestination(op, dest, srcName string) (*Group, string, error) {
	dir, leaf := splitLast(collapseSlashes(dest))
	target, err := g.cd(dir, dest)
	if err != nil {
		return nil, "", err
	}
	if leaf == "" {
		leaf = srcName
	}
	if !validName(leaf) {
		return nil, "", target.logicError(op, dest, ErrIllegalName, "")
	}
	return target, leaf, nil
}

// CopyGroup deep-copies src, which may belong to another file, to dest
// relative to g. An empty leaf in dest ("", "/" or "sub/") keeps the
// source name. The directory part of dest must exist.
func (g *Group) CopyGroup(src *Group, dest string) (*Group, error) {
	if err := g.file.writable(); err != nil {
		return nil, err
	}
	if src.IsRoot() {
		return nil, g.logicError("copy group", dest, ErrIllegalName, "cannot copy the root group")
	}
	target, name, err := g.copyDestination("copy group", dest, src.name)
	if err != nil {
		return nil, err
	}

	if src.file != g.file {
		return target.importGroup(src, name)
	}

	b := g.file.backend
	if err := backend.Check("copy object", b.CopyObject(src.parent.Location(), src.name, target.Location(), name)); err != nil {
		return nil, err
	}
	child, err := openGroup(target, name)
	if err != nil {
		return nil, err
	}
	target.groups[name] = child
	child.log().WithField("source", src.Path()).Debug("copied group")
	return child, nil
}

// CopyDataset copies src, which may belong to another file, to dest
// relative to g with the same rules as CopyGroup.
func (g *Group) CopyDataset(src *Dataset, dest string) (*Dataset, error) {
	if err := g.file.writable(); err != nil {
		return nil, err
	}
	target, name, err := g.copyDestination("copy dataset", dest, src.name)
	if err != nil {
		return nil, err
	}

	if src.file != g.file {
		return target.importDataset(src, name)
	}

	b := g.file.backend
	if err := backend.Check("copy object", b.CopyObject(src.parent.Location(), src.name, target.Location(), name)); err != nil {
		return nil, err
	}
	ds, err := openDataset(target, name)
	if err != nil {
		return nil, err
	}
	target.datasets[name] = ds
	ds.log().WithField("source", src.Path()).Debug("copied dataset")
	return ds, nil
}

// importGroup recreates src from another file as the child name of g.
func (g *Group) importGroup(src *Group, name string) (*Group, error) {
	child, err := g.createChild(name)
	if err != nil {
		return nil, err
	}
	if err := copyAttributes(&src.node, &child.node); err != nil {
		return nil, err
	}
	for _, n := range src.Groups() {
		if _, err := child.importGroup(src.groups[n], n); err != nil {
			return nil, err
		}
	}
	for _, n := range src.Datasets() {
		if _, err := child.importDataset(src.datasets[n], n); err != nil {
			return nil, err
		}
	}
	return child, nil
}

// importDataset recreates src from another file, records included, as the
// child name of g.
func (g *Group) importDataset(src *Dataset, name string) (*Dataset, error) {
	if !validName(name) {
		return nil, g.logicError("copy dataset", name, ErrIllegalName, "")
	}
	ds, err := createDataset(g, name, backend.DatasetInfo{
		Type:    src.info.Type,
		List:    src.info.List,
		Filters: src.info.Filters,
	})
	if err != nil {
		return nil, err
	}

	n, err := src.Len()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, src.info.Type.ByteSize())
	for i := uint64(0); i < n; i++ {
		if err := src.Read(i, buf); err != nil {
			return nil, err
		}
		if err := ds.writeRecord(i, buf); err != nil {
			return nil, err
		}
	}
	if err := copyAttributes(&src.node, &ds.node); err != nil {
		return nil, err
	}
	return ds, nil
}

// CreateDataset creates a dataset of type t at path p. Missing groups in
// the directory part of p are created.
func (g *Group) CreateDataset(p string, t Type, opts ...DatasetOption) (*Dataset, error) {
	if err := g.file.writable(); err != nil {
		return nil, err
	}
	o := g.file.defaultDatasetOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("create dataset %q: %w", p, err)
	}

	dir, leaf := splitLast(normalize(p))
	if !validName(leaf) {
		return nil, g.logicError("create dataset", p, ErrIllegalName, "")
	}
	parent, err := g.ensureGroup(dir, p)
	if err != nil {
		return nil, err
	}

	ds, err := createDataset(parent, leaf, backend.DatasetInfo{
		Type:    t,
		List:    o.list,
		Filters: o.filters(t),
	})
	if err != nil {
		return nil, err
	}
	for _, a := range o.attributes {
		if err := ds.SetAttr(a.name, a.value); err != nil {
			return nil, fmt.Errorf("dataset %s attribute %q: %w", ds.Path(), a.name, err)
		}
	}
	return ds, nil
}

// CreateSoftLink adds a soft link name in g pointing at target. Soft links
// are followed by the backend but never indexed.
func (g *Group) CreateSoftLink(name, target string) error {
	if err := g.file.writable(); err != nil {
		return err
	}
	if !validName(name) {
		return g.logicError("create soft link", name, ErrIllegalName, "")
	}
	return backend.Check("create soft link", g.file.backend.CreateSoftLink(g.Location(), name, target))
}

// Reset removes every child group, then every child dataset, leaving g
// empty.
func (g *Group) Reset() error {
	if err := g.file.writable(); err != nil {
		return err
	}
	for _, name := range g.Groups() {
		if err := g.RemoveGroup(name); err != nil {
			return err
		}
	}
	for _, name := range g.Datasets() {
		if err := g.RemoveDataset(name); err != nil {
			return err
		}
	}
	return nil
}
