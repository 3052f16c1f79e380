package hdf5

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// node is the state shared by groups and datasets: the owning file, the
// parent group, the name and the backend handle.
type node struct {
	file   *File
	parent *Group // back reference, not owned; nil for the root
	name   string
	guard  *handle.Guard
}

// Name returns the object's own name, empty for the root group.
func (n *node) Name() string {
	return n.name
}

// Path returns the absolute path, computed from the parent chain.
func (n *node) Path() string {
	switch {
	case n.parent == nil:
		return "/"
	case n.parent.parent == nil:
		return "/" + n.name
	default:
		return n.parent.Path() + "/" + n.name
	}
}

// Parent returns the containing group, or nil for the root.
func (n *node) Parent() *Group {
	return n.parent
}

// File returns the file the object belongs to.
func (n *node) File() *File {
	return n.file
}

// Filename returns the name of the owning file.
func (n *node) Filename() string {
	return n.file.Filename()
}

// Location returns the backend handle of the object.
func (n *node) Location() handle.ID {
	return n.guard.ID()
}

func (n *node) log() *logrus.Entry {
	return n.file.log.WithField("path", n.Path())
}

func (n *node) logicError(op, name string, err error, detail string) error {
	return &LogicError{
		Op:     op,
		File:   n.file.name,
		Path:   n.Path(),
		Name:   name,
		Detail: detail,
		Err:    err,
	}
}

// Group is a container of named child groups and datasets. Its index of
// children mirrors the backend and is updated by every mutation.
type Group struct {
	node
	groups   map[string]*Group
	datasets map[string]*Dataset
}

func newGroup(f *File, parent *Group, name string) *Group {
	return &Group{
		node: node{
			file:   f,
			parent: parent,
			name:   name,
			guard:  handle.NewGuard(handle.KindGroup, f.closeGroup),
		},
		groups:   make(map[string]*Group),
		datasets: make(map[string]*Dataset),
	}
}

// openRoot opens "/" under the file location and discovers the tree.
func openRoot(f *File) (*Group, error) {
	g := newGroup(f, nil, "")
	if err := acquire(g.guard, "open group", f.backend.OpenGroup(f.Location(), "/")); err != nil {
		return nil, err
	}
	if err := g.discover(); err != nil {
		g.close()
		return nil, err
	}
	return g, nil
}

// openGroup opens the existing child name of parent and discovers its
// subtree. The group is not registered in parent's index.
func openGroup(parent *Group, name string) (*Group, error) {
	g := newGroup(parent.file, parent, name)
	if !validName(name) {
		return nil, g.logicError("open group", name, ErrIllegalName, "")
	}
	if err := acquire(g.guard, "open group", parent.file.backend.OpenGroup(parent.Location(), name)); err != nil {
		return nil, err
	}
	if err := g.discover(); err != nil {
		g.close()
		return nil, err
	}
	return g, nil
}

// discover walks the backend links of g in name order and indexes every
// hard-linked group (recursively) and dataset.
func (g *Group) discover() error {
	b := g.file.backend
	var walkErr error

	st := b.IterateLinks(g.Location(), func(name string, info backend.LinkInfo) backend.Status {
		if info.Type != backend.LinkHard {
			g.log().WithFields(logrus.Fields{"link": name, "type": info.Type}).Debug("skipping non-hard link")
			return backend.StatusOK
		}
		obj, st := b.ObjectInfo(g.Location(), name)
		if !st.OK() {
			walkErr = backend.Check("object info", st)
			return st
		}

		switch obj.Type {
		case backend.ObjectGroup:
			child, err := openGroup(g, name)
			if err != nil {
				walkErr = err
				return backend.StatusFail
			}
			g.groups[name] = child
		case backend.ObjectDataset:
			ds, err := openDataset(g, name)
			if err != nil {
				walkErr = err
				return backend.StatusFail
			}
			g.datasets[name] = ds
		default:
			g.log().WithFields(logrus.Fields{"link": name, "type": obj.Type}).Debug("ignoring unknown object")
		}
		return backend.StatusOK
	})
	if walkErr != nil {
		return walkErr
	}
	return backend.Check("iterate links", st)
}

// close releases the handles of g and everything indexed below it.
func (g *Group) close() error {
	var errs []error
	for _, ds := range g.datasets {
		errs = append(errs, ds.close())
	}
	for _, child := range g.groups {
		errs = append(errs, child.close())
	}
	g.datasets = make(map[string]*Dataset)
	g.groups = make(map[string]*Group)
	errs = append(errs, g.guard.Close())
	return errors.Join(errs...)
}

// IsRoot returns true for the root group of a file.
func (g *Group) IsRoot() bool {
	return g.parent == nil
}

// Groups returns the names of the child groups, sorted.
func (g *Group) Groups() []string {
	names := make([]string, 0, len(g.groups))
	for name := range g.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Datasets returns the names of the child datasets, sorted.
func (g *Group) Datasets() []string {
	names := make([]string, 0, len(g.datasets))
	for name := range g.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cd returns the group at path p. An absolute path starts at the root;
// "." is the group itself and ".." its parent. Repeated and trailing
// slashes are ignored. Every segment must name an indexed group.
func (g *Group) Cd(p string) (*Group, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	return g.cd(normalize(p), p)
}

func (g *Group) cd(p, requested string) (*Group, error) {
	if p == "" {
		return g, nil
	}
	if strings.HasPrefix(p, "/") {
		return g.file.root.cd(p[1:], requested)
	}
	head, tail, more := strings.Cut(p, "/")
	next, err := g.step(head, requested)
	if err != nil {
		return nil, err
	}
	if !more {
		return next, nil
	}
	return next.cd(tail, requested)
}

// step resolves one path segment.
func (g *Group) step(name, requested string) (*Group, error) {
	switch name {
	case ".":
		return g, nil
	case "..":
		if g.parent == nil {
			return nil, g.logicError("cd", requested, ErrBeyondRoot, "")
		}
		return g.parent, nil
	}
	child, ok := g.groups[name]
	if !ok {
		return nil, g.logicError("cd", requested, ErrNotFound, fmt.Sprintf("no group %q", name))
	}
	return child, nil
}

// Dataset returns the dataset at path p. Everything before the last slash
// is resolved as with Cd.
func (g *Group) Dataset(p string) (*Dataset, error) {
	if g.file.closed {
		return nil, ErrClosed
	}
	dir, leaf := splitLast(normalize(p))
	parent, err := g.cd(dir, p)
	if err != nil {
		return nil, err
	}
	ds, ok := parent.datasets[leaf]
	if !ok {
		return nil, parent.logicError("dataset", p, ErrNotFound, fmt.Sprintf("no dataset %q", leaf))
	}
	return ds, nil
}

// HasGroup reports whether p names a group. A missing final segment gives
// false; missing intermediate groups are still an error.
func (g *Group) HasGroup(p string) (bool, error) {
	if g.file.closed {
		return false, ErrClosed
	}
	dir, leaf := splitLast(normalize(p))
	parent, err := g.cd(dir, p)
	if err != nil {
		return false, err
	}
	switch leaf {
	case "", ".":
		return true, nil
	case "..":
		return parent.parent != nil, nil
	}
	_, ok := parent.groups[leaf]
	return ok, nil
}

// HasDataset reports whether p names a dataset, with the same rules as
// HasGroup.
func (g *Group) HasDataset(p string) (bool, error) {
	if g.file.closed {
		return false, ErrClosed
	}
	dir, leaf := splitLast(normalize(p))
	parent, err := g.cd(dir, p)
	if err != nil {
		return false, err
	}
	_, ok := parent.datasets[leaf]
	return ok, nil
}
