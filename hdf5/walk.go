package hdf5

import (
	"errors"
	"sort"
)

// WalkFunc is called for each object during traversal.
// path is the full path to the object.
// obj is either *Group or *Dataset.
// Return nil to continue walking, ErrStopWalk to stop quietly, or any other
// error to stop and have Walk return it.
type WalkFunc func(path string, obj interface{}) error

// Walk traverses all indexed groups and datasets below g, starting with g
// itself. Children are visited in name order, each group before its
// contents.
//
// Example:
//
//	Walk(root, func(path string, obj interface{}) error {
//	    switch o := obj.(type) {
//	    case *Group:
//	        fmt.Println("Group:", path)
//	    case *Dataset:
//	        fmt.Println("Dataset:", path, "type:", o.Type())
//	    }
//	    return nil
//	})
func Walk(g *Group, fn WalkFunc) error {
	if g.file.closed {
		return ErrClosed
	}
	if err := walkGroup(g, fn); err != nil && !IsStopWalk(err) {
		return err
	}
	return nil
}

func walkGroup(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g); err != nil {
		return err
	}
	for _, name := range g.members() {
		if child, ok := g.groups[name]; ok {
			if err := walkGroup(child, fn); err != nil {
				return err
			}
			continue
		}
		ds := g.datasets[name]
		if err := fn(ds.Path(), ds); err != nil {
			return err
		}
	}
	return nil
}

// members returns the names of all children, sorted.
func (g *Group) members() []string {
	names := make([]string, 0, len(g.groups)+len(g.datasets))
	for name := range g.groups {
		names = append(names, name)
	}
	for name := range g.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AttrInfo contains information about an attribute during walking.
type AttrInfo struct {
	// Path is the full attribute path (e.g., "/group/dataset@attr")
	Path string

	// ObjectPath is the path to the object containing this attribute
	ObjectPath string

	// ObjectType is "group" or "dataset"
	ObjectType string

	// Name is the attribute name
	Name string

	// Type is the stored attribute type
	Type Type

	// Value contains the decoded attribute value (nil on read error)
	Value interface{}

	// Err contains any error from reading the attribute value
	Err error
}

// WalkAttrsFunc is the callback function type for WalkAttrs.
// Return nil to continue walking, or an error to stop.
type WalkAttrsFunc func(info AttrInfo) error

// WalkAttrs walks every attribute of every group and dataset in the file.
//
// Example:
//
//	f.WalkAttrs(func(info hdf5.AttrInfo) error {
//	    fmt.Printf("%s = %v\n", info.Path, info.Value)
//	    return nil
//	})
func (f *File) WalkAttrs(fn WalkAttrsFunc) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(path string, obj interface{}) error {
		var (
			n       *node
			objType string
		)
		switch o := obj.(type) {
		case *Group:
			n, objType = &o.node, "group"
		case *Dataset:
			n, objType = &o.node, "dataset"
		}

		names, err := n.Attributes()
		if err != nil {
			return err
		}
		for _, name := range names {
			info := AttrInfo{
				Path:       JoinAttrPath(path, name),
				ObjectPath: path,
				ObjectType: objType,
				Name:       name,
			}
			info.Type, info.Err = n.AttributeType(name)
			if info.Err == nil {
				var v interface{}
				if info.Err = n.Attr(name, &v); info.Err == nil {
					info.Value = v
				}
			}
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrStopWalk can be returned from a WalkFunc or WalkAttrsFunc to stop
// walking without an error.
var ErrStopWalk = errors.New("walk stopped")

// IsStopWalk returns true if the error is ErrStopWalk.
func IsStopWalk(err error) bool {
	return errors.Is(err, ErrStopWalk)
}
