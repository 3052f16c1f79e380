package backend

import (
	"errors"
	"strings"
)

// splitName breaks a backend name into segments. Empty and "." segments
// are dropped; ".." is rejected since links carry no parent pointer.
func splitName(name string) (absolute bool, segs []string, st Status) {
	absolute = strings.HasPrefix(name, "/")
	for _, s := range strings.Split(name, "/") {
		switch s {
		case "", ".":
			continue
		case "..":
			return false, nil, StatusBadName
		}
		segs = append(segs, s)
	}
	return absolute, segs, StatusOK
}

func (e *Engine) start(base uint64, absolute bool) uint64 {
	if absolute {
		return e.root
	}
	return base
}

// requireGroup fails with StatusWrongKind unless addr is a group.
func (e *Engine) requireGroup(addr uint64) Status {
	obj, err := e.tx.Object(addr)
	if errors.Is(err, ErrNotFound) {
		return StatusNotFound
	}
	if err != nil {
		return e.storeFail("object", "", err)
	}
	if obj.Type != ObjectGroup {
		return StatusWrongKind
	}
	return StatusOK
}

// walk follows the link seg inside group addr, resolving soft links
// relative to addr.
func (e *Engine) walk(addr uint64, seg string, hops int) (uint64, Status) {
	link, err := e.tx.Link(addr, seg)
	if errors.Is(err, ErrNotFound) {
		return 0, StatusNotFound
	}
	if err != nil {
		return 0, e.storeFail("link", seg, err)
	}
	if link.Type == LinkHard {
		return link.Addr, StatusOK
	}
	if hops >= maxSoftLinkHops {
		e.log.WithField("target", link.Target).Debug("soft link chain too long")
		return 0, StatusFail
	}
	return e.resolveFrom(addr, link.Target, hops+1)
}

// resolveFrom resolves name starting at group base.
func (e *Engine) resolveFrom(base uint64, name string, hops int) (uint64, Status) {
	absolute, segs, st := splitName(name)
	if !st.OK() {
		return 0, st
	}
	return e.resolveSegs(e.start(base, absolute), segs, hops)
}

func (e *Engine) resolveSegs(cur uint64, segs []string, hops int) (uint64, Status) {
	for _, seg := range segs {
		if st := e.requireGroup(cur); !st.OK() {
			return 0, st
		}
		next, st := e.walk(cur, seg, hops)
		if !st.OK() {
			return 0, st
		}
		cur = next
	}
	return cur, StatusOK
}

// resolveParent resolves every segment of name but the last and returns
// the containing group with the leaf name.
func (e *Engine) resolveParent(base uint64, name string) (uint64, string, Status) {
	absolute, segs, st := splitName(name)
	if !st.OK() {
		return 0, "", st
	}
	if len(segs) == 0 {
		return 0, "", StatusBadName
	}
	parent, st := e.resolveSegs(e.start(base, absolute), segs[:len(segs)-1], 0)
	if !st.OK() {
		return 0, "", st
	}
	if st := e.requireGroup(parent); !st.OK() {
		return 0, "", st
	}
	return parent, segs[len(segs)-1], StatusOK
}

// resolvePrefix walks the directory part of name as far as it exists and
// returns the deepest group reached, the segments still missing and the
// leaf name.
func (e *Engine) resolvePrefix(base uint64, name string) (uint64, []string, string, Status) {
	absolute, segs, st := splitName(name)
	if !st.OK() {
		return 0, nil, "", st
	}
	if len(segs) == 0 {
		return 0, nil, "", StatusBadName
	}
	dir, leaf := segs[:len(segs)-1], segs[len(segs)-1]

	cur := e.start(base, absolute)
	for i, seg := range dir {
		if st := e.requireGroup(cur); !st.OK() {
			return 0, nil, "", st
		}
		next, st := e.walk(cur, seg, 0)
		if st == StatusNotFound {
			return cur, dir[i:], leaf, StatusOK
		}
		if !st.OK() {
			return 0, nil, "", st
		}
		cur = next
	}
	if st := e.requireGroup(cur); !st.OK() {
		return 0, nil, "", st
	}
	return cur, nil, leaf, StatusOK
}

// createPath creates the groups named by missing under parent.
func (e *Engine) createPath(parent uint64, missing []string) (uint64, Status) {
	cur := parent
	for _, seg := range missing {
		next, st := e.createGroupAt(cur, seg)
		if !st.OK() {
			return 0, st
		}
		cur = next
	}
	return cur, StatusOK
}

// contains reports whether target is root or reachable from root through
// hard links.
func (e *Engine) contains(root, target uint64) (bool, Status) {
	seen := map[uint64]bool{}
	stack := []uint64{root}
	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if addr == target {
			return true, StatusOK
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true

		links, err := e.tx.Links(addr)
		if err != nil {
			return false, e.storeFail("links", "", err)
		}
		for _, l := range links {
			if l.Type == LinkHard {
				stack = append(stack, l.Addr)
			}
		}
	}
	return false, StatusOK
}
