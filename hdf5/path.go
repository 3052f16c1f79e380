package hdf5

import (
	"fmt"
	"strings"
)

// normalize collapses runs of slashes and drops a trailing slash. The root
// path "/" is kept as is.
func normalize(p string) string {
	out := collapseSlashes(p)
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

// collapseSlashes replaces every run of slashes with a single one.
func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' && prevSlash {
			continue
		}
		prevSlash = c == '/'
		b.WriteByte(c)
	}
	return b.String()
}

// splitLast splits a normalized path at its last slash into a directory
// part and a leaf name. A path with no slash has an empty directory, which
// names the current group; "/x" has the directory "/".
func splitLast(p string) (dir, leaf string) {
	i := strings.LastIndexByte(p, '/')
	switch {
	case i < 0:
		return "", p
	case i == 0:
		return "/", p[1:]
	default:
		return p[:i], p[i+1:]
	}
}

// validName reports whether name may be stored as a link name.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.Contains(name, "/")
}

// resolvePath turns p, relative to the absolute path base, into a clean
// absolute path. It fails with ErrBeyondRoot if ".." climbs past the root.
func resolvePath(base, p string) (string, error) {
	var segs []string
	if !strings.HasPrefix(p, "/") {
		segs = SplitPath(base)
	}
	for _, s := range SplitPath(p) {
		switch s {
		case ".":
		case "..":
			if len(segs) == 0 {
				return "", ErrBeyondRoot
			}
			segs = segs[:len(segs)-1]
		default:
			segs = append(segs, s)
		}
	}
	return CleanPath(strings.Join(segs, "/")), nil
}

// ParseAttrPath parses an attribute path into object path and attribute name.
// Path format: /group/subgroup/object@attribute_name
//
// Examples:
//   - "/@title" -> objectPath="/", attrName="title"
//   - "/images/frame0@exposure" -> objectPath="/images/frame0", attrName="exposure"
func ParseAttrPath(path string) (objectPath, attrName string, err error) {
	if path == "" {
		return "", "", fmt.Errorf("empty attribute path")
	}

	atIdx := strings.LastIndex(path, "@")
	if atIdx == -1 {
		return "", "", fmt.Errorf("attribute path must contain '@' separator: %s", path)
	}

	objectPath = path[:atIdx]
	attrName = path[atIdx+1:]
	if attrName == "" {
		return "", "", fmt.Errorf("attribute name cannot be empty: %s", path)
	}
	return CleanPath(objectPath), attrName, nil
}

// JoinAttrPath creates an attribute path from object path and attribute name.
func JoinAttrPath(objectPath, attrName string) string {
	if objectPath == "/" {
		return "/@" + attrName
	}
	return objectPath + "@" + attrName
}

// SplitPath splits a path into its components, dropping empty ones.
//
// Examples:
//   - "/" -> []string{}
//   - "/foo//bar/" -> []string{"foo", "bar"}
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanPath normalizes a path, ensuring it starts with "/" and has no
// trailing or repeated slashes.
func CleanPath(path string) string {
	path = normalize(path)
	if path == "" || path == "/" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
