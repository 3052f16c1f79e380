// Package hdf5 provides a filesystem-like tree of groups and typed datasets
// stored in a self-describing container file.
//
// The API follows the HDF5 group and dataset model, but the files are not
// HDF5: a container is either an h5tree snapshot (CBOR records, zstd
// compressed, blake3 digest) or a Badger database directory. Open rejects
// anything else with ErrNotContainer.
package hdf5

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robert-malhotra/h5tree/internal/backend"
)

// Common errors
var (
	ErrNotContainer = errors.New("not an h5tree file")
	ErrNotFound     = errors.New("object not found")
	ErrIllegalName  = errors.New("illegal name")
	ErrBeyondRoot   = errors.New("path goes above the root group")
	ErrTypeMismatch = errors.New("incompatible datatype")
	ErrBufferSize   = errors.New("buffer size does not match datatype")
	ErrNotList      = errors.New("dataset is not a list")
	ErrReadOnly     = errors.New("file is read-only")
	ErrClosed       = errors.New("file is closed")
)

// StatusError is returned when a backend call fails. It records the
// backend operation and the negative status it returned.
type StatusError = backend.StatusError

// Status is a backend call result.
type Status = backend.Status

// Backend statuses callers commonly test for with IsStatus.
const (
	StatusNotFound    = backend.StatusNotFound
	StatusExists      = backend.StatusExists
	StatusWrongKind   = backend.StatusWrongKind
	StatusBadName     = backend.StatusBadName
	StatusBadArgument = backend.StatusBadArgument
	StatusReadOnly    = backend.StatusReadOnly
)

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status Status) bool {
	return backend.IsStatus(err, status)
}

// LogicError reports a violation of the tree's own rules: an illegal name,
// navigation above the root, an unresolved path or a type mismatch. It
// unwraps to one of the package sentinels.
type LogicError struct {
	Op     string // operation, e.g. "cd" or "read attribute"
	File   string // file name
	Path   string // path of the group the operation ran on
	Name   string // requested path or name
	Detail string
	Err    error
}

func (e *LogicError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	fmt.Fprintf(&b, " (file %s, at %s)", e.File, e.Path)
	return b.String()
}

func (e *LogicError) Unwrap() error {
	return e.Err
}
