package backend

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5tree/internal/filter"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// maxSoftLinkHops bounds soft link resolution so cycles fail instead of
// looping.
const maxSoftLinkHops = 100

// Engine implements Backend over a Store.
type Engine struct {
	mu    sync.Mutex
	store Store
	log   logrus.FieldLogger

	// tx is the store outside a mutation and the open transaction inside
	// one.
	tx Tx
	// doomed collects objects destroyed by the open transaction; their
	// handles go stale once it commits.
	doomed []uint64

	readOnly bool
	closed   bool

	root    uint64
	fileID  handle.ID
	nextID  handle.ID
	handles map[handle.ID]*openObject
}

// openObject is the state behind one handle.
type openObject struct {
	kind handle.Kind
	addr uint64 // the object, or the owner for attributes
	name string // attribute name

	// stale is set when the object is destroyed while the handle is open.
	stale bool

	pipeline *filter.Pipeline // datasets only
}

var _ Backend = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger routes engine diagnostics to log.
func WithLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// ReadOnly makes every mutating call fail with StatusReadOnly.
func ReadOnly() EngineOption {
	return func(e *Engine) {
		e.readOnly = true
	}
}

// NewEngine opens the object graph held by store, creating the root group
// when the store is empty.
func NewEngine(store Store, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:   store,
		tx:      store,
		log:     logrus.StandardLogger(),
		nextID:  1,
		handles: make(map[handle.ID]*openObject),
	}
	for _, opt := range opts {
		opt(e)
	}

	root, err := store.Root()
	switch {
	case errors.Is(err, ErrNotFound):
		if e.readOnly {
			return nil, fmt.Errorf("store has no root group")
		}
		err = store.Update(func(tx Tx) error {
			e.tx = tx
			defer func() { e.tx = store }()
			root, err = e.createRoot()
			return err
		})
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading root: %w", err)
	}

	obj, err := store.Object(root)
	if err != nil {
		return nil, fmt.Errorf("reading root object 0x%x: %w", root, err)
	}
	if obj.Type != ObjectGroup {
		return nil, fmt.Errorf("root object 0x%x is a %s", root, obj.Type)
	}

	e.root = root
	e.fileID = e.register(handle.KindFile, root)
	return e, nil
}

func (e *Engine) createRoot() (uint64, error) {
	addr, err := e.tx.Alloc()
	if err != nil {
		return 0, fmt.Errorf("allocating root: %w", err)
	}
	if err := e.tx.PutObject(Object{Addr: addr, Type: ObjectGroup, RefCount: 1}); err != nil {
		return 0, fmt.Errorf("writing root: %w", err)
	}
	if err := e.tx.SetRoot(addr); err != nil {
		return 0, fmt.Errorf("setting root: %w", err)
	}
	e.log.WithField("addr", addr).Debug("created root group")
	return addr, nil
}

// FileID returns the handle of the file location, which resolves to the
// root group.
func (e *Engine) FileID() handle.ID {
	return e.fileID
}

// ReadOnly reports whether mutations are rejected.
func (e *Engine) ReadOnly() bool {
	return e.readOnly
}

// OpenHandles returns the number of handles currently open, including the
// file handle.
func (e *Engine) OpenHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

// Flush persists pending store changes.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return &StatusError{Op: "flush", Status: StatusClosed}
	}
	if e.readOnly {
		return nil
	}
	return e.store.Sync()
}

// Close flushes and closes the store. Handles still open are logged and
// dropped.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if n := len(e.handles) - 1; n > 0 {
		e.log.WithField("handles", n).Debug("closing backend with open handles")
	}
	e.handles = nil

	var syncErr error
	if !e.readOnly {
		syncErr = e.store.Sync()
	}
	return errors.Join(syncErr, e.store.Close())
}

func (e *Engine) register(kind handle.Kind, addr uint64) handle.ID {
	id := e.nextID
	e.nextID++
	e.handles[id] = &openObject{kind: kind, addr: addr}
	return id
}

// lookupHandle returns the open object behind id if its kind is one of kinds.
func (e *Engine) lookupHandle(id handle.ID, kinds ...handle.Kind) (*openObject, Status) {
	if e.closed {
		return nil, StatusClosed
	}
	h, ok := e.handles[id]
	if !ok {
		return nil, StatusBadHandle
	}
	if h.stale {
		return nil, StatusNotFound
	}
	for _, k := range kinds {
		if h.kind == k {
			return h, StatusOK
		}
	}
	return nil, StatusWrongKind
}

// location returns the group address a handle names children under.
func (e *Engine) location(loc handle.ID) (uint64, Status) {
	h, st := e.lookupHandle(loc, handle.KindFile, handle.KindGroup)
	if !st.OK() {
		return 0, st
	}
	return h.addr, StatusOK
}

// owner returns the address of an object attributes can be attached to.
func (e *Engine) owner(loc handle.ID) (uint64, Status) {
	h, st := e.lookupHandle(loc, handle.KindFile, handle.KindGroup, handle.KindDataset)
	if !st.OK() {
		return 0, st
	}
	return h.addr, StatusOK
}

func (e *Engine) closeHandle(op string, id handle.ID, kind handle.Kind) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return e.fail(op, "", StatusClosed)
	}
	h, ok := e.handles[id]
	if !ok {
		return e.fail(op, "", StatusBadHandle)
	}
	if h.kind != kind {
		return e.fail(op, "", StatusWrongKind)
	}
	delete(e.handles, id)
	return StatusOK
}

// invalidate marks every handle that refers to addr as stale.
func (e *Engine) invalidate(addr uint64) {
	for _, h := range e.handles {
		if h.addr == addr && h.kind != handle.KindFile {
			h.stale = true
		}
	}
}

func (e *Engine) fail(op, name string, st Status) Status {
	entry := e.log.WithFields(logrus.Fields{"op": op, "status": int(st)})
	if name != "" {
		entry = entry.WithField("name", name)
	}
	entry.Debugf("backend call failed: %s", st)
	return st
}

func (e *Engine) storeFail(op, name string, err error) Status {
	e.log.WithFields(logrus.Fields{"op": op, "name": name}).WithError(err).Warn("store operation failed")
	return StatusStore
}

// errAbort makes Store.Update discard the writes of an operation that
// failed with a status.
var errAbort = errors.New("backend: operation aborted")

// update runs fn as one store transaction. A failing status from fn
// discards every write it made; otherwise the writes commit together and
// handles to destroyed objects go stale.
func (e *Engine) update(op, name string, fn func() Status) Status {
	st := StatusOK
	e.doomed = e.doomed[:0]
	err := e.store.Update(func(tx Tx) error {
		e.tx = tx
		defer func() { e.tx = e.store }()
		st = fn()
		if !st.OK() {
			return errAbort
		}
		return nil
	})
	if err != nil && !errors.Is(err, errAbort) {
		return e.storeFail(op, name, err)
	}
	if st.OK() {
		for _, addr := range e.doomed {
			e.invalidate(addr)
		}
	}
	e.doomed = e.doomed[:0]
	return st
}

// mutable checks the common preconditions of a write.
func (e *Engine) mutable() Status {
	if e.closed {
		return StatusClosed
	}
	if e.readOnly {
		return StatusReadOnly
	}
	return StatusOK
}
