package hdf5

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/backend/badgerstore"
	"github.com/robert-malhotra/h5tree/internal/backend/memstore"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// File is an open container. It owns the backend, the file location handle
// and the root group, whose index is discovered when the file is opened.
type File struct {
	name     string
	backend  backend.Backend
	location *handle.Guard
	root     *Group
	log      *logrus.Entry
	opts     *fileOptions
	closed   bool
}

// BadgerConfig configures a file kept in a Badger database directory.
type BadgerConfig = badgerstore.Config

func applyFileOptions(opts []FileOption) *fileOptions {
	o := defaultFileOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create creates a new snapshot file at path, truncating any existing one.
// Changes are written back on Flush and Close.
func Create(path string, opts ...FileOption) (*File, error) {
	o := applyFileOptions(opts)
	if o.readOnly {
		return nil, fmt.Errorf("create %s: %w", path, ErrReadOnly)
	}
	store, err := memstore.Create(path)
	if err != nil {
		return nil, err
	}
	return newFile(path, store, o)
}

// Open opens an existing snapshot file for reading.
func Open(path string, opts ...FileOption) (*File, error) {
	return openSnapshot(path, append(opts, WithReadOnly()))
}

// OpenReadWrite opens an existing snapshot file for reading and writing.
func OpenReadWrite(path string, opts ...FileOption) (*File, error) {
	return openSnapshot(path, opts)
}

func openSnapshot(path string, opts []FileOption) (*File, error) {
	o := applyFileOptions(opts)
	store, err := memstore.Open(path)
	if errors.Is(err, memstore.ErrSignature) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotContainer)
	}
	if err != nil {
		return nil, err
	}
	return newFile(path, store, o)
}

// CreateMemory creates a file that lives only in memory. name is what
// Filename reports.
func CreateMemory(name string, opts ...FileOption) (*File, error) {
	return newFile(name, memstore.New(), applyFileOptions(opts))
}

// OpenBadger opens, or initializes, a file kept in a Badger database.
func OpenBadger(cfg BadgerConfig, opts ...FileOption) (*File, error) {
	o := applyFileOptions(opts)
	if cfg.Logger == nil {
		cfg.Logger = o.logger
	}
	if o.readOnly {
		cfg.ReadOnly = true
	}
	o.readOnly = cfg.ReadOnly

	name := cfg.Dir
	if cfg.InMemory {
		name = "badger:memory"
	}

	store, err := badgerstore.Open(cfg)
	if err != nil {
		return nil, err
	}
	return newFile(name, store, o)
}

func newFile(name string, store backend.Store, o *fileOptions) (*File, error) {
	log := o.logger.WithField("file", name)

	engineOpts := []backend.EngineOption{backend.WithLogger(log)}
	if o.readOnly {
		engineOpts = append(engineOpts, backend.ReadOnly())
	}
	eng, err := backend.NewEngine(store, engineOpts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	f := &File{
		name:     name,
		backend:  eng,
		location: handle.NewGuard(handle.KindFile, nil),
		log:      log,
		opts:     o,
	}
	f.location.Acquire(eng.FileID())

	root, err := openRoot(f)
	if err != nil {
		eng.Close()
		return nil, err
	}
	f.root = root

	log.WithField("read_only", o.readOnly).Debug("opened file")
	return f, nil
}

// Filename returns the name the file was opened with.
func (f *File) Filename() string {
	return f.name
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// Location returns the backend handle new children of the root attach
// under.
func (f *File) Location() handle.ID {
	return f.location.ID()
}

// IsReadOnly returns true if the file rejects writes.
func (f *File) IsReadOnly() bool {
	return f.opts.readOnly
}

// Flush writes pending changes to storage.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	return f.backend.Flush()
}

// Close releases every handle of the tree and closes the backend, which
// writes pending changes. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var rootErr error
	if f.root != nil {
		rootErr = f.root.close()
	}
	locErr := f.location.Close()
	return errors.Join(rootErr, locErr, f.backend.Close())
}

// writable fails unless the tree may be modified.
func (f *File) writable() error {
	if f.closed {
		return ErrClosed
	}
	if f.opts.readOnly {
		return ErrReadOnly
	}
	return nil
}

func (f *File) closeGroup(id handle.ID) error {
	return backend.Check("close group", f.backend.CloseGroup(id))
}

func (f *File) closeDataset(id handle.ID) error {
	return backend.Check("close dataset", f.backend.CloseDataset(id))
}

func (f *File) closeAttribute(id handle.ID) error {
	return backend.Check("close attribute", f.backend.CloseAttribute(id))
}

// acquire hands the result of a backend open or create call to g, turning
// a failure status into a StatusError.
func acquire(g *handle.Guard, op string, id handle.ID) error {
	if g.Acquire(id) {
		return nil
	}
	return backend.CheckID(op, id)
}

// Object is a group or a dataset.
type Object interface {
	Name() string
	Path() string
	Parent() *Group
	File() *File
	HasAttribute(name string) (bool, error)
	Attributes() ([]string, error)
	AttributeType(name string) (Type, error)
	ReadAttribute(name string, t Type, buf []byte) error
	WriteAttribute(name string, t Type, buf []byte) error
	DeleteAttribute(name string) error
	SetAttr(name string, value interface{}) error
	Attr(name string, dest interface{}) error
}

// Lookup returns the group or dataset at the absolute path p.
func (f *File) Lookup(p string) (Object, error) {
	if f.closed {
		return nil, ErrClosed
	}
	p = CleanPath(p)
	if ok, err := f.root.HasDataset(p); err == nil && ok {
		return f.root.Dataset(p)
	}
	return f.root.Cd(p)
}

// ReadAttr reads an attribute by its attribute path (e.g. "/data@units")
// and returns the value in its natural Go type.
func (f *File) ReadAttr(attrPath string) (interface{}, error) {
	objPath, attrName, err := ParseAttrPath(attrPath)
	if err != nil {
		return nil, err
	}
	obj, err := f.Lookup(objPath)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := obj.Attr(attrName, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// WriteAttr sets an attribute by its attribute path, inferring the type
// from value.
func (f *File) WriteAttr(attrPath string, value interface{}) error {
	objPath, attrName, err := ParseAttrPath(attrPath)
	if err != nil {
		return err
	}
	obj, err := f.Lookup(objPath)
	if err != nil {
		return err
	}
	return obj.SetAttr(attrName, value)
}
