package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/h5tree/internal/backend"
	"github.com/robert-malhotra/h5tree/internal/dtype"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// Dataset is a typed leaf of the tree. A plain dataset holds one value of
// its type; a list dataset holds any number of them, appended in order.
type Dataset struct {
	node
	info backend.DatasetInfo
}

func newDataset(parent *Group, name string) *Dataset {
	f := parent.file
	return &Dataset{
		node: node{
			file:   f,
			parent: parent,
			name:   name,
			guard:  handle.NewGuard(handle.KindDataset, f.closeDataset),
		},
	}
}

// openDataset opens the existing child name of parent. The dataset is not
// registered in parent's index.
func openDataset(parent *Group, name string) (*Dataset, error) {
	ds := newDataset(parent, name)
	b := parent.file.backend
	if err := acquire(ds.guard, "open dataset", b.OpenDataset(parent.Location(), name)); err != nil {
		return nil, err
	}
	info, st := b.DatasetInfo(ds.Location())
	if err := backend.Check("dataset info", st); err != nil {
		ds.close()
		return nil, err
	}
	ds.info = info
	return ds, nil
}

// createDataset creates and indexes the dataset name in parent.
func createDataset(parent *Group, name string, info backend.DatasetInfo) (*Dataset, error) {
	ds := newDataset(parent, name)
	b := parent.file.backend
	if err := acquire(ds.guard, "create dataset", b.CreateDataset(parent.Location(), name, info)); err != nil {
		return nil, err
	}
	info.Records = 0
	ds.info = info
	parent.datasets[name] = ds
	ds.log().WithField("type", info.Type.String()).Debug("created dataset")
	return ds, nil
}

func (d *Dataset) close() error {
	return d.guard.Close()
}

// Type returns the type of one value of the dataset.
func (d *Dataset) Type() Type {
	return d.info.Type
}

// IsList returns true if values are appended rather than replaced.
func (d *Dataset) IsList() bool {
	return d.info.List
}

// Compression returns the deflate level, 0 when uncompressed.
func (d *Dataset) Compression() int {
	if level := d.info.Compression(); level > 0 {
		return level
	}
	return 0
}

// Filters returns the names of the record filters in the order they are
// applied on write.
func (d *Dataset) Filters() []string {
	names := make([]string, len(d.info.Filters))
	for i, f := range d.info.Filters {
		names[i] = f.Name()
	}
	return names
}

// Len returns the number of stored values.
func (d *Dataset) Len() (uint64, error) {
	if d.file.closed {
		return 0, ErrClosed
	}
	info, st := d.file.backend.DatasetInfo(d.Location())
	if err := backend.Check("dataset info", st); err != nil {
		return 0, err
	}
	return info.Records, nil
}

func (d *Dataset) checkSize(op string, buf []byte) error {
	if uint64(len(buf)) != d.info.Type.ByteSize() {
		return d.logicError(op, d.name, ErrBufferSize,
			fmt.Sprintf("%s needs %d bytes, buffer has %d", d.info.Type, d.info.Type.ByteSize(), len(buf)))
	}
	return nil
}

func (d *Dataset) writeRecord(index uint64, buf []byte) error {
	return backend.Check("write record", d.file.backend.WriteRecord(d.Location(), index, buf))
}

// Write stores buf, the raw little-endian bytes of one value, as the
// dataset's value (its first value for a list).
func (d *Dataset) Write(buf []byte) error {
	if err := d.file.writable(); err != nil {
		return err
	}
	if err := d.checkSize("write", buf); err != nil {
		return err
	}
	return d.writeRecord(0, buf)
}

// Append adds buf as a new value at the end of a list dataset.
func (d *Dataset) Append(buf []byte) error {
	if err := d.file.writable(); err != nil {
		return err
	}
	if !d.info.List {
		return d.logicError("append", d.name, ErrNotList, "")
	}
	if err := d.checkSize("append", buf); err != nil {
		return err
	}
	n, err := d.Len()
	if err != nil {
		return err
	}
	return d.writeRecord(n, buf)
}

// Read copies the raw bytes of value index into buf.
func (d *Dataset) Read(index uint64, buf []byte) error {
	if d.file.closed {
		return ErrClosed
	}
	if err := d.checkSize("read", buf); err != nil {
		return err
	}
	raw, st := d.file.backend.ReadRecord(d.Location(), index)
	if err := backend.Check("read record", st); err != nil {
		return err
	}
	copy(buf, raw)
	return nil
}

// WriteValue encodes v with the dataset's type and writes it.
func (d *Dataset) WriteValue(v interface{}) error {
	raw, err := dtype.Encode(d.info.Type, v)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Path(), err)
	}
	return d.Write(raw)
}

// AppendValue encodes v with the dataset's type and appends it.
func (d *Dataset) AppendValue(v interface{}) error {
	raw, err := dtype.Encode(d.info.Type, v)
	if err != nil {
		return fmt.Errorf("dataset %s: %w", d.Path(), err)
	}
	return d.Append(raw)
}

// ReadValue decodes value index into dest.
func (d *Dataset) ReadValue(index uint64, dest interface{}) error {
	buf := make([]byte, d.info.Type.ByteSize())
	if err := d.Read(index, buf); err != nil {
		return err
	}
	if err := dtype.Decode(d.info.Type, buf, dest); err != nil {
		return fmt.Errorf("dataset %s: %w", d.Path(), err)
	}
	return nil
}
