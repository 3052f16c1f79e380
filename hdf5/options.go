package hdf5

import (
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/h5tree/internal/filter"
)

// FileOption configures how a file is created or opened.
type FileOption func(*fileOptions)

type fileOptions struct {
	logger      logrus.FieldLogger
	readOnly    bool
	compression int
	shuffle     bool
}

func defaultFileOptions() *fileOptions {
	return &fileOptions{
		logger: logrus.StandardLogger(),
	}
}

// WithLogger routes file and backend diagnostics to log.
func WithLogger(log logrus.FieldLogger) FileOption {
	return func(o *fileOptions) {
		if log != nil {
			o.logger = log
		}
	}
}

// WithReadOnly opens the file without write access.
func WithReadOnly() FileOption {
	return func(o *fileOptions) {
		o.readOnly = true
	}
}

// WithDefaultCompression sets the deflate level (1-9, 0 = none) used by
// datasets created without WithCompression.
func WithDefaultCompression(level int) FileOption {
	return func(o *fileOptions) {
		if level >= 0 && level <= 9 {
			o.compression = level
		}
	}
}

// WithDefaultShuffle enables the shuffle filter on every new compressed
// dataset.
func WithDefaultShuffle() FileOption {
	return func(o *fileOptions) {
		o.shuffle = true
	}
}

// DatasetOption configures dataset creation options.
type DatasetOption func(*datasetOptions)

// attrDef holds an attribute definition for creation.
type attrDef struct {
	name  string
	value interface{}
}

type datasetOptions struct {
	list           bool
	compressionLvl int
	shuffle        bool
	fletcher32     bool
	attributes     []attrDef
}

func (f *File) defaultDatasetOptions() *datasetOptions {
	return &datasetOptions{
		compressionLvl: f.opts.compression,
		shuffle:        f.opts.shuffle && f.opts.compression > 0,
	}
}

// AsList makes the dataset a list: records are appended one value at a
// time instead of holding a single value.
func AsList() DatasetOption {
	return func(o *datasetOptions) {
		o.list = true
	}
}

// WithCompression sets the compression level (1-9, 0 = none).
func WithCompression(level int) DatasetOption {
	return func(o *datasetOptions) {
		if level >= 0 && level <= 9 {
			o.compressionLvl = level
		}
	}
}

// WithShuffle enables the shuffle filter (improves compression).
func WithShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = true
	}
}

// WithFletcher32 enables Fletcher32 checksum validation.
func WithFletcher32() DatasetOption {
	return func(o *datasetOptions) {
		o.fletcher32 = true
	}
}

// WithAttribute adds an attribute to the dataset.
// The value can be a scalar or slice of any type TypeOf accepts.
// Multiple WithAttribute options can be used to add multiple attributes.
func WithAttribute(name string, value interface{}) DatasetOption {
	return func(o *datasetOptions) {
		o.attributes = append(o.attributes, attrDef{name: name, value: value})
	}
}

// filters builds the record pipeline for elements of t: shuffle, then
// deflate, then the checksum.
func (o *datasetOptions) filters(t Type) []filter.Info {
	var infos []filter.Info
	if o.shuffle {
		infos = append(infos, filter.Info{ID: filter.FilterShuffle, ClientData: []uint32{t.Size}})
	}
	if o.compressionLvl > 0 {
		infos = append(infos, filter.Info{ID: filter.FilterDeflate, ClientData: []uint32{uint32(o.compressionLvl)}})
	}
	if o.fletcher32 {
		infos = append(infos, filter.Info{ID: filter.FilterFletcher32})
	}
	return infos
}
