package backend

import (
	"errors"

	"github.com/robert-malhotra/h5tree/internal/filter"
	"github.com/robert-malhotra/h5tree/internal/handle"
)

// CreateDataset creates the dataset name relative to loc. The containing
// group must exist. info.Records is ignored.
func (e *Engine) CreateDataset(loc handle.ID, name string, info DatasetInfo) handle.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "create dataset"
	if st := e.mutable(); !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	if err := info.Type.Validate(); err != nil {
		e.log.WithError(err).WithField("name", name).Debug("invalid dataset type")
		return handle.ID(e.fail(op, name, StatusBadArgument))
	}
	pipeline, err := filter.NewPipeline(info.Filters)
	if err != nil {
		e.log.WithError(err).WithField("name", name).Debug("invalid dataset filters")
		return handle.ID(e.fail(op, name, StatusBadArgument))
	}

	base, st := e.location(loc)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	parent, leaf, st := e.resolveParent(base, name)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	if st := e.linkFree(parent, leaf); !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}

	info.Records = 0
	info.Filters = append([]filter.Info(nil), info.Filters...)
	var addr uint64
	st = e.update(op, name, func() Status {
		var err error
		if addr, err = e.tx.Alloc(); err != nil {
			return e.storeFail(op, name, err)
		}
		if err := e.tx.PutObject(Object{Addr: addr, Type: ObjectDataset, RefCount: 1, Dataset: &info}); err != nil {
			return e.storeFail(op, name, err)
		}
		if err := e.tx.PutLink(parent, Link{Name: leaf, Type: LinkHard, Addr: addr}); err != nil {
			return e.storeFail(op, name, err)
		}
		return StatusOK
	})
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}

	id := e.register(handle.KindDataset, addr)
	e.handles[id].pipeline = pipeline
	e.log.WithField("name", name).Debug("created dataset")
	return id
}

// OpenDataset opens the dataset name relative to loc.
func (e *Engine) OpenDataset(loc handle.ID, name string) handle.ID {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "open dataset"
	base, st := e.location(loc)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	addr, st := e.resolveFrom(base, name, 0)
	if !st.OK() {
		return handle.ID(e.fail(op, name, st))
	}
	obj, err := e.tx.Object(addr)
	if err != nil {
		return handle.ID(e.storeFail(op, name, err))
	}
	if obj.Type != ObjectDataset || obj.Dataset == nil {
		return handle.ID(e.fail(op, name, StatusWrongKind))
	}
	pipeline, err := filter.NewPipeline(obj.Dataset.Filters)
	if err != nil {
		return handle.ID(e.storeFail(op, name, err))
	}

	id := e.register(handle.KindDataset, addr)
	e.handles[id].pipeline = pipeline
	return id
}

// CloseDataset releases a dataset handle.
func (e *Engine) CloseDataset(id handle.ID) Status {
	return e.closeHandle("close dataset", id, handle.KindDataset)
}

func (e *Engine) dataset(id handle.ID) (*openObject, Object, Status) {
	h, st := e.lookupHandle(id, handle.KindDataset)
	if !st.OK() {
		return nil, Object{}, st
	}
	obj, err := e.tx.Object(h.addr)
	if errors.Is(err, ErrNotFound) {
		return nil, Object{}, StatusNotFound
	}
	if err != nil {
		return nil, Object{}, e.storeFail("object", "", err)
	}
	if obj.Dataset == nil {
		return nil, Object{}, StatusWrongKind
	}
	return h, obj, StatusOK
}

// DatasetInfo returns the current description of a dataset.
func (e *Engine) DatasetInfo(id handle.ID) (DatasetInfo, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, obj, st := e.dataset(id)
	if !st.OK() {
		return DatasetInfo{}, e.fail("dataset info", "", st)
	}
	info := *obj.Dataset
	info.Filters = append([]filter.Info(nil), obj.Dataset.Filters...)
	return info, StatusOK
}

// WriteRecord stores raw as record index. raw must hold exactly one value
// of the dataset's type. Writing at index == Records appends to a list
// dataset; a plain dataset only has record 0.
func (e *Engine) WriteRecord(id handle.ID, index uint64, raw []byte) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "write record"
	if st := e.mutable(); !st.OK() {
		return e.fail(op, "", st)
	}
	h, obj, st := e.dataset(id)
	if !st.OK() {
		return e.fail(op, "", st)
	}
	info := obj.Dataset
	if uint64(len(raw)) != info.Type.ByteSize() {
		return e.fail(op, "", StatusBadArgument)
	}
	if index > info.Records || (!info.List && index > 0) {
		return e.fail(op, "", StatusBadArgument)
	}

	stored, err := h.pipeline.Encode(raw)
	if err != nil {
		e.log.WithError(err).Debug("record filter failed")
		return e.fail(op, "", StatusFail)
	}
	return e.update(op, "", func() Status {
		if err := e.tx.PutRecord(obj.Addr, index, stored); err != nil {
			return e.storeFail(op, "", err)
		}
		if index == info.Records {
			info.Records++
			if err := e.tx.PutObject(obj); err != nil {
				return e.storeFail(op, "", err)
			}
		}
		return StatusOK
	})
}

// ReadRecord returns the raw bytes of record index.
func (e *Engine) ReadRecord(id handle.ID, index uint64) ([]byte, Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	const op = "read record"
	h, obj, st := e.dataset(id)
	if !st.OK() {
		return nil, e.fail(op, "", st)
	}
	if index >= obj.Dataset.Records {
		return nil, e.fail(op, "", StatusNotFound)
	}
	stored, err := e.tx.Record(obj.Addr, index)
	if err != nil {
		return nil, e.storeFail(op, "", err)
	}
	raw, err := h.pipeline.Decode(stored)
	if err != nil {
		return nil, e.storeFail(op, "", err)
	}
	if uint64(len(raw)) != obj.Dataset.Type.ByteSize() {
		return nil, e.fail(op, "", StatusStore)
	}
	return raw, StatusOK
}
