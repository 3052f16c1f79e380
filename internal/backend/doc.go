// Package backend is the storage layer under the hdf5 package.
//
// The [Backend] interface is a status-code API: every call returns a
// [Status] (negative on failure) or a handle whose negative value is the
// failure status. Callers turn failures into errors with [Check] and
// [CheckID], which produce a [*StatusError] carrying the op name and code.
//
// [Engine] implements Backend over a [Store], which persists four kinds of
// record:
//
//   - objects: groups and datasets, with a reference count
//   - links: named hard or soft entries inside a group
//   - attributes: named typed values attached to an object
//   - records: the filtered bytes of a dataset, indexed from zero
//
// Two stores exist: memstore keeps everything in maps and persists to a
// single snapshot file, badgerstore keeps everything in a Badger database.
//
// A mutation that writes more than one record runs inside [Store.Update],
// so a failure part way through leaves the store as it was.
package backend
