package capi

import (
	"sync/atomic"

	"github.com/arloliu/go-ecat/scan"
	"github.com/puzpuzpuz/xsync/v3"
)

// Handle identifies a scan snapshot owned by the caller. Zero is the null handle.
type Handle uint64

var (
	snapshots  = xsync.NewMapOf[Handle, *scan.Snapshot]()
	lastHandle atomic.Uint64
)

func registerSnapshot(s *scan.Snapshot) Handle {
	h := Handle(lastHandle.Add(1))
	snapshots.Store(h, s)

	return h
}

func lookupSnapshot(h Handle) (*scan.Snapshot, bool) {
	if h == 0 {
		return nil, false
	}

	return snapshots.Load(h)
}

// ScanFree releases the snapshot behind h. Freeing the null handle or an already freed handle is a
// no-op.
func ScanFree(h Handle) {
	if h == 0 {
		return
	}
	snapshots.Delete(h)
}

// OpenSnapshots returns the number of snapshots not yet freed.
func OpenSnapshots() int {
	return snapshots.Size()
}
