package sim

import (
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/go-ecat/engine"
)

// DefaultPDUTimeout is used when a master is opened with a zero PDU timeout.
const DefaultPDUTimeout = 50 * time.Millisecond

// Driver is an engine.Driver over named simulated segments.
type Driver struct {
	mu       sync.Mutex
	segments map[string]*Segment
	split    bool // shared frame storage has been handed out
}

var _ engine.Driver = (*Driver)(nil)

// NewDriver creates a driver without segments.
func NewDriver() *Driver {
	return &Driver{segments: make(map[string]*Segment)}
}

// AddSegment attaches a chain of devices to the interface iface, replacing any previous segment.
func (d *Driver) AddSegment(iface string, devices ...DeviceSpec) *Segment {
	seg := newSegment(devices)

	d.mu.Lock()
	d.segments[iface] = seg
	d.mu.Unlock()

	return seg
}

// Segment returns the segment attached to iface, or nil.
func (d *Driver) Segment(iface string) *Segment {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.segments[iface]
}

// StorageSplit reports whether the shared frame storage is currently owned by a master.
func (d *Driver) StorageSplit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.split
}

// Open implements engine.Driver.
func (d *Driver) Open(iface string, opts engine.OpenOptions) (engine.Master, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	seg, ok := d.segments[iface]
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrInterfaceNotFound, iface)
	}

	if !opts.Isolated {
		if d.split {
			return nil, engine.ErrStorageBusy
		}
		d.split = true
	}

	if opts.Timeouts.PDU <= 0 {
		opts.Timeouts.PDU = DefaultPDUTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	m := newMaster(seg, opts, func() {
		if opts.Isolated {
			return
		}
		d.mu.Lock()
		d.split = false
		d.mu.Unlock()
	})
	seg.attach(m)

	return m, nil
}
