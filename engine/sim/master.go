package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-ecat/engine"
)

// Request states. A request runs only if the Run loop claims it before the sender abandons it.
const (
	requestPending int32 = iota
	requestClaimed
	requestAbandoned
)

type request struct {
	fn    func() error
	done  chan error
	state atomic.Int32
}

// claim reports whether the Run loop may execute the request.
func (r *request) claim() bool {
	return r.state.CompareAndSwap(requestPending, requestClaimed)
}

// abandon reports whether the sender gave up before the request was claimed. When it returns false the
// request is executing or done and its result arrives on done.
func (r *request) abandon() bool {
	return r.state.CompareAndSwap(requestPending, requestAbandoned)
}

// master is an engine.Master bound to a Segment. Every wire operation is queued to the Run loop, so
// operations time out while Run is not running or the link is down.
type master struct {
	seg     *Segment
	opts    engine.OpenOptions
	release func()

	reqs        chan *request
	closing     chan struct{}
	closed      atomic.Bool
	closeOnce   sync.Once
	emergencies chan engine.Emergency
}

var (
	_ engine.Master          = (*master)(nil)
	_ engine.EmergencySource = (*master)(nil)
)

func newMaster(seg *Segment, opts engine.OpenOptions, release func()) *master {
	return &master{
		seg:         seg,
		opts:        opts,
		release:     release,
		reqs:        make(chan *request),
		closing:     make(chan struct{}),
		emergencies: make(chan engine.Emergency, 16),
	}
}

// Run implements engine.Master.
func (m *master) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.closing:
			return nil
		case req := <-m.reqs:
			if m.seg.linkDown.Load() {
				// frame lost on the wire, the sender times out
				continue
			}
			if !req.claim() {
				continue
			}
			req.done <- req.fn()
		}
	}
}

// InitGroup implements engine.Master.
func (m *master) InitGroup(ctx context.Context) (engine.Group, error) {
	var g *group
	err := m.exec(ctx, func() error {
		if err := m.seg.takeEnumFault(); err != nil {
			return err
		}

		g = &group{m: m, devices: make([]*deviceHandle, 0, len(m.seg.devices))}
		for _, d := range m.seg.devices {
			d.mu.Lock()
			d.setState(engine.ALStatePreOp)
			d.mu.Unlock()
			g.devices = append(g.devices, &deviceHandle{m: m, d: d})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return g, nil
}

// Close implements engine.Master.
func (m *master) Close() error {
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.closing)
		m.seg.detach(m)
		m.release()
	})

	return nil
}

// Emergencies implements engine.EmergencySource.
func (m *master) Emergencies() <-chan engine.Emergency {
	return m.emergencies
}

// exec runs fn on the Run loop, re-sending up to opts.Retries times on timeout.
func (m *master) exec(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= m.opts.Retries; attempt++ {
		err := m.roundTrip(ctx, fn)
		if !errors.Is(err, engine.ErrTimeout) {
			return err
		}
	}

	return engine.ErrTimeout
}

func (m *master) roundTrip(ctx context.Context, fn func() error) error {
	if m.closed.Load() {
		return engine.ErrClosed
	}

	timer := time.NewTimer(m.opts.Timeouts.PDU)
	defer timer.Stop()

	req := &request{fn: fn, done: make(chan error, 1)}
	select {
	case m.reqs <- req:
	case <-timer.C:
		return engine.ErrTimeout
	case <-m.closing:
		return engine.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	var cause error
	select {
	case err := <-req.done:
		return err
	case <-timer.C:
		cause = engine.ErrTimeout
	case <-m.closing:
		cause = engine.ErrClosed
	case <-ctx.Done():
		cause = ctx.Err()
	}

	if req.abandon() {
		return cause
	}

	// claimed by the Run loop, the outcome is the one the segment applied
	return <-req.done
}
