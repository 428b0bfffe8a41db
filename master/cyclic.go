package master

import (
	"fmt"

	"github.com/arloliu/go-ecat/engine"
)

// CyclicExchange performs one control-loop cycle: it copies the output region of the process-data image
// into the devices' output areas, runs one bulk exchange and copies the devices' input areas back into
// the input region. It returns the working counter verbatim; comparing it with ExpectedWorkingCounter is
// left to the caller.
//
// It returns ErrNotOperational without touching the network unless the group is in OP. When the
// exchange fails the network health flag is cleared, the input region keeps its previous content and
// the returned error wraps ErrExchangeFailed.
func (s *Session) CyclicExchange() (uint16, error) {
	s.mu.RLock()
	st := s.state
	if st == nil {
		s.mu.RUnlock()
		return 0, s.fail(ErrNotInitialized)
	}
	op, ok := st.group.(opGroup)
	if !ok {
		state := st.group.State()
		s.mu.RUnlock()
		return 0, s.fail(fmt.Errorf("%w: group is %s", ErrNotOperational, state))
	}
	outputSize, expected := st.outputSize, st.expectedWKC
	st.image.fanOut(op.eg, outputSize)
	ctx := st.ctx
	s.mu.RUnlock()

	wkc, err := op.txRx(ctx)
	if err != nil {
		s.healthy.Store(false)
		s.metrics.incCycleErrCount()
		return 0, s.fail(fmt.Errorf("%w: %w", ErrExchangeFailed, err))
	}
	s.healthy.Store(true)

	s.mu.RLock()
	// skip the fan-in when the session or group changed during the exchange
	if s.state == st && st.group.State() == OpState {
		st.image.fanIn(op.eg, outputSize)
	}
	s.mu.RUnlock()

	s.metrics.incCycleCount(wkc, expected)

	return wkc, nil
}

// fanOut copies the output region into the devices' output areas in enumeration order. It stops at the
// first device whose area would extend past the region or the image.
func (img *processImage) fanOut(eg engine.Group, outputSize int) {
	img.mu.RLock()
	defer img.mu.RUnlock()

	bound := min(outputSize, len(img.buf))
	offset := 0
	for i := 0; i < eg.Len(); i++ {
		d := eg.Device(i)
		n := d.OutputSize()
		if n == 0 {
			continue
		}
		if offset+n > bound {
			return
		}
		d.WriteOutputs(img.buf[offset : offset+n])
		offset += n
	}
}

// fanIn copies the devices' input areas into the image starting at outputSize in enumeration order. It
// stops at the first device whose area would extend past the image.
func (img *processImage) fanIn(eg engine.Group, outputSize int) {
	img.mu.Lock()
	defer img.mu.Unlock()

	offset := outputSize
	for i := 0; i < eg.Len(); i++ {
		d := eg.Device(i)
		n := d.InputSize()
		if n == 0 {
			continue
		}
		if offset+n > len(img.buf) {
			return
		}
		d.ReadInputs(img.buf[offset : offset+n])
		offset += n
	}
}

// ReadProcessDataByte returns one byte of a device's live output area (output true) or input area. It
// returns 0 when the group is not in OP or the device or offset is out of range.
func (s *Session) ReadProcessDataByte(device int, offset int, output bool) byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.opDevice(device)
	if d == nil {
		return 0
	}

	var (
		b  byte
		ok bool
	)
	if output {
		b, ok = d.OutputByte(offset)
	} else {
		b, ok = d.InputByte(offset)
	}
	if !ok {
		return 0
	}

	return b
}

// WriteProcessDataByte sets one byte of a device's live output area. It returns false when the group is
// not in OP or the device or offset is out of range.
func (s *Session) WriteProcessDataByte(device int, offset int, value byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.opDevice(device)
	if d == nil {
		return false
	}

	return d.SetOutputByte(offset, value)
}

// opDevice returns the device at ordinal when the group is in OP. It must be called with s.mu held.
func (s *Session) opDevice(ordinal int) engine.Device {
	if s.state == nil {
		return nil
	}
	op, ok := s.state.group.(opGroup)
	if !ok {
		return nil
	}

	return op.eg.Device(ordinal)
}
