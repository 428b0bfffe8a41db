package sim

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-ecat/engine"
)

// Segment is the runtime state of a simulated chain of devices.
type Segment struct {
	devices []*device

	linkDown atomic.Bool
	exchange atomic.Uint64

	mu              sync.Mutex
	enumFault       error
	transitionFault map[engine.ALState]error
	masters         map[*master]struct{}
}

func newSegment(specs []DeviceSpec) *Segment {
	seg := &Segment{
		transitionFault: make(map[engine.ALState]error),
		masters:         make(map[*master]struct{}),
	}
	for i, spec := range specs {
		seg.devices = append(seg.devices, newDevice(i, spec))
	}

	return seg
}

// SetLinkDown drops every frame while down is true.
func (s *Segment) SetLinkDown(down bool) {
	s.linkDown.Store(down)
}

// FailEnumeration makes the next enumeration fail with err.
func (s *Segment) FailEnumeration(err error) {
	s.mu.Lock()
	s.enumFault = err
	s.mu.Unlock()
}

// FailTransition makes the next transition into state fail with err.
func (s *Segment) FailTransition(state engine.ALState, err error) {
	s.mu.Lock()
	s.transitionFault[state] = err
	s.mu.Unlock()
}

// ScriptRegister queues values returned by successive reads of address on the device at ordinal.
// A nil value makes that read fail with engine.ErrWorkingCounter. Once the script is consumed, reads fall back
// to the register file.
func (s *Segment) ScriptRegister(ordinal int, address uint16, values ...[]byte) {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	d.scripts[address] = append(d.scripts[address], values...)
}

// SetRegister sets the content of a register on the device at ordinal.
func (s *Segment) SetRegister(ordinal int, address uint16, value []byte) {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	d.registers[address] = append([]byte(nil), value...)
}

// Register returns the content of a register on the device at ordinal.
func (s *Segment) Register(ordinal int, address uint16) []byte {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.registers[address]...)
}

// Object returns an object dictionary value of the device at ordinal.
func (s *Segment) Object(ordinal int, index uint16, subIndex uint8) ([]byte, bool) {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.objects[ObjectKey{Index: index, SubIndex: subIndex}]

	return append([]byte(nil), v...), ok
}

// SetPhysicalInputs sets the values the device at ordinal reports on the next exchange.
func (s *Segment) SetPhysicalInputs(ordinal int, data []byte) {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.physIn, data)
}

// AppliedOutputs returns the outputs the device at ordinal received on the last exchange in OP.
func (s *Segment) AppliedOutputs(ordinal int) []byte {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]byte(nil), d.applied...)
}

// SetALStatusCode sets the AL status code reported by the device at ordinal.
func (s *Segment) SetALStatusCode(ordinal int, code uint16) {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	d.statusCode = code
}

// DeviceState returns the AL state of the device at ordinal.
func (s *Segment) DeviceState(ordinal int) engine.ALState {
	d := s.devices[ordinal]
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// ExchangeCount returns the number of bulk exchanges processed on this segment.
func (s *Segment) ExchangeCount() uint64 {
	return s.exchange.Load()
}

// InjectEmergency delivers a CoE emergency to every open master of the segment.
func (s *Segment) InjectEmergency(e engine.Emergency) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for m := range s.masters {
		select {
		case m.emergencies <- e:
		default:
		}
	}
}

// OpenMasters returns the number of masters attached to the segment.
func (s *Segment) OpenMasters() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.masters)
}

func (s *Segment) attach(m *master) {
	s.mu.Lock()
	s.masters[m] = struct{}{}
	s.mu.Unlock()
}

func (s *Segment) detach(m *master) {
	s.mu.Lock()
	delete(s.masters, m)
	s.mu.Unlock()
}

func (s *Segment) takeEnumFault() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.enumFault
	s.enumFault = nil

	return err
}

func (s *Segment) takeTransitionFault(state engine.ALState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.transitionFault[state]
	delete(s.transitionFault, state)

	return err
}

// device is the runtime state of one simulated device.
type device struct {
	ordinal int
	spec    DeviceSpec
	epoch   time.Time

	mu         sync.Mutex
	state      engine.ALState
	statusCode uint16
	inputs     []byte // master's image of the device inputs
	outputs    []byte // master's image of the device outputs
	physIn     []byte
	applied    []byte
	objects    map[ObjectKey][]byte
	registers  map[uint16][]byte
	scripts    map[uint16][][]byte
}

func newDevice(ordinal int, spec DeviceSpec) *device {
	if spec.ConfiguredAddress == 0 {
		spec.ConfiguredAddress = 0x1000 + uint16(ordinal)
	}

	d := &device{
		ordinal:   ordinal,
		spec:      spec,
		epoch:     time.Now(),
		state:     engine.ALStateInit,
		inputs:    make([]byte, spec.InputSize),
		outputs:   make([]byte, spec.OutputSize),
		physIn:    make([]byte, spec.InputSize),
		applied:   make([]byte, spec.OutputSize),
		objects:   make(map[ObjectKey][]byte, len(spec.Objects)),
		registers: make(map[uint16][]byte, len(spec.Registers)),
		scripts:   make(map[uint16][][]byte),
	}
	for k, v := range spec.Objects {
		d.objects[k] = append([]byte(nil), v...)
	}
	for k, v := range spec.Registers {
		d.registers[k] = append([]byte(nil), v...)
	}

	return d
}

// setState must be called with d.mu held.
func (d *device) setState(state engine.ALState) {
	if state <= engine.ALStatePreOp {
		clear(d.inputs)
		clear(d.outputs)
	}
	d.state = state
}

// exchange processes the device's part of the bulk exchange and reports whether it counts towards
// the working counter. It must be called with d.mu held.
func (d *device) exchange() bool {
	switch d.state {
	case engine.ALStateOp:
		copy(d.applied, d.outputs)
		if d.spec.Loopback {
			copy(d.physIn, d.outputs)
		}
		copy(d.inputs, d.physIn)
	case engine.ALStateSafeOp:
		copy(d.inputs, d.physIn)
	default:
		return false
	}

	return !d.spec.Silent
}

// readRegister must be called with d.mu held.
func (d *device) readRegister(address uint16, buf []byte) error {
	if script := d.scripts[address]; len(script) > 0 {
		v := script[0]
		d.scripts[address] = script[1:]
		if v == nil {
			return engine.ErrWorkingCounter
		}
		copy(buf, v)

		return nil
	}

	switch address {
	case engine.RegALStatus:
		clear(buf)
		if len(buf) > 0 {
			buf[0] = uint8(d.state)
		}
		return nil
	case engine.RegALStatusCode:
		putUint(buf, uint64(d.statusCode))
		return nil
	case engine.RegDCSystemTime:
		if !d.spec.DC {
			return engine.ErrWorkingCounter
		}
		putUint(buf, uint64(time.Since(d.epoch).Nanoseconds()))
		return nil
	}

	clear(buf)
	copy(buf, d.registers[address])

	return nil
}

func putUint(buf []byte, v uint64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	clear(buf)
	copy(buf, tmp[:])
}
