package sim

import (
	"context"
	"fmt"

	"github.com/arloliu/go-ecat/engine"
)

// deviceHandle is the engine.Device view of a simulated device through one master.
type deviceHandle struct {
	m *master
	d *device
}

var _ engine.Device = (*deviceHandle)(nil)

func (h *deviceHandle) Identity() engine.Identity { return h.d.spec.Identity }

func (h *deviceHandle) Name() string { return h.d.spec.Name }

func (h *deviceHandle) ConfiguredAddress() uint16 { return h.d.spec.ConfiguredAddress }

func (h *deviceHandle) AliasAddress() uint16 { return h.d.spec.Alias }

func (h *deviceHandle) PortCount() uint8 { return h.d.spec.PortCount }

func (h *deviceHandle) MailboxProtocols() engine.MailboxProtocol { return h.d.spec.Mailbox }

func (h *deviceHandle) InputSize() int { return h.d.spec.InputSize }

func (h *deviceHandle) OutputSize() int { return h.d.spec.OutputSize }

func (h *deviceHandle) ReadInputs(dst []byte) int {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()

	return copy(dst, h.d.inputs)
}

func (h *deviceHandle) WriteOutputs(src []byte) int {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()

	return copy(h.d.outputs, src)
}

func (h *deviceHandle) InputByte(offset int) (byte, bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()

	if offset < 0 || offset >= len(h.d.inputs) {
		return 0, false
	}

	return h.d.inputs[offset], true
}

func (h *deviceHandle) OutputByte(offset int) (byte, bool) {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()

	if offset < 0 || offset >= len(h.d.outputs) {
		return 0, false
	}

	return h.d.outputs[offset], true
}

func (h *deviceHandle) SetOutputByte(offset int, value byte) bool {
	h.d.mu.Lock()
	defer h.d.mu.Unlock()

	if offset < 0 || offset >= len(h.d.outputs) {
		return false
	}
	h.d.outputs[offset] = value

	return true
}

func (h *deviceHandle) SDORead(ctx context.Context, index uint16, subIndex uint8, buf []byte) (int, error) {
	var n int
	err := h.m.exec(ctx, func() error {
		h.d.mu.Lock()
		defer h.d.mu.Unlock()

		if h.d.spec.Mailbox&engine.MailboxCoE == 0 {
			return engine.ErrMailboxUnsupported
		}
		v, ok := h.d.objects[ObjectKey{Index: index, SubIndex: subIndex}]
		if !ok {
			return fmt.Errorf("%w: 0x%04X:%02X", engine.ErrNoSuchObject, index, subIndex)
		}
		n = copy(buf, v)

		return nil
	})

	return n, err
}

func (h *deviceHandle) SDOWrite(ctx context.Context, index uint16, subIndex uint8, data []byte) error {
	return h.m.exec(ctx, func() error {
		h.d.mu.Lock()
		defer h.d.mu.Unlock()

		if h.d.spec.Mailbox&engine.MailboxCoE == 0 {
			return engine.ErrMailboxUnsupported
		}
		h.d.objects[ObjectKey{Index: index, SubIndex: subIndex}] = append([]byte(nil), data...)

		return nil
	})
}

func (h *deviceHandle) RegisterRead(ctx context.Context, address uint16, buf []byte) error {
	return h.m.exec(ctx, func() error {
		h.d.mu.Lock()
		defer h.d.mu.Unlock()

		return h.d.readRegister(address, buf)
	})
}

func (h *deviceHandle) RegisterWrite(ctx context.Context, address uint16, data []byte) error {
	return h.m.exec(ctx, func() error {
		h.d.mu.Lock()
		defer h.d.mu.Unlock()

		h.d.registers[address] = append([]byte(nil), data...)

		return nil
	})
}

func (h *deviceHandle) EEPROMRead(ctx context.Context, wordAddress uint16, buf []byte) (int, error) {
	var n int
	err := h.m.exec(ctx, func() error {
		offset := int(wordAddress) * 2
		if offset >= len(h.d.spec.EEPROM) {
			return fmt.Errorf("%w: word address 0x%04X out of range", engine.ErrEEPROM, wordAddress)
		}
		n = copy(buf, h.d.spec.EEPROM[offset:])

		return nil
	})

	return n, err
}

func (h *deviceHandle) EEPROMPDOs(ctx context.Context, dir engine.Direction) ([]engine.PDODescriptor, error) {
	var pdos []engine.PDODescriptor
	err := h.m.exec(ctx, func() error {
		src := h.d.spec.EEPROMInputs
		if dir == engine.Outputs {
			src = h.d.spec.EEPROMOutputs
		}
		pdos = append([]engine.PDODescriptor(nil), src...)

		return nil
	})

	return pdos, err
}

func (h *deviceHandle) ALStatus(ctx context.Context) (engine.ALState, uint16, error) {
	var (
		state engine.ALState
		code  uint16
	)
	err := h.m.exec(ctx, func() error {
		h.d.mu.Lock()
		defer h.d.mu.Unlock()

		state, code = h.d.state, h.d.statusCode

		return nil
	})

	return state, code, err
}
