package master

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-ecat/engine"
)

// withDevice runs fn with the device at ordinal under the session read lock. The context passed to fn is
// cancelled by Shutdown and, when timeout is positive, bounded by timeout.
func (s *Session) withDevice(ordinal int, timeout time.Duration, fn func(ctx context.Context, d engine.Device) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.state
	if st == nil || st.group == nil {
		return ErrNotInitialized
	}

	d := st.group.devices().Device(ordinal)
	if d == nil {
		return fmt.Errorf("%w: ordinal %d of %d", ErrDeviceNotFound, ordinal, st.group.devices().Len())
	}

	ctx := st.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return fn(ctx, d)
}

func (s *Session) timeouts() engine.Timeouts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return engine.Timeouts{
			PDU:             DefaultPDUTimeout,
			StateTransition: DefaultStateTransitionTimeout,
			MailboxResponse: DefaultMailboxResponseTimeout,
			EEPROM:          DefaultEEPROMTimeout,
		}
	}

	return s.state.cfg.Timeouts()
}

// DeviceCount returns the number of enumerated devices.
func (s *Session) DeviceCount() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil || s.state.group == nil {
		return 0, s.fail(ErrNotInitialized)
	}

	return s.state.group.devices().Len(), nil
}

// DeviceIdentity returns the identity of the device at ordinal.
func (s *Session) DeviceIdentity(device int) (engine.Identity, error) {
	var id engine.Identity
	err := s.withDevice(device, 0, func(_ context.Context, d engine.Device) error {
		id = d.Identity()
		return nil
	})
	if err != nil {
		return engine.Identity{}, s.fail(err)
	}

	return id, nil
}

// SDORead reads an expedited SDO of 1 to 4 bytes into buf and returns the number of bytes read.
func (s *Session) SDORead(device int, index uint16, subIndex uint8, buf []byte) (int, error) {
	if len(buf) == 0 || len(buf) > 4 {
		return 0, s.fail(fmt.Errorf("%w: sdo read length %d not in [1, 4]", ErrInvalidArgument, len(buf)))
	}

	var n int
	err := s.withDevice(device, s.timeouts().MailboxResponse, func(ctx context.Context, d engine.Device) error {
		var tmp [4]byte
		if _, err := d.SDORead(ctx, index, subIndex, tmp[:]); err != nil {
			return fmt.Errorf("%w: sdo read 0x%04X:%02X on device %d: %w", ErrProtocol, index, subIndex, device, err)
		}
		n = copy(buf, tmp[:])

		return nil
	})
	if err != nil {
		return 0, s.fail(err)
	}

	return n, nil
}

// SDOWrite writes an expedited SDO of 1, 2 or 4 bytes.
func (s *Session) SDOWrite(device int, index uint16, subIndex uint8, data []byte) error {
	switch len(data) {
	case 1, 2, 4:
	default:
		return s.fail(fmt.Errorf("%w: sdo write length %d not 1, 2 or 4", ErrInvalidArgument, len(data)))
	}

	err := s.withDevice(device, s.timeouts().MailboxResponse, func(ctx context.Context, d engine.Device) error {
		if err := d.SDOWrite(ctx, index, subIndex, data); err != nil {
			return fmt.Errorf("%w: sdo write 0x%04X:%02X on device %d: %w", ErrProtocol, index, subIndex, device, err)
		}

		return nil
	})
	if err != nil {
		return s.fail(err)
	}

	return nil
}

// ReadRegisterU16 reads a 16-bit ESC register.
func (s *Session) ReadRegisterU16(device int, address uint16) (uint16, error) {
	var v uint16
	err := s.withDevice(device, 0, func(ctx context.Context, d engine.Device) error {
		var err error
		v, err = engine.ReadRegisterU16(ctx, d, address)
		if err != nil {
			return fmt.Errorf("%w: register read 0x%04X on device %d: %w", ErrProtocol, address, device, err)
		}

		return nil
	})
	if err != nil {
		return 0, s.fail(err)
	}

	return v, nil
}

// WriteRegisterU16 writes a 16-bit ESC register.
func (s *Session) WriteRegisterU16(device int, address uint16, value uint16) error {
	err := s.withDevice(device, 0, func(ctx context.Context, d engine.Device) error {
		if err := engine.WriteRegisterU16(ctx, d, address, value); err != nil {
			return fmt.Errorf("%w: register write 0x%04X on device %d: %w", ErrProtocol, address, device, err)
		}

		return nil
	})
	if err != nil {
		return s.fail(err)
	}

	return nil
}

// EEPROMRead reads raw EEPROM content starting at the word address into buf and returns the number of
// bytes read.
func (s *Session) EEPROMRead(device int, wordAddress uint16, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, s.fail(fmt.Errorf("%w: empty eeprom buffer", ErrInvalidArgument))
	}

	var n int
	err := s.withDevice(device, s.timeouts().EEPROM*time.Duration(len(buf)/2+1), func(ctx context.Context, d engine.Device) error {
		var err error
		n, err = d.EEPROMRead(ctx, wordAddress, buf)
		if err != nil {
			return fmt.Errorf("%w: eeprom read 0x%04X on device %d: %w", ErrProtocol, wordAddress, device, err)
		}

		return nil
	})
	if err != nil {
		return 0, s.fail(err)
	}

	return n, nil
}

// ALStatus reads the AL state and AL status code of a device.
func (s *Session) ALStatus(device int) (engine.ALState, uint16, error) {
	var (
		state engine.ALState
		code  uint16
	)
	err := s.withDevice(device, 0, func(ctx context.Context, d engine.Device) error {
		var err error
		state, code, err = d.ALStatus(ctx)
		if err != nil {
			return fmt.Errorf("%w: al status of device %d: %w", ErrProtocol, device, err)
		}

		return nil
	})
	if err != nil {
		return engine.ALStateNone, 0, s.fail(err)
	}

	return state, code, nil
}

// ALStatusCode returns the AL status code of a device, 0 when it cannot be read.
func (s *Session) ALStatusCode(device int) uint16 {
	_, code, err := s.ALStatus(device)
	if err != nil {
		return 0
	}

	return code
}
