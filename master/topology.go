package master

import (
	"fmt"

	"github.com/arloliu/go-ecat/engine"
)

// VerifyTopology compares the enumerated devices with expected. The device count must match and every
// device must have the expected vendor id and product code; the serial number is compared only when it
// is nonzero in the expectation.
//
// It returns an error wrapping ErrTopologyMismatch describing the first difference.
func (s *Session) VerifyTopology(expected []engine.Identity) error {
	if len(expected) == 0 {
		return s.fail(fmt.Errorf("%w: empty expected topology", ErrInvalidArgument))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil || s.state.group == nil {
		return s.fail(ErrNotInitialized)
	}

	eg := s.state.group.devices()
	if eg.Len() != len(expected) {
		return s.fail(fmt.Errorf("%w: found %d devices, expected %d", ErrTopologyMismatch, eg.Len(), len(expected)))
	}

	for i, want := range expected {
		d := eg.Device(i)
		if d == nil {
			return s.fail(fmt.Errorf("%w: device %d missing", ErrTopologyMismatch, i))
		}
		if err := matchIdentity(i, d.Identity(), want); err != nil {
			return s.fail(err)
		}
	}

	return nil
}

func matchIdentity(ordinal int, got engine.Identity, want engine.Identity) error {
	if got.VendorID != want.VendorID || got.ProductCode != want.ProductCode {
		return fmt.Errorf("%w: device %d is 0x%08X:0x%08X, expected 0x%08X:0x%08X", ErrTopologyMismatch,
			ordinal, got.VendorID, got.ProductCode, want.VendorID, want.ProductCode)
	}
	if want.SerialNumber != 0 && got.SerialNumber != want.SerialNumber {
		return fmt.Errorf("%w: device %d has serial %d, expected %d", ErrTopologyMismatch,
			ordinal, got.SerialNumber, want.SerialNumber)
	}

	return nil
}
