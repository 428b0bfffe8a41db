package scan

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// snapshotVersion is the version of the encoded snapshot layout.
const snapshotVersion = 1

// encMode is the CBOR encoder mode for snapshots.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for snapshots.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

type encodedSnapshot struct {
	Version   int      `cbor:"1,keyasint"`
	ID        string   `cbor:"2,keyasint"`
	Interface string   `cbor:"3,keyasint"`
	Devices   []Device `cbor:"4,keyasint"`
}

// MarshalBinary encodes the snapshot as CBOR.
func (s *Snapshot) MarshalBinary() ([]byte, error) {
	return encMode.Marshal(encodedSnapshot{
		Version:   snapshotVersion,
		ID:        s.id,
		Interface: s.iface,
		Devices:   s.devices,
	})
}

// DecodeSnapshot decodes a snapshot encoded by MarshalBinary.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var enc encodedSnapshot
	if err := decMode.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if enc.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrDecode, enc.Version)
	}

	return &Snapshot{id: enc.ID, iface: enc.Interface, devices: enc.Devices}, nil
}

// WriteTo writes the encoded snapshot to w.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	data, err := s.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)

	return int64(n), err
}
