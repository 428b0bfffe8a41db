package scan

import "github.com/arloliu/go-ecat/engine"

// Sync manager numbers of the process-data directions.
const (
	SyncManagerOutputs uint8 = 2
	SyncManagerInputs  uint8 = 3
)

// Entry is one mapped object of a PDO.
type Entry struct {
	Index    uint16 `cbor:"1,keyasint"`
	SubIndex uint8  `cbor:"2,keyasint"`
	BitLen   uint8  `cbor:"3,keyasint"`
	DataType uint16 `cbor:"4,keyasint"`
	Name     string `cbor:"5,keyasint,omitempty"`
}

// PDO is a process data object assigned to a sync manager.
type PDO struct {
	Index       uint16  `cbor:"1,keyasint"`
	SyncManager uint8   `cbor:"2,keyasint"`
	Name        string  `cbor:"3,keyasint,omitempty"`
	Entries     []Entry `cbor:"4,keyasint,omitempty"`
}

// Device is a discovered device.
type Device struct {
	Ordinal           int                    `cbor:"1,keyasint"`
	Name              string                 `cbor:"2,keyasint,omitempty"`
	Identity          engine.Identity        `cbor:"3,keyasint"`
	ConfiguredAddress uint16                 `cbor:"4,keyasint"`
	AliasAddress      uint16                 `cbor:"5,keyasint"`
	PortCount         uint8                  `cbor:"6,keyasint"`
	MailboxProtocols  engine.MailboxProtocol `cbor:"7,keyasint"`
	DC                bool                   `cbor:"8,keyasint"`
	PDOs              []PDO                  `cbor:"9,keyasint,omitempty"`
}

// Snapshot is the immutable result of one discovery.
type Snapshot struct {
	id      string
	iface   string
	devices []Device
}

// ID returns the identifier of the scan that produced the snapshot.
func (s *Snapshot) ID() string { return s.id }

// Interface returns the network interface the snapshot was taken on.
func (s *Snapshot) Interface() string { return s.iface }

// Len returns the number of discovered devices.
func (s *Snapshot) Len() int { return len(s.devices) }

// Device returns the device at ordinal.
func (s *Snapshot) Device(ordinal int) (Device, bool) {
	if ordinal < 0 || ordinal >= len(s.devices) {
		return Device{}, false
	}

	return cloneDevice(s.devices[ordinal]), true
}

// PDOCount returns the number of PDOs of the device at ordinal, 0 when out of range.
func (s *Snapshot) PDOCount(ordinal int) int {
	if ordinal < 0 || ordinal >= len(s.devices) {
		return 0
	}

	return len(s.devices[ordinal].PDOs)
}

// PDO returns a PDO of the device at ordinal without its entries.
func (s *Snapshot) PDO(ordinal int, pdo int) (PDO, bool) {
	p, ok := s.pdo(ordinal, pdo)
	if !ok {
		return PDO{}, false
	}
	p.Entries = nil

	return p, true
}

// EntryCount returns the number of entries of a PDO, 0 when out of range.
func (s *Snapshot) EntryCount(ordinal int, pdo int) int {
	p, ok := s.pdo(ordinal, pdo)
	if !ok {
		return 0
	}

	return len(p.Entries)
}

// Entry returns one entry of a PDO.
func (s *Snapshot) Entry(ordinal int, pdo int, entry int) (Entry, bool) {
	p, ok := s.pdo(ordinal, pdo)
	if !ok || entry < 0 || entry >= len(p.Entries) {
		return Entry{}, false
	}

	return p.Entries[entry], true
}

// Devices returns a copy of every discovered device.
func (s *Snapshot) Devices() []Device {
	out := make([]Device, len(s.devices))
	for i, d := range s.devices {
		out[i] = cloneDevice(d)
	}

	return out
}

// Identities returns the identities of the discovered devices in enumeration order, suitable as the
// expected topology of a session.
func (s *Snapshot) Identities() []engine.Identity {
	ids := make([]engine.Identity, len(s.devices))
	for i, d := range s.devices {
		ids[i] = d.Identity
	}

	return ids
}

func (s *Snapshot) pdo(ordinal int, pdo int) (PDO, bool) {
	if ordinal < 0 || ordinal >= len(s.devices) {
		return PDO{}, false
	}
	pdos := s.devices[ordinal].PDOs
	if pdo < 0 || pdo >= len(pdos) {
		return PDO{}, false
	}

	return pdos[pdo], true
}

func cloneDevice(d Device) Device {
	if d.PDOs == nil {
		return d
	}

	pdos := make([]PDO, len(d.PDOs))
	for i, p := range d.PDOs {
		p.Entries = append([]Entry(nil), p.Entries...)
		pdos[i] = p
	}
	d.PDOs = pdos

	return d
}
