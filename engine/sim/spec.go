package sim

import (
	"encoding/binary"

	"github.com/arloliu/go-ecat/engine"
)

// CANopen objects describing PDO assignment.
const (
	RxPDOAssign uint16 = 0x1C12 // SM2, outputs
	TxPDOAssign uint16 = 0x1C13 // SM3, inputs
)

// ObjectKey addresses one object dictionary entry.
type ObjectKey struct {
	Index    uint16
	SubIndex uint8
}

// EntryMapping is one mapped object of a PDO.
type EntryMapping struct {
	Index    uint16
	SubIndex uint8
	BitLen   uint8
}

// PDOMapping is a PDO and its mapped entries.
type PDOMapping struct {
	Index   uint16
	Entries []EntryMapping
}

// DeviceSpec describes a simulated device.
type DeviceSpec struct {
	Name     string
	Identity engine.Identity
	// ConfiguredAddress defaults to 0x1000 + ordinal when zero.
	ConfiguredAddress uint16
	Alias             uint16
	PortCount         uint8
	Mailbox           engine.MailboxProtocol

	InputSize  int
	OutputSize int

	// Objects is the CoE object dictionary. It is only reachable when Mailbox includes CoE.
	Objects map[ObjectKey][]byte
	// Registers holds initial ESC register content keyed by start address.
	Registers map[uint16][]byte
	EEPROM    []byte

	EEPROMInputs  []engine.PDODescriptor
	EEPROMOutputs []engine.PDODescriptor

	// DC reports distributed clock support; the system time register is unreadable otherwise.
	DC bool
	// Silent devices do not increment the working counter of the bulk exchange.
	Silent bool
	// Loopback devices echo their outputs into their inputs on every exchange in OP.
	Loopback bool
}

// SetObject stores a value in the object dictionary.
func (s *DeviceSpec) SetObject(index uint16, subIndex uint8, value []byte) {
	if s.Objects == nil {
		s.Objects = make(map[ObjectKey][]byte)
	}
	s.Objects[ObjectKey{Index: index, SubIndex: subIndex}] = append([]byte(nil), value...)
}

// AssignPDOs writes the assignment object of dir and the mapping objects of every PDO, and marks the
// device as CoE capable.
func (s *DeviceSpec) AssignPDOs(dir engine.Direction, pdos ...PDOMapping) {
	assign := TxPDOAssign
	if dir == engine.Outputs {
		assign = RxPDOAssign
	}

	s.Mailbox |= engine.MailboxCoE
	s.SetObject(assign, 0, []byte{uint8(len(pdos))})

	for i, pdo := range pdos {
		var idx [2]byte
		binary.LittleEndian.PutUint16(idx[:], pdo.Index)
		s.SetObject(assign, uint8(i+1), idx[:])

		s.SetObject(pdo.Index, 0, []byte{uint8(len(pdo.Entries))})
		for j, e := range pdo.Entries {
			var mapping [4]byte
			binary.LittleEndian.PutUint32(mapping[:], uint32(e.Index)<<16|uint32(e.SubIndex)<<8|uint32(e.BitLen))
			s.SetObject(pdo.Index, uint8(j+1), mapping[:])
		}
	}
}
