package engine

import (
	"context"
	"encoding/binary"
	"time"
)

// ESC register addresses used by the orchestration layer.
const (
	RegALStatus     uint16 = 0x0130
	RegALStatusCode uint16 = 0x0134
	RegSM1Status    uint16 = 0x080D // mailbox in (device to master) status
	RegDCSystemTime uint16 = 0x0910
)

// Sync manager status register bits.
const (
	MailboxFullMask   uint8 = 0x08
	MailboxToggleMask uint8 = 0x02
)

// ALState is an EtherCAT application layer state as encoded in the AL status register.
type ALState uint8

const (
	ALStateNone      ALState = 0x00
	ALStateInit      ALState = 0x01
	ALStatePreOp     ALState = 0x02
	ALStateBootstrap ALState = 0x03
	ALStateSafeOp    ALState = 0x04
	ALStateOp        ALState = 0x08
)

// String returns the conventional state name.
func (s ALState) String() string {
	switch s {
	case ALStateInit:
		return "INIT"
	case ALStatePreOp:
		return "PRE-OP"
	case ALStateBootstrap:
		return "BOOT"
	case ALStateSafeOp:
		return "SAFE-OP"
	case ALStateOp:
		return "OP"
	default:
		return "NONE"
	}
}

// MailboxProtocol is a bit mask of the mailbox protocols a device supports.
type MailboxProtocol uint16

const (
	MailboxCoE MailboxProtocol = 0x01
	MailboxFoE MailboxProtocol = 0x02
	MailboxEoE MailboxProtocol = 0x04
	MailboxSoE MailboxProtocol = 0x08
)

// Direction selects the process-data direction from the master's point of view.
type Direction uint8

const (
	// Inputs is device to master data (TxPDO, SM3).
	Inputs Direction = iota
	// Outputs is master to device data (RxPDO, SM2).
	Outputs
)

// Identity is the identity object (0x1018) of a device as read from its EEPROM.
type Identity struct {
	VendorID     uint32
	ProductCode  uint32
	Revision     uint32
	SerialNumber uint32
}

// PDODescriptor is a PDO as described in the device EEPROM. The EEPROM category carries only the total
// bit length of the PDO, not its individual entries.
type PDODescriptor struct {
	BitLen uint16
}

// Emergency is a CoE emergency message received from a device.
type Emergency struct {
	// Device is the ordinal of the reporting device within the group.
	Device        uint16
	ErrorCode     uint16
	ErrorRegister uint8
}

// Timeouts configures the engine's per-operation timeouts.
type Timeouts struct {
	PDU             time.Duration
	StateTransition time.Duration
	MailboxResponse time.Duration
	EEPROM          time.Duration
}

// OpenOptions configures a master handle.
type OpenOptions struct {
	Timeouts Timeouts
	// Retries is the number of times a timed out PDU is re-sent.
	Retries int
	// Isolated requests private frame storage instead of the shared, split-once storage.
	Isolated bool
}

// Driver opens master handles.
type Driver interface {
	// Open binds a master handle to iface. It fails with ErrStorageBusy when the shared frame storage
	// is already split and opts.Isolated is false, and with ErrInterfaceNotFound when iface does not exist.
	Open(iface string, opts OpenOptions) (Master, error)
}

// Master is an engine handle bound to one network interface.
type Master interface {
	// Run owns the wire-level send/receive loop. It blocks until ctx is cancelled, returning nil, or
	// until the link fails, returning the cause.
	Run(ctx context.Context) error
	// InitGroup enumerates every device on the segment into a single group in PRE-OP.
	InitGroup(ctx context.Context) (Group, error)
	// Close releases the handle's frame storage. Pending operations fail after Close.
	Close() error
}

// EmergencySource is implemented by masters that surface CoE emergency messages.
type EmergencySource interface {
	Emergencies() <-chan Emergency
}

// Group is the set of devices enumerated by a master.
type Group interface {
	// Len returns the number of devices in the group.
	Len() int
	// Device returns the device at ordinal, or nil when ordinal is out of range.
	Device(ordinal int) Device
	// Transition requests every device to enter state. The operation is atomic with respect to the
	// group: on error the group remains in its previous state.
	Transition(ctx context.Context, state ALState) error
	// TxRx performs one bulk process-data exchange and returns the working counter.
	TxRx(ctx context.Context) (uint16, error)
}

// Device is one EtherCAT device of a group.
type Device interface {
	Identity() Identity
	Name() string
	ConfiguredAddress() uint16
	AliasAddress() uint16
	PortCount() uint8
	// MailboxProtocols returns the protocols advertised in the device EEPROM.
	MailboxProtocols() MailboxProtocol

	// InputSize and OutputSize return the lengths of the device's process-data areas.
	InputSize() int
	OutputSize() int
	// ReadInputs copies the input area into dst and returns the number of bytes copied.
	ReadInputs(dst []byte) int
	// WriteOutputs copies src into the output area and returns the number of bytes copied.
	WriteOutputs(src []byte) int
	InputByte(offset int) (byte, bool)
	OutputByte(offset int) (byte, bool)
	SetOutputByte(offset int, value byte) bool

	// SDORead reads an expedited SDO into buf and returns the number of bytes read.
	SDORead(ctx context.Context, index uint16, subIndex uint8, buf []byte) (int, error)
	SDOWrite(ctx context.Context, index uint16, subIndex uint8, data []byte) error
	RegisterRead(ctx context.Context, address uint16, buf []byte) error
	RegisterWrite(ctx context.Context, address uint16, data []byte) error
	// EEPROMRead reads raw EEPROM content starting at the word address into buf.
	EEPROMRead(ctx context.Context, wordAddress uint16, buf []byte) (int, error)
	// EEPROMPDOs returns the PDO descriptors of the EEPROM TxPDO (Inputs) or RxPDO (Outputs) category.
	EEPROMPDOs(ctx context.Context, dir Direction) ([]PDODescriptor, error)
	// ALStatus returns the current AL state and AL status code.
	ALStatus(ctx context.Context) (ALState, uint16, error)
}

// ReadRegisterU8 reads an 8-bit register.
func ReadRegisterU8(ctx context.Context, d Device, address uint16) (uint8, error) {
	var buf [1]byte
	if err := d.RegisterRead(ctx, address, buf[:]); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// ReadRegisterU16 reads a little-endian 16-bit register.
func ReadRegisterU16(ctx context.Context, d Device, address uint16) (uint16, error) {
	var buf [2]byte
	if err := d.RegisterRead(ctx, address, buf[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadRegisterU32 reads a little-endian 32-bit register.
func ReadRegisterU32(ctx context.Context, d Device, address uint16) (uint32, error) {
	var buf [4]byte
	if err := d.RegisterRead(ctx, address, buf[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteRegisterU16 writes a little-endian 16-bit register.
func WriteRegisterU16(ctx context.Context, d Device, address uint16, value uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], value)

	return d.RegisterWrite(ctx, address, buf[:])
}

// ReadSDOU8 reads an UNSIGNED8 object.
func ReadSDOU8(ctx context.Context, d Device, index uint16, subIndex uint8) (uint8, error) {
	var buf [1]byte
	if _, err := d.SDORead(ctx, index, subIndex, buf[:]); err != nil {
		return 0, err
	}

	return buf[0], nil
}

// ReadSDOU16 reads an UNSIGNED16 object.
func ReadSDOU16(ctx context.Context, d Device, index uint16, subIndex uint8) (uint16, error) {
	var buf [2]byte
	if _, err := d.SDORead(ctx, index, subIndex, buf[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadSDOU32 reads an UNSIGNED32 object.
func ReadSDOU32(ctx context.Context, d Device, index uint16, subIndex uint8) (uint32, error) {
	var buf [4]byte
	if _, err := d.SDORead(ctx, index, subIndex, buf[:]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}
