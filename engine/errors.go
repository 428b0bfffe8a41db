package engine

import "errors"

var (
	// ErrStorageBusy indicates that the shared frame storage has already been split by another handle.
	ErrStorageBusy = errors.New("engine: frame storage already in use")

	// ErrInterfaceNotFound indicates that the network interface could not be opened.
	ErrInterfaceNotFound = errors.New("engine: network interface not found")

	// ErrClosed indicates that the master handle has been closed.
	ErrClosed = errors.New("engine: master closed")
)

var (
	// ErrTimeout indicates that a PDU was not answered within the PDU timeout, including retries.
	ErrTimeout = errors.New("engine: pdu timeout")

	// ErrWorkingCounter indicates that a device did not process an addressed datagram.
	ErrWorkingCounter = errors.New("engine: unexpected working counter")

	// ErrTransitionRefused indicates that a device refused an AL state change.
	ErrTransitionRefused = errors.New("engine: state transition refused")
)

var (
	// ErrMailboxUnsupported indicates that the device has no CoE mailbox.
	ErrMailboxUnsupported = errors.New("engine: mailbox protocol not supported")

	// ErrNoSuchObject indicates an SDO abort 0x06020000 (object does not exist).
	ErrNoSuchObject = errors.New("engine: object does not exist in the object dictionary")

	// ErrEEPROM indicates an EEPROM access failure.
	ErrEEPROM = errors.New("engine: eeprom access failed")
)
