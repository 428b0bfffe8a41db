package capi

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/internal/rawsock"
	"github.com/arloliu/go-ecat/logger"
	"github.com/arloliu/go-ecat/master"
)

// ModuleVersion is the version reported by Version.
const ModuleVersion = "0.4.0"

// errNoDriver is returned by the placeholder driver used until UseDriver is called.
var errNoDriver = errors.New("capi: no engine driver registered")

type noDriver struct{}

func (noDriver) Open(iface string, _ engine.OpenOptions) (engine.Master, error) {
	return nil, fmt.Errorf("%w: %w for %s", engine.ErrInterfaceNotFound, errNoDriver, iface)
}

var (
	mu      sync.RWMutex
	session = master.NewSession(noDriver{})
)

// UseDriver shuts down the process-wide session and replaces it with a session opening engine handles
// through drv.
func UseDriver(drv engine.Driver) {
	mu.Lock()
	defer mu.Unlock()

	session.Shutdown()
	session = master.NewSession(drv)
}

func current() *master.Session {
	mu.RLock()
	defer mu.RUnlock()

	return session
}

func status(err error) int32 {
	return int32(StatusOf(err))
}

// invalid records an argument error raised by the boundary itself.
func invalid(format string, args ...any) int32 {
	err := fmt.Errorf("%w: "+format, append([]any{master.ErrInvalidArgument}, args...)...)
	diag.Default().SetError(err)

	return int32(StatusInvalidArgument)
}

// Version copies the module version into buf and returns the number of bytes copied. With an empty buf
// it returns the full length of the version string.
func Version(buf []byte) int32 {
	if len(buf) == 0 {
		return int32(len(ModuleVersion))
	}

	return int32(copy(buf, ModuleVersion))
}

// GetLastError copies the last error message into buf and returns the number of bytes copied, 0 for an
// empty buf. The message is not NUL terminated.
func GetLastError(buf []byte) int32 {
	return int32(diag.Default().CopyLastError(buf))
}

// IsRawSocketAvailable returns 1 when raw link-layer sockets can be opened, 0 otherwise.
func IsRawSocketAvailable() int32 {
	if rawsock.Available() {
		return 1
	}

	return 0
}

// Initialize opens the process-wide session on iface. initCommands is a packed array of init command
// records; records with an unknown kind are skipped. Zero timeouts select the defaults.
func Initialize(iface string, initCommands []byte, pduTimeoutMs, stateTransitionTimeoutMs,
	mailboxResponseTimeoutMs, eepromTimeoutMs uint64, pduRetries uint32,
) int32 {
	if len(initCommands)%InitCommandSize != 0 {
		return invalid("init command records of %d bytes", len(initCommands))
	}

	cmds := make([]master.InitCommand, 0, len(initCommands)/InitCommandSize)
	for off := 0; off < len(initCommands); off += InitCommandSize {
		cmd, kind := decodeInitCommand(initCommands[off : off+InitCommandSize])
		if kind > uint8(master.InitRegister) {
			logger.Warn("unknown init command kind, skipped", "command", off/InitCommandSize, "kind", kind)
			continue
		}
		cmds = append(cmds, cmd)
	}

	cfg, err := master.NewConfig(iface,
		master.WithPDUTimeout(millis(pduTimeoutMs)),
		master.WithStateTransitionTimeout(millis(stateTransitionTimeoutMs)),
		master.WithMailboxResponseTimeout(millis(mailboxResponseTimeoutMs)),
		master.WithEEPROMTimeout(millis(eepromTimeoutMs)),
		master.WithPDURetries(int(min(pduRetries, master.MaxPDURetries+1))),
		master.WithInitCommands(cmds...),
	)
	if err != nil {
		diag.Default().SetError(err)
		return status(err)
	}

	return status(current().Initialize(cfg))
}

// Shutdown drops the process-wide session. It is idempotent.
func Shutdown() {
	current().Shutdown()
}

// VerifyTopology compares the enumerated devices with a packed array of identity records.
func VerifyTopology(expected []byte) int32 {
	ids, err := decodeIdentities(expected)
	if err != nil {
		diag.Default().SetError(err)
		return status(err)
	}

	return status(current().VerifyTopology(ids))
}

// RequestState drives the group towards target, 0 INIT, 1 PRE-OP, 2 SAFE-OP, 3 OP.
func RequestState(target uint8) int32 {
	return status(current().RequestState(master.State(target)))
}

// GetState returns the state of the group, 0 when not initialized.
func GetState() uint8 {
	return uint8(current().CurrentState())
}

// ALStatusCode returns the AL status code of a device, 0 when it cannot be read.
func ALStatusCode(device uint16) uint16 {
	return current().ALStatusCode(int(device))
}

// ProcessDataPointer returns the address of the process-data image, nil when not initialized.
func ProcessDataPointer() unsafe.Pointer {
	return current().ProcessDataPointer()
}

// ProcessDataTotalSize returns the number of meaningful bytes of the process-data image.
func ProcessDataTotalSize() uint32 {
	return uint32(current().ProcessDataTotalSize())
}

// CyclicExchange runs one exchange and returns the working counter, or a negative Status.
func CyclicExchange() int32 {
	wkc, err := current().CyclicExchange()
	if err != nil {
		return status(err)
	}

	return int32(wkc)
}

// WriteProcessDataByte sets one byte of a device's live output area. It returns 1 on success and 0
// otherwise.
func WriteProcessDataByte(device uint16, offset uint32, value uint8) int32 {
	if current().WriteProcessDataByte(int(device), int(offset), value) {
		return 1
	}

	return 0
}

// ReadProcessDataByte returns one byte of a device's live output or input area, 0 when unavailable.
func ReadProcessDataByte(device uint16, offset uint32, output bool) uint8 {
	return current().ReadProcessDataByte(int(device), int(offset), output)
}

// SDORead reads an expedited SDO into buf and returns the number of bytes read.
func SDORead(device uint16, index uint16, subIndex uint8, buf []byte) int32 {
	n, err := current().SDORead(int(device), index, subIndex, buf)
	if err != nil {
		return status(err)
	}

	return int32(n)
}

// SDOWrite writes an expedited SDO of 1, 2 or 4 bytes.
func SDOWrite(device uint16, index uint16, subIndex uint8, data []byte) int32 {
	return status(current().SDOWrite(int(device), index, subIndex, data))
}

// RegisterReadU16 reads a 16-bit ESC register into out.
func RegisterReadU16(device uint16, address uint16, out *uint16) int32 {
	if out == nil {
		return invalid("nil register output")
	}

	v, err := current().ReadRegisterU16(int(device), address)
	if err != nil {
		return status(err)
	}
	*out = v

	return int32(StatusOK)
}

// RegisterWriteU16 writes a 16-bit ESC register.
func RegisterWriteU16(device uint16, address uint16, value uint16) int32 {
	return status(current().WriteRegisterU16(int(device), address, value))
}

// EEPROMRead reads raw EEPROM content at the word address into buf and returns the number of bytes
// read.
func EEPROMRead(device uint16, wordAddress uint16, buf []byte) int32 {
	n, err := current().EEPROMRead(int(device), wordAddress, buf)
	if err != nil {
		return status(err)
	}

	return int32(n)
}

// ConfigureMailboxPolling sets the background mailbox poll interval, 0 disables polling.
func ConfigureMailboxPolling(intervalMs uint32) int32 {
	return status(current().ConfigureMailboxPolling(time.Duration(intervalMs) * time.Millisecond))
}

// CheckMailbox returns MailboxNewMail when the mailbox-full bit of the status register is set,
// MailboxEmpty when clear, or a negative Status.
func CheckMailbox(device uint16, statusAddr uint16) int32 {
	return mailboxResult(current().CheckMailbox(int(device), statusAddr))
}

// CheckMailboxResilient runs the bounded toggle-bit check. A lastToggle above 1 means no previous
// mail is known.
func CheckMailboxResilient(device uint16, statusAddr uint16, lastToggle uint8) int32 {
	return mailboxResult(current().CheckMailboxResilient(int(device), statusAddr, lastToggle))
}

// PendingMail returns the mailbox state the background poller last cached for a device, or
// StatusNoRecord when the device was not polled yet.
func PendingMail(device uint16) int32 {
	st, ok := current().PendingMail(int(device))
	if !ok {
		return int32(StatusNoRecord)
	}
	if st == master.MailboxRetryExhausted {
		return int32(StatusRetryExhausted)
	}

	return mailboxResult(st, nil)
}

func mailboxResult(st master.MailboxStatus, err error) int32 {
	if err != nil {
		return status(err)
	}
	if st == master.MailboxNewMail {
		return MailboxNewMail
	}

	return MailboxEmpty
}

// GetLastEmergency writes the last emergency record into out. It returns StatusNoRecord when no
// emergency was received.
func GetLastEmergency(out []byte) int32 {
	if len(out) < EmergencyRecordSize {
		return invalid("emergency buffer of %d bytes", len(out))
	}

	e, ok := current().Diagnostics().LastEmergency()
	if !ok {
		return int32(StatusNoRecord)
	}
	putEmergency(out, e)

	return int32(StatusOK)
}

func millis(ms uint64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
