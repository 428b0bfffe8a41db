package master

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/logger"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// ProcessDataCapacity is the size in bytes of the shared process-data image.
const ProcessDataCapacity = 4096

// processImage is the shared process-data image. It is allocated once per session and never moved.
type processImage struct {
	mu  sync.RWMutex
	buf [ProcessDataCapacity]byte
}

// sessionState is the state of an initialized session. It is replaced, never reused, by Shutdown and
// Initialize.
type sessionState struct {
	id     string
	cfg    *Config
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  *TaskManager
	master engine.Master

	group       group
	inputSize   int
	outputSize  int
	expectedWKC uint16

	image *processImage

	pollInterval time.Duration
	pollGen      uint64 // bumped whenever the poller is reconfigured
	mailbox      *xsync.MapOf[int, mailboxPoll]
}

// Session is an EtherCAT master session over one network interface.
//
// A Session is created empty and becomes usable after Initialize. All methods are safe for concurrent
// use, but CyclicExchange is meant to be driven by a single control loop.
type Session struct {
	driver engine.Driver

	mu    sync.RWMutex // protects state and the group and sizing fields of state
	state *sessionState

	healthy atomic.Bool
	diag    atomic.Pointer[diag.Channel]
	metrics SessionMetrics
}

// NewSession creates an uninitialized session opening engine handles through driver.
func NewSession(driver engine.Driver) *Session {
	s := &Session{driver: driver}
	s.diag.Store(diag.Default())
	s.healthy.Store(true)

	return s
}

// Diagnostics returns the channel receiving the session's last error and last emergency.
func (s *Session) Diagnostics() *diag.Channel {
	return s.diag.Load()
}

// LastError returns the message of the most recent failure.
func (s *Session) LastError() string {
	return s.Diagnostics().LastError()
}

// GetMetrics returns the session metrics.
func (s *Session) GetMetrics() *SessionMetrics {
	return &s.metrics
}

// Healthy reports the network health flag, set by every successful exchange and cleared by every
// failed one.
func (s *Session) Healthy() bool {
	return s.healthy.Load()
}

// ID returns the identifier of the current session, or an empty string when not initialized.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return ""
	}

	return s.state.id
}

// fail records err in the diagnostics channel and returns it.
func (s *Session) fail(err error) error {
	s.Diagnostics().SetError(err)
	return err
}

// Initialize opens the engine handle for cfg's interface, starts the wire loop, enumerates the devices
// into a PRE-OP group and applies the init commands. Failing init commands are logged and skipped.
//
// Calling Initialize on an initialized session returns nil without re-enumerating.
//
// It returns an error wrapping ErrInvalidArgument for a malformed configuration, ErrResourceBusy when
// the engine's shared frame storage is already in use, and ErrProtocol when the handle cannot be opened
// or enumeration fails. The session stays uninitialized on failure.
func (s *Session) Initialize(cfg *Config) error {
	if cfg == nil {
		return s.fail(fmt.Errorf("%w: nil config", ErrInvalidArgument))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != nil {
		return nil
	}

	s.diag.Store(cfg.Diagnostics())
	if err := ValidateInterface(cfg.Interface()); err != nil {
		return s.fail(err)
	}

	id := uuid.NewString()
	l := cfg.GetLogger().With("session", id, "iface", cfg.Interface())
	s.healthy.Store(true)

	m, err := s.driver.Open(cfg.Interface(), cfg.openOptions(false))
	if err != nil {
		if errors.Is(err, engine.ErrStorageBusy) {
			return s.fail(fmt.Errorf("%w: %w", ErrResourceBusy, err))
		}
		return s.fail(fmt.Errorf("%w: open %s: %w", ErrProtocol, cfg.Interface(), err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &sessionState{
		id:           id,
		cfg:          cfg,
		logger:       l,
		ctx:          ctx,
		cancel:       cancel,
		tasks:        NewTaskManager(ctx, l),
		master:       m,
		image:        &processImage{},
		pollInterval: cfg.MailboxPollInterval(),
		mailbox:      xsync.NewMapOf[int, mailboxPoll](),
	}

	if err := st.tasks.Go("wire", m.Run, func(err error) { s.wireLoopExited(st, err) }); err != nil {
		st.release()
		return s.fail(fmt.Errorf("%w: start wire loop: %w", ErrProtocol, err))
	}

	eg, err := m.InitGroup(ctx)
	if err != nil {
		st.release()
		l.Error("enumeration failed", "error", err)
		return s.fail(fmt.Errorf("%w: enumerate: %w", ErrProtocol, err))
	}
	st.group = preOpGroup{eg: eg}

	applyInitCommands(ctx, l, eg, cfg.initCommands)

	s.startEmergencyWatcher(st)
	if st.pollInterval > 0 {
		if err := s.startMailboxPoller(st); err != nil {
			l.Warn("mailbox polling not started", "error", err)
		}
	}

	s.state = st
	l.Info("session initialized", "devices", eg.Len())

	return nil
}

func applyInitCommands(ctx context.Context, l logger.Logger, eg engine.Group, cmds []InitCommand) {
	for i, cmd := range cmds {
		d := eg.Device(int(cmd.Device))
		if d == nil {
			l.Warn("init command skipped, no such device", "command", i, "device", cmd.Device)
			continue
		}

		var err error
		switch cmd.Kind {
		case InitSDO:
			err = d.SDOWrite(ctx, cmd.Index, cmd.SubIndex, cmd.Value[:])
		case InitRegister:
			err = d.RegisterWrite(ctx, cmd.Index, cmd.Value[:])
		}
		if err != nil {
			l.Warn("init command failed", "command", i, "device", cmd.Device, "kind", cmd.Kind,
				"index", fmt.Sprintf("0x%04X", cmd.Index), "sub_index", cmd.SubIndex, "error", err)
		}
	}
}

// wireLoopExited is called when the engine wire loop returns. A nil err means the loop was cancelled.
func (s *Session) wireLoopExited(st *sessionState, err error) {
	if err == nil {
		return
	}

	s.healthy.Store(false)
	s.Diagnostics().SetError(fmt.Errorf("%w: wire loop: %w", ErrProtocol, err))
	st.logger.Error("wire loop terminated", "error", err)
}

// release stops every task of st and closes its engine handle.
func (st *sessionState) release() {
	st.cancel()
	st.tasks.Stop()
	st.tasks.Wait()
	if err := st.master.Close(); err != nil {
		st.logger.Warn("close engine handle", "error", err)
	}
}

// Shutdown drops the session: it cancels pending engine operations, stops the background tasks, closes
// the engine handle and clears the last emergency. The process-data pointer is invalid afterwards.
//
// Shutdown is idempotent.
func (s *Session) Shutdown() {
	// cancel first so operations blocked in the engine under the read lock return
	s.mu.RLock()
	if s.state != nil {
		s.state.cancel()
	}
	s.mu.RUnlock()

	s.mu.Lock()
	st := s.state
	s.state = nil
	s.mu.Unlock()

	s.Diagnostics().ClearEmergency()

	if st == nil {
		return
	}

	st.release()
	st.logger.Info("session shut down")
}

// CurrentState returns the state of the group, InitState when the session is not initialized.
// It never touches the network.
func (s *Session) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil || s.state.group == nil {
		return InitState
	}

	return s.state.group.State()
}

// InputSize returns the length of the input region of the process-data image.
func (s *Session) InputSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return 0
	}

	return s.state.inputSize
}

// OutputSize returns the length of the output region, which is also the offset of the input region.
func (s *Session) OutputSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return 0
	}

	return s.state.outputSize
}

// ExpectedWorkingCounter returns the working counter expected from a full exchange, the number of
// devices once the group reached SAFE-OP and zero otherwise.
func (s *Session) ExpectedWorkingCounter() uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return 0
	}

	return s.state.expectedWKC
}

// ProcessDataTotalSize returns the number of meaningful bytes in the process-data image, outputs first
// and inputs following. It never exceeds ProcessDataCapacity.
func (s *Session) ProcessDataTotalSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return 0
	}

	return min(s.state.inputSize+s.state.outputSize, ProcessDataCapacity)
}

// ProcessDataPointer returns the address of the process-data image, or nil when the session is not
// initialized. The address stays valid until Shutdown. Accesses through it are not synchronized with
// CyclicExchange.
func (s *Session) ProcessDataPointer() unsafe.Pointer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil
	}

	return unsafe.Pointer(&s.state.image.buf[0])
}

// ReadProcessData copies the image content at offset into dst and returns the number of bytes copied.
func (s *Session) ReadProcessData(offset int, dst []byte) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil || offset < 0 || offset >= ProcessDataCapacity {
		return 0
	}

	img := s.state.image
	img.mu.RLock()
	defer img.mu.RUnlock()

	return copy(dst, img.buf[offset:])
}

// WriteProcessData copies src into the image at offset and returns the number of bytes copied.
func (s *Session) WriteProcessData(offset int, src []byte) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil || offset < 0 || offset >= ProcessDataCapacity {
		return 0
	}

	img := s.state.image
	img.mu.Lock()
	defer img.mu.Unlock()

	return copy(img.buf[offset:], src)
}
