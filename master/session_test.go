package master

import (
	"testing"
	"time"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/engine/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Initialize(t *testing.T) {
	drv, seg := newTestSegment(t)
	s := NewSession(drv)
	defer s.Shutdown()

	cfg := newTestConfig(t)
	require.NoError(t, s.Initialize(cfg))

	assert.Equal(t, PreOpState, s.CurrentState())
	assert.NotEmpty(t, s.ID())
	assert.True(t, drv.StorageSplit())
	assert.Equal(t, 1, seg.OpenMasters())
	assert.Equal(t, engine.ALStatePreOp, seg.DeviceState(1))
	assert.Zero(t, s.InputSize())
	assert.Zero(t, s.OutputSize())
	assert.Zero(t, s.ExpectedWorkingCounter())
	assert.NotNil(t, s.ProcessDataPointer())
	assert.Same(t, cfg.Diagnostics(), s.Diagnostics())

	count, err := s.DeviceCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	id := s.ID()
	tasks := s.state.tasks.TaskCount()
	assert.Equal(t, 2, tasks, "wire loop and emergency watcher")

	// a second call neither re-enumerates nor starts another wire loop
	require.NoError(t, s.Initialize(newTestConfig(t)))
	assert.Equal(t, id, s.ID())
	assert.Equal(t, tasks, s.state.tasks.TaskCount())
	assert.Equal(t, 1, seg.OpenMasters())
}

func TestSession_InitializeErrors(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		drv, _ := newTestSegment(t)
		s := NewSession(drv)

		require.ErrorIs(t, s.Initialize(nil), ErrInvalidArgument)
	})

	t.Run("unknown interface", func(t *testing.T) {
		drv, _ := newTestSegment(t)
		s := NewSession(drv)
		cfg, err := NewConfig("eth9", WithDiagnostics(&diag.Channel{}))
		require.NoError(t, err)

		err = s.Initialize(cfg)
		require.ErrorIs(t, err, ErrProtocol)
		require.ErrorIs(t, err, engine.ErrInterfaceNotFound)
		assert.Equal(t, InitState, s.CurrentState())
		assert.Empty(t, s.ID())
		assert.Equal(t, err.Error(), s.LastError())
	})

	t.Run("storage in use", func(t *testing.T) {
		drv, _ := newTestSegment(t)
		other, err := drv.Open(testIface, engine.OpenOptions{})
		require.NoError(t, err)
		defer other.Close()

		s := NewSession(drv)
		err = s.Initialize(newTestConfig(t))
		require.ErrorIs(t, err, ErrResourceBusy)
		assert.Nil(t, s.ProcessDataPointer())
	})

	t.Run("enumeration failure", func(t *testing.T) {
		drv, seg := newTestSegment(t)
		seg.FailEnumeration(engine.ErrWorkingCounter)

		s := NewSession(drv)
		err := s.Initialize(newTestConfig(t))
		require.ErrorIs(t, err, ErrProtocol)
		assert.Equal(t, InitState, s.CurrentState())
		assert.False(t, drv.StorageSplit(), "storage released")
		assert.Zero(t, seg.OpenMasters())

		// the fault was one-shot
		require.NoError(t, s.Initialize(newTestConfig(t)))
		s.Shutdown()
	})
}

func TestSession_InitCommands(t *testing.T) {
	drv, seg := newTestSegment(t)
	s := NewSession(drv)
	defer s.Shutdown()

	cfg := newTestConfig(t, WithInitCommands(
		InitCommand{Device: 2, Kind: InitSDO, Index: 0x8000, SubIndex: 0x06, Value: [4]byte{0x05}},
		InitCommand{Device: 0, Kind: InitSDO, Index: 0x8000, SubIndex: 0x01, Value: [4]byte{0x01}},
		InitCommand{Device: 9, Kind: InitRegister, Index: 0x0980, Value: [4]byte{0x01}},
		InitCommand{Device: 1, Kind: InitRegister, Index: 0x0980, Value: [4]byte{0x01, 0x02}},
	))
	// failing commands are skipped
	require.NoError(t, s.Initialize(cfg))

	v, ok := seg.Object(2, 0x8000, 0x06)
	require.True(t, ok)
	assert.Equal(t, []byte{0x05, 0x00, 0x00, 0x00}, v)
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0x00}, seg.Register(1, 0x0980))
}

func TestSession_Shutdown(t *testing.T) {
	drv, seg := newTestSegment(t)
	s := NewSession(drv)

	// never initialized
	s.Shutdown()

	require.NoError(t, s.Initialize(newTestConfig(t)))
	requestStates(t, s, SafeOpState, OpState)

	seg.InjectEmergency(engine.Emergency{Device: 1, ErrorCode: 0x8110})
	require.Eventually(t, func() bool {
		_, ok := s.Diagnostics().LastEmergency()
		return ok
	}, time.Second, 5*time.Millisecond)

	s.Shutdown()
	assert.Equal(t, InitState, s.CurrentState())
	assert.Nil(t, s.ProcessDataPointer())
	assert.Zero(t, s.ProcessDataTotalSize())
	assert.False(t, drv.StorageSplit())
	assert.Zero(t, seg.OpenMasters())
	_, ok := s.Diagnostics().LastEmergency()
	assert.False(t, ok)

	s.Shutdown()
	assert.Equal(t, InitState, s.CurrentState())

	// a new session can be built on the released storage
	require.NoError(t, s.Initialize(newTestConfig(t)))
	assert.Equal(t, PreOpState, s.CurrentState())
	s.Shutdown()
}

func TestSession_NotInitialized(t *testing.T) {
	drv, seg := newTestSegment(t)
	s := NewSession(drv)
	s.diag.Store(&diag.Channel{})

	_, err := s.DeviceCount()
	require.ErrorIs(t, err, ErrNotInitialized)
	_, err = s.CyclicExchange()
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, s.RequestState(OpState), ErrNoGroup)
	_, err = s.SDORead(0, 0x1018, 1, make([]byte, 4))
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, s.ConfigureMailboxPolling(time.Second), ErrNotInitialized)
	require.ErrorIs(t, s.VerifyTopology([]engine.Identity{{VendorID: 2}}), ErrNotInitialized)
	_, err = s.CheckMailbox(0, engine.RegSM1Status)
	require.ErrorIs(t, err, ErrNotInitialized)

	assert.Equal(t, InitState, s.CurrentState())
	assert.Zero(t, s.ProcessDataTotalSize())
	assert.Nil(t, s.ProcessDataPointer())
	assert.Zero(t, s.ReadProcessData(0, make([]byte, 4)))
	assert.Zero(t, s.WriteProcessData(0, []byte{1}))
	assert.Zero(t, s.ALStatusCode(0))
	assert.Zero(t, s.MailboxPollInterval())
	assert.Zero(t, seg.ExchangeCount())
}

func TestSession_LastErrorIsLatestFailure(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.DeviceIdentity(9)
	require.ErrorIs(t, err, ErrDeviceNotFound)
	assert.Equal(t, err.Error(), s.LastError())

	err = s.SDOWrite(2, 0x8000, 1, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, err.Error(), s.LastError())
	assert.NotContains(t, s.LastError(), "device not found")

	n := s.Diagnostics().CopyLastError(make([]byte, 6))
	assert.Equal(t, 6, n)
}

func TestSession_DeviceAccess(t *testing.T) {
	s, seg := newTestSession(t)

	id, err := s.DeviceIdentity(1)
	require.NoError(t, err)
	assert.Equal(t, engine.Identity{VendorID: 2, ProductCode: 0x07D83052, SerialNumber: 7}, id)

	t.Run("sdo", func(t *testing.T) {
		buf := make([]byte, 1)
		n, err := s.SDORead(2, 0x8000, 0x06, buf)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, byte(0x01), buf[0])

		require.NoError(t, s.SDOWrite(2, 0x8000, 0x07, []byte{0x10, 0x27}))
		v, ok := seg.Object(2, 0x8000, 0x07)
		require.True(t, ok)
		assert.Equal(t, []byte{0x10, 0x27}, v)

		_, err = s.SDORead(0, 0x1018, 1, make([]byte, 4))
		require.ErrorIs(t, err, ErrProtocol)
		require.ErrorIs(t, err, engine.ErrMailboxUnsupported)

		_, err = s.SDORead(2, 0x1018, 1, make([]byte, 5))
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = s.SDORead(2, 0x1018, 1, nil)
		require.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("register", func(t *testing.T) {
		require.NoError(t, s.WriteRegisterU16(1, 0x0420, 1000))
		v, err := s.ReadRegisterU16(1, 0x0420)
		require.NoError(t, err)
		assert.Equal(t, uint16(1000), v)

		_, err = s.ReadRegisterU16(3, 0x0420)
		require.ErrorIs(t, err, ErrDeviceNotFound)
	})

	t.Run("al status", func(t *testing.T) {
		seg.SetALStatusCode(1, 0x001B)
		state, code, err := s.ALStatus(1)
		require.NoError(t, err)
		assert.Equal(t, engine.ALStatePreOp, state)
		assert.Equal(t, uint16(0x001B), code)
		assert.Equal(t, uint16(0x001B), s.ALStatusCode(1))
		assert.Zero(t, s.ALStatusCode(7))
	})

	t.Run("eeprom", func(t *testing.T) {
		_, err := s.EEPROMRead(1, 0, nil)
		require.ErrorIs(t, err, ErrInvalidArgument)

		_, err = s.EEPROMRead(1, 0, make([]byte, 4))
		require.ErrorIs(t, err, ErrProtocol)
		require.ErrorIs(t, err, engine.ErrEEPROM)
	})
}

func TestSession_EEPROMRead(t *testing.T) {
	dev := testDevices()[0]
	dev.EEPROM = []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}
	drv, _ := newTestSegment(t, dev)
	s := NewSession(drv)
	require.NoError(t, s.Initialize(newTestConfig(t)))
	defer s.Shutdown()

	buf := make([]byte, 8)
	n, err := s.EEPROMRead(0, 1, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x03, 0x04, 0x05, 0x06}, buf[:n])
}

func TestSession_Emergency(t *testing.T) {
	s, seg := newTestSession(t)

	_, ok := s.Diagnostics().LastEmergency()
	require.False(t, ok)

	seg.InjectEmergency(engine.Emergency{Device: 2, ErrorCode: 0x8110, ErrorRegister: 0x11})
	seg.InjectEmergency(engine.Emergency{Device: 1, ErrorCode: 0x5530, ErrorRegister: 0x01})

	require.Eventually(t, func() bool {
		e, ok := s.Diagnostics().LastEmergency()
		return ok && e == diag.Emergency{Device: 1, ErrorCode: 0x5530, ErrorRegister: 0x01}
	}, time.Second, 5*time.Millisecond)
}

func TestSession_Scan(t *testing.T) {
	drv, _ := newTestSegment(t)
	s := NewSession(drv)

	snap, err := s.Scan(newTestConfig(t))
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
	assert.False(t, drv.StorageSplit(), "scan uses private storage")

	require.NoError(t, s.Initialize(newTestConfig(t)))
	defer s.Shutdown()
	require.NoError(t, s.VerifyTopology(snap.Identities()))

	_, err = s.Scan(newTestConfig(t))
	require.ErrorIs(t, err, ErrResourceBusy)
	assert.Equal(t, err.Error(), s.LastError())

	_, err = s.Scan(nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSession_ScanErrors(t *testing.T) {
	drv, seg := newTestSegment(t)
	s := NewSession(drv)

	cfg, err := NewConfig("eth9", WithDiagnostics(&diag.Channel{}))
	require.NoError(t, err)
	_, err = s.Scan(cfg)
	require.ErrorIs(t, err, ErrProtocol)
	require.ErrorIs(t, err, engine.ErrInterfaceNotFound)

	seg.FailEnumeration(engine.ErrWorkingCounter)
	_, err = s.Scan(newTestConfig(t))
	require.ErrorIs(t, err, ErrProtocol)
	assert.Zero(t, seg.OpenMasters())
}

// gatedDriver holds isolated opens until release is closed.
type gatedDriver struct {
	engine.Driver
	entered chan struct{}
	release chan struct{}
}

func (d *gatedDriver) Open(iface string, opts engine.OpenOptions) (engine.Master, error) {
	if opts.Isolated {
		close(d.entered)
		<-d.release
	}

	return d.Driver.Open(iface, opts)
}

func TestSession_ScanDoesNotBlockInitialize(t *testing.T) {
	drv, _ := newTestSegment(t)
	gated := &gatedDriver{Driver: drv, entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(gated)

	type result struct {
		devices int
		err     error
	}
	scanned := make(chan result, 1)
	go func() {
		snap, err := s.Scan(newTestConfig(t))
		if err != nil {
			scanned <- result{err: err}
			return
		}
		scanned <- result{devices: snap.Len()}
	}()

	select {
	case <-gated.entered:
	case <-time.After(time.Second):
		require.FailNow(t, "scan did not reach the driver")
	}

	initialized := make(chan error, 1)
	go func() { initialized <- s.Initialize(newTestConfig(t)) }()
	select {
	case err := <-initialized:
		require.NoError(t, err)
	case <-time.After(time.Second):
		close(gated.release)
		require.FailNow(t, "Initialize blocked by a running scan")
	}
	n, err := s.DeviceCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	s.Shutdown()

	close(gated.release)
	res := <-scanned
	require.NoError(t, res.err)
	assert.Equal(t, 3, res.devices)
}

func TestSession_VerifyTopology(t *testing.T) {
	s, _ := newTestSession(t)

	expected := make([]engine.Identity, 0, 3)
	for _, d := range testDevices() {
		expected = append(expected, d.Identity)
	}
	require.NoError(t, s.VerifyTopology(expected))

	// a zero serial matches any device
	expected[1].SerialNumber = 0
	require.NoError(t, s.VerifyTopology(expected))

	expected[1].SerialNumber = 8
	err := s.VerifyTopology(expected)
	require.ErrorIs(t, err, ErrTopologyMismatch)
	assert.Contains(t, err.Error(), "device 1")

	expected[1].SerialNumber = 7
	expected[2].ProductCode = 0x0C1E3053
	require.ErrorIs(t, s.VerifyTopology(expected), ErrTopologyMismatch)

	require.ErrorIs(t, s.VerifyTopology(expected[:2]), ErrTopologyMismatch)
	require.ErrorIs(t, s.VerifyTopology(nil), ErrInvalidArgument)
}

func TestSession_WireLoopExit(t *testing.T) {
	drv, _ := newTestSegment(t, sim.DeviceSpec{Name: "EK1100"})
	s := NewSession(drv)
	require.NoError(t, s.Initialize(newTestConfig(t)))

	st := s.state
	s.wireLoopExited(st, nil)
	assert.True(t, s.Healthy())

	s.wireLoopExited(st, engine.ErrClosed)
	assert.False(t, s.Healthy())
	assert.Contains(t, s.LastError(), "wire loop")

	s.Shutdown()
}
