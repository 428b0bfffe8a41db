package master

import (
	"testing"
	"time"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/engine/sim"
	"github.com/arloliu/go-ecat/logger"
	"github.com/stretchr/testify/require"
)

const testIface = "eth0"

// testDevices returns a coupler, a 2-byte output terminal and a CoE input terminal with DC.
func testDevices() []sim.DeviceSpec {
	coupler := sim.DeviceSpec{
		Name:      "EK1100",
		Identity:  engine.Identity{VendorID: 2, ProductCode: 0x044C2C52},
		PortCount: 3,
	}
	outputs := sim.DeviceSpec{
		Name:       "EL2008",
		Identity:   engine.Identity{VendorID: 2, ProductCode: 0x07D83052, SerialNumber: 7},
		PortCount:  2,
		OutputSize: 2,
		InputSize:  2,
		Loopback:   true,
	}
	inputs := sim.DeviceSpec{
		Name:      "EL3102",
		Identity:  engine.Identity{VendorID: 2, ProductCode: 0x0C1E3052},
		PortCount: 2,
		Mailbox:   engine.MailboxCoE,
		InputSize: 4,
		DC:        true,
	}
	inputs.SetObject(0x8000, 0x06, []byte{0x01})
	inputs.SetObject(0x1018, 0x01, []byte{0x02, 0x00, 0x00, 0x00})

	return []sim.DeviceSpec{coupler, outputs, inputs}
}

func newTestSegment(t *testing.T, devices ...sim.DeviceSpec) (*sim.Driver, *sim.Segment) {
	t.Helper()

	if len(devices) == 0 {
		devices = testDevices()
	}
	drv := sim.NewDriver()
	seg := drv.AddSegment(testIface, devices...)

	return drv, seg
}

func newTestConfig(t *testing.T, opts ...ConnOption) *Config {
	t.Helper()

	base := []ConnOption{
		WithPDUTimeout(20 * time.Millisecond),
		WithPDURetries(0),
		WithStateTransitionTimeout(200 * time.Millisecond),
		WithMailboxResponseTimeout(100 * time.Millisecond),
		WithLogger(logger.NewPermissiveMockLogger()),
		WithDiagnostics(&diag.Channel{}),
	}
	cfg, err := NewConfig(testIface, append(base, opts...)...)
	require.NoError(t, err)

	return cfg
}

// newTestSession returns an initialized session over the default test devices. It is shut down with
// the test.
func newTestSession(t *testing.T, opts ...ConnOption) (*Session, *sim.Segment) {
	t.Helper()

	drv, seg := newTestSegment(t)
	s := NewSession(drv)
	require.NoError(t, s.Initialize(newTestConfig(t, opts...)))
	t.Cleanup(s.Shutdown)

	return s, seg
}

func requestStates(t *testing.T, s *Session, states ...State) {
	t.Helper()

	for _, st := range states {
		require.NoError(t, s.RequestState(st))
		require.Equal(t, st, s.CurrentState())
	}
}
