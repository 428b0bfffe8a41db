package capi

import (
	"testing"

	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/engine/sim"
)

const testIface = "eth0"

var (
	couplerID = engine.Identity{VendorID: 2, ProductCode: 0x044C2C52}
	analogID  = engine.Identity{VendorID: 2, ProductCode: 0x0C1E3052, Revision: 0x00140000, SerialNumber: 42}
)

// useSim replaces the process-wide session with one over a simulated coupler and analog input terminal.
func useSim(t *testing.T) *sim.Segment {
	t.Helper()

	coupler := sim.DeviceSpec{Name: "EK1100", Identity: couplerID, PortCount: 3}
	analog := sim.DeviceSpec{
		Name:       "EL3102",
		Identity:   analogID,
		PortCount:  2,
		InputSize:  4,
		OutputSize: 2,
		Loopback:   true,
		DC:         true,
	}
	analog.AssignPDOs(engine.Inputs, sim.PDOMapping{Index: 0x1A00, Entries: []sim.EntryMapping{
		{Index: 0x6000, SubIndex: 0x11, BitLen: 16},
		{Index: 0x6010, SubIndex: 0x11, BitLen: 16},
	}})

	drv := sim.NewDriver()
	seg := drv.AddSegment(testIface, coupler, analog)
	UseDriver(drv)
	t.Cleanup(Shutdown)

	return seg
}

func initCommandRecords(cmds ...[InitCommandSize]byte) []byte {
	var out []byte
	for _, c := range cmds {
		out = append(out, c[:]...)
	}

	return out
}

func identityRecords(ids ...engine.Identity) []byte {
	out := make([]byte, len(ids)*IdentitySize)
	for i, id := range ids {
		PutIdentity(out[i*IdentitySize:], id)
	}

	return out
}

func lastError() string {
	buf := make([]byte, 512)
	n := GetLastError(buf)

	return string(buf[:n])
}
