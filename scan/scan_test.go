package scan

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/engine/sim"
	"github.com/arloliu/go-ecat/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOpts = engine.OpenOptions{Timeouts: engine.Timeouts{PDU: 20 * time.Millisecond}}

func testDriver() (*sim.Driver, *sim.Segment) {
	coupler := sim.DeviceSpec{
		Name:      "EK1100",
		Identity:  engine.Identity{VendorID: 2, ProductCode: 0x044C2C52},
		PortCount: 3,
	}

	analog := sim.DeviceSpec{
		Name:         "EL3102",
		Identity:     engine.Identity{VendorID: 2, ProductCode: 0x0C1E3052, Revision: 0x00140000, SerialNumber: 42},
		PortCount:    2,
		InputSize:    6,
		DC:           true,
		EEPROMInputs: []engine.PDODescriptor{{BitLen: 48}},
	}
	analog.SetObject(RxPDOAssign, 0, []byte{0})
	analog.AssignPDOs(engine.Inputs,
		sim.PDOMapping{Index: 0x1A00, Entries: []sim.EntryMapping{
			{Index: 0x6000, SubIndex: 0x11, BitLen: 16},
			{Index: 0x6000, SubIndex: 0x01, BitLen: 1},
		}},
		sim.PDOMapping{Index: 0x1A01, Entries: []sim.EntryMapping{
			{Index: 0x6010, SubIndex: 0x11, BitLen: 64},
		}},
	)

	digital := sim.DeviceSpec{
		Name:          "EL1809",
		Identity:      engine.Identity{VendorID: 2, ProductCode: 0x07113052},
		PortCount:     2,
		InputSize:     3,
		OutputSize:    1,
		EEPROMInputs:  []engine.PDODescriptor{{BitLen: 8}, {BitLen: 12}},
		EEPROMOutputs: []engine.PDODescriptor{{BitLen: 1}},
	}

	drv := sim.NewDriver()
	seg := drv.AddSegment("eth0", coupler, analog, digital)

	return drv, seg
}

func TestDiscover(t *testing.T) {
	drv, seg := testDriver()

	snap, err := Discover(context.Background(), drv, "eth0", testOpts, logger.NewPermissiveMockLogger())
	require.NoError(t, err)
	require.Equal(t, 3, snap.Len())
	assert.NotEmpty(t, snap.ID())
	assert.Equal(t, "eth0", snap.Interface())
	assert.Equal(t, 0, seg.OpenMasters(), "the scan handle is closed")

	coupler, ok := snap.Device(0)
	require.True(t, ok)
	assert.Equal(t, "EK1100", coupler.Name)
	assert.Equal(t, uint16(0x1000), coupler.ConfiguredAddress)
	assert.Equal(t, uint8(3), coupler.PortCount)
	assert.Zero(t, coupler.MailboxProtocols)
	assert.False(t, coupler.DC)
	assert.Empty(t, coupler.PDOs)

	analog, ok := snap.Device(1)
	require.True(t, ok)
	assert.Equal(t, engine.MailboxCoE, analog.MailboxProtocols)
	assert.True(t, analog.DC)
	require.Len(t, analog.PDOs, 2, "CoE assignment wins over EEPROM descriptors")
	assert.Equal(t, PDO{
		Index:       0x1A00,
		SyncManager: SyncManagerInputs,
		Entries: []Entry{
			{Index: 0x6000, SubIndex: 0x11, BitLen: 16, DataType: DataTypeUnsigned16, Name: "Entry_0x6000_11"},
			{Index: 0x6000, SubIndex: 0x01, BitLen: 1, DataType: DataTypeBool, Name: "Entry_0x6000_01"},
		},
	}, analog.PDOs[0])
	assert.Equal(t, DataTypeUnsigned64, analog.PDOs[1].Entries[0].DataType)

	digital, ok := snap.Device(2)
	require.True(t, ok)
	require.Len(t, digital.PDOs, 3)
	assert.Equal(t, PDO{
		Index:       0x1A01,
		SyncManager: SyncManagerInputs,
		Entries:     []Entry{{Index: 0x6001, BitLen: 12, DataType: DataTypeUnsigned16, Name: "Input_PDO_1"}},
	}, digital.PDOs[1])
	assert.Equal(t, PDO{
		Index:       0x1600,
		SyncManager: SyncManagerOutputs,
		Entries:     []Entry{{Index: 0x7000, BitLen: 1, DataType: DataTypeBool, Name: "Output_PDO_0"}},
	}, digital.PDOs[2])

	assert.Equal(t, []engine.Identity{
		{VendorID: 2, ProductCode: 0x044C2C52},
		{VendorID: 2, ProductCode: 0x0C1E3052, Revision: 0x00140000, SerialNumber: 42},
		{VendorID: 2, ProductCode: 0x07113052},
	}, snap.Identities())
}

func TestDiscover_IgnoresSharedStorage(t *testing.T) {
	drv, _ := testDriver()

	live, err := drv.Open("eth0", testOpts)
	require.NoError(t, err)
	defer live.Close()

	snap, err := Discover(context.Background(), drv, "eth0", testOpts, logger.NewPermissiveMockLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Len())
	assert.True(t, drv.StorageSplit())
}

func TestDiscover_Errors(t *testing.T) {
	drv, seg := testDriver()
	l := logger.NewPermissiveMockLogger()

	_, err := Discover(context.Background(), drv, "eth7", testOpts, l)
	require.ErrorIs(t, err, ErrOpen)
	require.ErrorIs(t, err, engine.ErrInterfaceNotFound)

	seg.FailEnumeration(engine.ErrWorkingCounter)
	_, err = Discover(context.Background(), drv, "eth0", testOpts, l)
	require.ErrorIs(t, err, ErrEnumerate)
	assert.Equal(t, 0, seg.OpenMasters())
}

func TestDiscover_LinkDown(t *testing.T) {
	drv, seg := testDriver()
	seg.SetLinkDown(true)

	_, err := Discover(context.Background(), drv, "eth0", testOpts, logger.NewPermissiveMockLogger())
	require.ErrorIs(t, err, ErrEnumerate)
	require.ErrorIs(t, err, engine.ErrTimeout)
}

func TestSnapshot_Accessors(t *testing.T) {
	drv, _ := testDriver()

	snap, err := Discover(context.Background(), drv, "eth0", testOpts, logger.NewPermissiveMockLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.PDOCount(1))
	assert.Equal(t, 0, snap.PDOCount(9))
	assert.Equal(t, 2, snap.EntryCount(1, 0))
	assert.Equal(t, 0, snap.EntryCount(1, 5))

	pdo, ok := snap.PDO(1, 1)
	require.True(t, ok)
	assert.Equal(t, uint16(0x1A01), pdo.Index)
	assert.Nil(t, pdo.Entries)

	entry, ok := snap.Entry(1, 0, 1)
	require.True(t, ok)
	assert.Equal(t, uint8(0x01), entry.SubIndex)

	_, ok = snap.Entry(1, 0, 2)
	assert.False(t, ok)
	_, ok = snap.Device(-1)
	assert.False(t, ok)

	// returned values do not alias the snapshot
	d, _ := snap.Device(1)
	d.PDOs[0].Entries[0].Name = "changed"
	entry, _ = snap.Entry(1, 0, 0)
	assert.Equal(t, "Entry_0x6000_11", entry.Name)

	devices := snap.Devices()
	devices[2].PDOs = nil
	assert.Equal(t, 3, snap.PDOCount(2))
}

func TestSnapshot_Codec(t *testing.T) {
	drv, _ := testDriver()

	snap, err := Discover(context.Background(), drv, "eth0", testOpts, logger.NewPermissiveMockLogger())
	require.NoError(t, err)

	data, err := snap.MarshalBinary()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, snap.ID(), decoded.ID())
	assert.Equal(t, snap.Interface(), decoded.Interface())
	assert.Equal(t, snap.Devices(), decoded.Devices())

	_, err = DecodeSnapshot([]byte{0xFF, 0x00})
	require.ErrorIs(t, err, ErrDecode)
}

func TestDataTypeForBitLen(t *testing.T) {
	tests := []struct {
		bits uint8
		want uint16
	}{
		{1, DataTypeBool},
		{8, DataTypeUnsigned8},
		{16, DataTypeUnsigned16},
		{32, DataTypeUnsigned32},
		{64, DataTypeUnsigned64},
		{12, DataTypeUnknown},
		{0, DataTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DataTypeForBitLen(tt.bits), "bits=%d", tt.bits)
	}
}

func TestDataTypeForPDOBits(t *testing.T) {
	tests := []struct {
		bits uint16
		want uint16
	}{
		{0, DataTypeUnknown},
		{1, DataTypeBool},
		{2, DataTypeUnsigned8},
		{8, DataTypeUnsigned8},
		{9, DataTypeUnsigned16},
		{24, DataTypeUnsigned32},
		{48, DataTypeUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dataTypeForPDOBits(tt.bits), "bits=%d", tt.bits)
	}
}
