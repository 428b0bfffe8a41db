package capi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	useSim(t)

	h := Scan(testIface)
	require.NotZero(t, h)
	defer ScanFree(h)

	require.Equal(t, uint32(2), ScanDeviceCount(h))

	dev := make([]byte, DeviceSummarySize)
	require.Equal(t, int32(StatusOK), ScanGetDevice(h, 1, dev))
	assert.Equal(t, analogID, decodeIdentity(dev))
	assert.Equal(t, "EL3102", string(bytes.TrimRight(dev[16:80], "\x00")))
	assert.Equal(t, uint16(0x1001), binary.LittleEndian.Uint16(dev[80:]))
	assert.Equal(t, uint8(2), dev[84])
	assert.Equal(t, uint16(engine.MailboxCoE), binary.LittleEndian.Uint16(dev[86:]))
	assert.Equal(t, uint8(1), dev[88])

	require.Equal(t, uint32(0), ScanGetPDOCount(h, 0))
	require.Equal(t, uint32(1), ScanGetPDOCount(h, 1))

	pdo := make([]byte, PDOSummarySize)
	require.Equal(t, int32(StatusOK), ScanGetPDO(h, 1, 0, pdo))
	assert.Equal(t, uint16(0x1A00), binary.LittleEndian.Uint16(pdo[0:]))
	assert.Equal(t, uint8(2), pdo[2])
	assert.Equal(t, scan.SyncManagerInputs, pdo[3])

	require.Equal(t, uint32(2), ScanGetPDOEntryCount(h, 1, 0))
	entry := make([]byte, PDOEntrySummarySize)
	require.Equal(t, int32(StatusOK), ScanGetPDOEntry(h, 1, 0, 1, entry))
	assert.Equal(t, uint16(0x6010), binary.LittleEndian.Uint16(entry[0:]))
	assert.Equal(t, uint8(0x11), entry[2])
	assert.Equal(t, uint8(16), entry[3])
	assert.Equal(t, scan.DataTypeUnsigned16, binary.LittleEndian.Uint16(entry[4:]))
	assert.Equal(t, "Entry_0x6010_11", string(bytes.TrimRight(entry[6:], "\x00")))

	assert.Equal(t, int32(StatusInvalidArgument), ScanGetDevice(h, 2, dev))
	assert.Equal(t, int32(StatusInvalidArgument), ScanGetDevice(h, 0, dev[:10]))
	assert.Equal(t, int32(StatusInvalidArgument), ScanGetPDO(h, 0, 0, pdo))
	assert.Equal(t, int32(StatusInvalidArgument), ScanGetPDOEntry(h, 1, 0, 2, entry))

	need := ScanExport(h, nil)
	require.Positive(t, need)
	data := make([]byte, need)
	require.Equal(t, need, ScanExport(h, data))
	snap, err := scan.DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, []engine.Identity{couplerID, analogID}, snap.Identities())
}

func TestScan_Isolation(t *testing.T) {
	useSim(t)

	h := Scan(testIface)
	require.NotZero(t, h)
	ScanFree(h)

	// the scan left the shared storage to the session
	require.Equal(t, int32(StatusOK), Initialize(testIface, nil, 20, 0, 0, 0, 0))

	assert.Equal(t, Handle(0), Scan(testIface))
	assert.Contains(t, lastError(), "resource busy")
}

func TestScanFree(t *testing.T) {
	useSim(t)
	before := OpenSnapshots()

	h := Scan(testIface)
	require.NotZero(t, h)
	assert.Equal(t, before+1, OpenSnapshots())

	ScanFree(h)
	ScanFree(h)
	ScanFree(0)
	assert.Equal(t, before, OpenSnapshots())

	assert.Zero(t, ScanDeviceCount(h))
	assert.Zero(t, ScanGetPDOCount(h, 0))
	assert.Zero(t, ScanGetPDOEntryCount(h, 0, 0))
	assert.Equal(t, int32(StatusInvalidArgument), ScanGetDevice(h, 0, make([]byte, DeviceSummarySize)))
	assert.Equal(t, Handle(0), Scan("eth9"))
}
