package capi

import (
	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/master"
)

// Scan discovers the devices on iface and returns a handle to the snapshot, or the null handle on
// failure. The caller owns the handle and releases it with ScanFree.
func Scan(iface string) Handle {
	cfg, err := master.NewConfig(iface)
	if err != nil {
		diag.Default().SetError(err)
		return 0
	}

	snap, err := current().Scan(cfg)
	if err != nil {
		return 0
	}

	return registerSnapshot(snap)
}

// ScanDeviceCount returns the number of devices of a snapshot, 0 for an unknown handle.
func ScanDeviceCount(h Handle) uint32 {
	snap, ok := lookupSnapshot(h)
	if !ok {
		return 0
	}

	return uint32(snap.Len())
}

// ScanGetDevice writes the device summary record of a device into out.
func ScanGetDevice(h Handle, device uint32, out []byte) int32 {
	if len(out) < DeviceSummarySize {
		return invalid("device summary buffer of %d bytes", len(out))
	}
	snap, ok := lookupSnapshot(h)
	if !ok {
		return invalid("unknown snapshot handle %d", h)
	}

	d, ok := snap.Device(int(device))
	if !ok {
		return invalid("device %d outside snapshot of %d devices", device, snap.Len())
	}
	putDeviceSummary(out, d)

	return int32(StatusOK)
}

// ScanGetPDOCount returns the number of PDOs of a device, 0 when out of range.
func ScanGetPDOCount(h Handle, device uint32) uint32 {
	snap, ok := lookupSnapshot(h)
	if !ok {
		return 0
	}

	return uint32(snap.PDOCount(int(device)))
}

// ScanGetPDO writes the PDO summary record of a device's PDO into out.
func ScanGetPDO(h Handle, device uint32, pdo uint32, out []byte) int32 {
	if len(out) < PDOSummarySize {
		return invalid("pdo summary buffer of %d bytes", len(out))
	}
	snap, ok := lookupSnapshot(h)
	if !ok {
		return invalid("unknown snapshot handle %d", h)
	}

	p, ok := snap.PDO(int(device), int(pdo))
	if !ok {
		return invalid("pdo %d of device %d not in snapshot", pdo, device)
	}
	putPDOSummary(out, p, snap.EntryCount(int(device), int(pdo)))

	return int32(StatusOK)
}

// ScanGetPDOEntryCount returns the number of entries of a PDO, 0 when out of range.
func ScanGetPDOEntryCount(h Handle, device uint32, pdo uint32) uint32 {
	snap, ok := lookupSnapshot(h)
	if !ok {
		return 0
	}

	return uint32(snap.EntryCount(int(device), int(pdo)))
}

// ScanGetPDOEntry writes the entry summary record of a PDO entry into out.
func ScanGetPDOEntry(h Handle, device uint32, pdo uint32, entry uint32, out []byte) int32 {
	if len(out) < PDOEntrySummarySize {
		return invalid("pdo entry summary buffer of %d bytes", len(out))
	}
	snap, ok := lookupSnapshot(h)
	if !ok {
		return invalid("unknown snapshot handle %d", h)
	}

	e, ok := snap.Entry(int(device), int(pdo), int(entry))
	if !ok {
		return invalid("entry %d of pdo %d of device %d not in snapshot", entry, pdo, device)
	}
	putPDOEntrySummary(out, e)

	return int32(StatusOK)
}

// ScanExport writes the CBOR encoding of a snapshot into buf and returns its length. With a buf too
// small, nothing is copied and the required length is returned.
func ScanExport(h Handle, buf []byte) int32 {
	snap, ok := lookupSnapshot(h)
	if !ok {
		return invalid("unknown snapshot handle %d", h)
	}

	data, err := snap.MarshalBinary()
	if err != nil {
		diag.Default().SetError(err)
		return int32(StatusProtocolError)
	}
	if len(buf) < len(data) {
		return int32(len(data))
	}

	return int32(copy(buf, data))
}
