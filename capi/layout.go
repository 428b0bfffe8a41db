package capi

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/go-ecat/diag"
	"github.com/arloliu/go-ecat/engine"
	"github.com/arloliu/go-ecat/master"
	"github.com/arloliu/go-ecat/scan"
)

// Record sizes in bytes. All multi-byte fields are little endian.
const (
	IdentitySize        = 16
	InitCommandSize     = 12
	DeviceSummarySize   = 92
	PDOSummarySize      = 68
	PDOEntrySummarySize = 70
	EmergencyRecordSize = 6
	NameSize            = 64 // NUL terminated, truncated to NameSize-1 bytes
)

// Identity record:
//
//	0  u32 vendor id
//	4  u32 product code
//	8  u32 revision
//	12 u32 serial number
func putIdentity(b []byte, id engine.Identity) {
	binary.LittleEndian.PutUint32(b[0:], id.VendorID)
	binary.LittleEndian.PutUint32(b[4:], id.ProductCode)
	binary.LittleEndian.PutUint32(b[8:], id.Revision)
	binary.LittleEndian.PutUint32(b[12:], id.SerialNumber)
}

func decodeIdentity(b []byte) engine.Identity {
	return engine.Identity{
		VendorID:     binary.LittleEndian.Uint32(b[0:]),
		ProductCode:  binary.LittleEndian.Uint32(b[4:]),
		Revision:     binary.LittleEndian.Uint32(b[8:]),
		SerialNumber: binary.LittleEndian.Uint32(b[12:]),
	}
}

// decodeIdentities decodes a packed array of identity records.
func decodeIdentities(b []byte) ([]engine.Identity, error) {
	if len(b)%IdentitySize != 0 {
		return nil, fmt.Errorf("%w: identity records of %d bytes", master.ErrInvalidArgument, len(b))
	}

	ids := make([]engine.Identity, 0, len(b)/IdentitySize)
	for off := 0; off < len(b); off += IdentitySize {
		ids = append(ids, decodeIdentity(b[off:off+IdentitySize]))
	}

	return ids, nil
}

// Init command record:
//
//	0  u16 device ordinal
//	2  u8  kind, 0 SDO, 1 register
//	3  pad
//	4  u16 index or register address
//	6  u8  sub-index
//	7  [4] value
//	11 pad
func decodeInitCommand(b []byte) (cmd master.InitCommand, kind uint8) {
	kind = b[2]
	cmd = master.InitCommand{
		Device:   binary.LittleEndian.Uint16(b[0:]),
		Kind:     master.InitCommandKind(kind),
		Index:    binary.LittleEndian.Uint16(b[4:]),
		SubIndex: b[6],
	}
	copy(cmd.Value[:], b[7:11])

	return cmd, kind
}

// PutInitCommand encodes cmd into an init command record.
func PutInitCommand(b []byte, cmd master.InitCommand) {
	clear(b[:InitCommandSize])
	binary.LittleEndian.PutUint16(b[0:], cmd.Device)
	b[2] = uint8(cmd.Kind)
	binary.LittleEndian.PutUint16(b[4:], cmd.Index)
	b[6] = cmd.SubIndex
	copy(b[7:11], cmd.Value[:])
}

// PutIdentity encodes id into an identity record.
func PutIdentity(b []byte, id engine.Identity) {
	putIdentity(b, id)
}

// Device summary record:
//
//	0  identity record
//	16 [64] name
//	80 u16 configured address
//	82 u16 alias address
//	84 u8  port count
//	85 pad
//	86 u16 mailbox protocols
//	88 u8  DC support, 0 or 1
//	89 pad[3]
func putDeviceSummary(b []byte, d scan.Device) {
	clear(b[:DeviceSummarySize])
	putIdentity(b[0:], d.Identity)
	putName(b[16:16+NameSize], d.Name)
	binary.LittleEndian.PutUint16(b[80:], d.ConfiguredAddress)
	binary.LittleEndian.PutUint16(b[82:], d.AliasAddress)
	b[84] = d.PortCount
	binary.LittleEndian.PutUint16(b[86:], uint16(d.MailboxProtocols))
	if d.DC {
		b[88] = 1
	}
}

// PDO summary record:
//
//	0 u16 index
//	2 u8  entry count
//	3 u8  sync manager
//	4 [64] name
func putPDOSummary(b []byte, p scan.PDO, entries int) {
	clear(b[:PDOSummarySize])
	binary.LittleEndian.PutUint16(b[0:], p.Index)
	b[2] = uint8(min(entries, 0xFF))
	b[3] = p.SyncManager
	putName(b[4:4+NameSize], p.Name)
}

// PDO entry summary record:
//
//	0 u16 index
//	2 u8  sub-index
//	3 u8  bit length
//	4 u16 data type
//	6 [64] name
func putPDOEntrySummary(b []byte, e scan.Entry) {
	clear(b[:PDOEntrySummarySize])
	binary.LittleEndian.PutUint16(b[0:], e.Index)
	b[2] = e.SubIndex
	b[3] = e.BitLen
	binary.LittleEndian.PutUint16(b[4:], e.DataType)
	putName(b[6:6+NameSize], e.Name)
}

// Emergency record:
//
//	0 u16 device ordinal
//	2 u16 error code
//	4 u8  error register
//	5 pad
func putEmergency(b []byte, e diag.Emergency) {
	clear(b[:EmergencyRecordSize])
	binary.LittleEndian.PutUint16(b[0:], e.Device)
	binary.LittleEndian.PutUint16(b[2:], e.ErrorCode)
	b[4] = e.ErrorRegister
}

// putName writes name NUL terminated into the fixed-size field b.
func putName(b []byte, name string) {
	clear(b)
	copy(b[:len(b)-1], name)
}
