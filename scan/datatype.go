package scan

// CANopen basic data type indices.
const (
	DataTypeUnknown    uint16 = 0x0000
	DataTypeBool       uint16 = 0x0001
	DataTypeUnsigned8  uint16 = 0x0005
	DataTypeUnsigned16 uint16 = 0x0006
	DataTypeUnsigned32 uint16 = 0x0007
	DataTypeUnsigned64 uint16 = 0x001B
)

// DataTypeForBitLen infers the data type of a mapped object from its exact bit length.
func DataTypeForBitLen(bits uint8) uint16 {
	switch bits {
	case 1:
		return DataTypeBool
	case 8:
		return DataTypeUnsigned8
	case 16:
		return DataTypeUnsigned16
	case 32:
		return DataTypeUnsigned32
	case 64:
		return DataTypeUnsigned64
	default:
		return DataTypeUnknown
	}
}

// dataTypeForPDOBits infers the data type of a whole EEPROM PDO, rounding up to the next unsigned width.
func dataTypeForPDOBits(bits uint16) uint16 {
	switch {
	case bits == 1:
		return DataTypeBool
	case bits == 0:
		return DataTypeUnknown
	case bits <= 8:
		return DataTypeUnsigned8
	case bits <= 16:
		return DataTypeUnsigned16
	case bits <= 32:
		return DataTypeUnsigned32
	default:
		return DataTypeUnknown
	}
}
