// Package engine defines the boundary between the go-ecat orchestration layer and an EtherCAT wire
// protocol engine.
//
// The engine owns frame construction, datagram multiplexing, raw socket transmission, the
// CANopen-over-EtherCAT mailbox codec and EEPROM SII parsing. The orchestration layer only sequences the
// primitives declared here:
//
//   - [Driver] opens a [Master] bound to a network interface, either on the shared frame storage
//     (which can be split only once) or on private, isolated storage.
//   - [Master] owns the wire loop ([Master.Run]) and enumerates a single [Group] of devices.
//   - [Group] performs AL state transitions and the bulk process-data exchange.
//   - [Device] exposes SDO, register and EEPROM access and the device's process-data areas.
//
// Register addresses and bit masks used by the orchestration layer follow the ESC register map
// (ETG.1000.4). The package also provides [MockDevice], a testify mock for scripting device behaviour.
package engine
