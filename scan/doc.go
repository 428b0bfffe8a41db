// Package scan discovers the devices of an EtherCAT segment and their process-data layout.
//
// Discover opens an isolated engine handle with its own frame storage, runs the handle's wire loop
// concurrently with the discovery logic and stops the loop as soon as discovery completes. For every
// device it recovers the PDO layout from the CANopen PDO assignment objects (0x1C12 for SM2 outputs,
// 0x1C13 for SM3 inputs) and their mapping objects, falling back to the PDO categories of the device
// EEPROM. The result is an immutable [Snapshot].
package scan
