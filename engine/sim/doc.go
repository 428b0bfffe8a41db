// Package sim implements an in-process EtherCAT segment simulator behind the engine interfaces.
//
// Every network primitive (enumeration, state transitions, SDO, register and EEPROM access, the bulk
// exchange) is marshalled as a request to the loop running in [engine.Master.Run], which plays the role
// of the wire owner. Requests that are not answered within the PDU timeout are retried and finally fail
// with [engine.ErrTimeout], so a master whose Run loop is not running, or whose link is down, behaves like
// a master talking to a dead segment.
//
// A [Driver] holds named segments, each a chain of devices described by [DeviceSpec]. The [Segment]
// returned by [Driver.Segment] exposes fault injection and observation hooks for tests.
package sim
