// Package diag holds the single-slot diagnostic state of a master: the last error message and the last
// CoE emergency record.
//
// Both slots are overwritten, never appended, and reading them does not clear them. A process normally
// uses the shared Default channel so that diagnostics survive across sessions and scans.
package diag

import (
	"sync"
)

// Emergency is a CoE emergency record reported by a device.
type Emergency struct {
	// Device is the ordinal of the device that raised the emergency.
	Device uint16
	// ErrorCode is the CoE emergency error code.
	ErrorCode uint16
	// ErrorRegister is the value of object 0x1001 at the time of the emergency.
	ErrorRegister uint8
}

// Channel stores the last error message and last emergency record.
//
// The zero value is ready to use.
type Channel struct {
	mu        sync.Mutex
	lastErr   string
	emergency *Emergency
}

var defaultChannel = &Channel{}

// Default returns the process-wide diagnostic channel.
func Default() *Channel {
	return defaultChannel
}

// SetError overwrites the last error slot with err's message. A nil err is ignored.
func (c *Channel) SetError(err error) {
	if err == nil {
		return
	}
	c.SetErrorString(err.Error())
}

// SetErrorString overwrites the last error slot with msg.
func (c *Channel) SetErrorString(msg string) {
	c.mu.Lock()
	c.lastErr = msg
	c.mu.Unlock()
}

// LastError returns the last error message, or an empty string when none was recorded.
func (c *Channel) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lastErr
}

// CopyLastError copies the last error message into buf and returns the number of bytes copied.
// The message is truncated to len(buf); no terminator is written.
func (c *Channel) CopyLastError(buf []byte) int {
	if len(buf) == 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return copy(buf, c.lastErr)
}

// SetEmergency overwrites the last emergency slot.
func (c *Channel) SetEmergency(e Emergency) {
	c.mu.Lock()
	c.emergency = &e
	c.mu.Unlock()
}

// LastEmergency returns the last emergency record and whether one is present.
func (c *Channel) LastEmergency() (Emergency, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.emergency == nil {
		return Emergency{}, false
	}

	return *c.emergency, true
}

// ClearEmergency empties the last emergency slot.
func (c *Channel) ClearEmergency() {
	c.mu.Lock()
	c.emergency = nil
	c.mu.Unlock()
}
