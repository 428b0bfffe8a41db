package capi

import (
	"errors"

	"github.com/arloliu/go-ecat/master"
)

// Status is the result code of a boundary call. Zero or positive values are successful results.
type Status int32

const (
	StatusOK               Status = 0
	StatusNotInitialized   Status = -1
	StatusInvalidArgument  Status = -2
	StatusResourceBusy     Status = -3
	StatusProtocolError    Status = -4
	StatusNotOperational   Status = -5
	StatusDeviceNotFound   Status = -6
	StatusNoGroup          Status = -7
	StatusExchangeFailed   Status = -8
	StatusRetryExhausted   Status = -9
	StatusUnavailable      Status = -10
	StatusTopologyMismatch Status = -11
	StatusNoRecord         Status = -12
)

// Mailbox check results.
const (
	MailboxEmpty   int32 = 0
	MailboxNewMail int32 = 1
)

var statusByErr = []struct {
	err    error
	status Status
}{
	{master.ErrNotInitialized, StatusNotInitialized},
	{master.ErrInvalidArgument, StatusInvalidArgument},
	{master.ErrResourceBusy, StatusResourceBusy},
	{master.ErrNotOperational, StatusNotOperational},
	{master.ErrDeviceNotFound, StatusDeviceNotFound},
	{master.ErrNoGroup, StatusNoGroup},
	{master.ErrExchangeFailed, StatusExchangeFailed},
	{master.ErrRetryExhausted, StatusRetryExhausted},
	{master.ErrUnavailable, StatusUnavailable},
	{master.ErrTopologyMismatch, StatusTopologyMismatch},
	{master.ErrProtocol, StatusProtocolError},
}

// StatusOf classifies err. A nil err is StatusOK; an unclassified error is a protocol error.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}

	for _, m := range statusByErr {
		if errors.Is(err, m.err) {
			return m.status
		}
	}

	return StatusProtocolError
}

// String returns string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotInitialized:
		return "not initialized"
	case StatusInvalidArgument:
		return "invalid argument"
	case StatusResourceBusy:
		return "resource busy"
	case StatusProtocolError:
		return "protocol error"
	case StatusNotOperational:
		return "not operational"
	case StatusDeviceNotFound:
		return "device not found"
	case StatusNoGroup:
		return "no group"
	case StatusExchangeFailed:
		return "exchange failed"
	case StatusRetryExhausted:
		return "retry exhausted"
	case StatusUnavailable:
		return "unavailable"
	case StatusTopologyMismatch:
		return "topology mismatch"
	case StatusNoRecord:
		return "no record"
	default:
		if s > 0 {
			return "ok"
		}
		return "unknown"
	}
}
