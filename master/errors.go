package master

import "errors"

var (
	// ErrNotInitialized indicates that the operation requires an initialized session.
	ErrNotInitialized = errors.New("master: session not initialized")

	// ErrInvalidArgument indicates a malformed argument.
	ErrInvalidArgument = errors.New("master: invalid argument")

	// ErrResourceBusy indicates that the network interface or frame storage is already owned.
	ErrResourceBusy = errors.New("master: resource busy")

	// ErrNoGroup indicates that the session has no device group.
	ErrNoGroup = errors.New("master: no device group")

	// ErrDeviceNotFound indicates a device ordinal outside the enumerated range.
	ErrDeviceNotFound = errors.New("master: device not found")
)

var (
	// ErrProtocol indicates an engine level failure such as a timeout or a refused transition.
	ErrProtocol = errors.New("master: protocol error")

	// ErrNotOperational indicates process-data access outside the OP state.
	ErrNotOperational = errors.New("master: group not operational")

	// ErrExchangeFailed indicates that the bulk process-data exchange failed.
	ErrExchangeFailed = errors.New("master: process data exchange failed")

	// ErrTopologyMismatch indicates that the discovered devices differ from the expected topology.
	ErrTopologyMismatch = errors.New("master: topology mismatch")
)

var (
	// ErrRetryExhausted indicates that the mailbox status could not be resolved within the attempt budget.
	ErrRetryExhausted = errors.New("master: mailbox retries exhausted")

	// ErrUnavailable indicates that the network is flagged unhealthy and the mailbox was not polled.
	ErrUnavailable = errors.New("master: network unavailable")
)
