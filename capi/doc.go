// Package capi is the flat, call-style boundary of the master: one process-wide session driven through
// plain scalars, raw byte buffers and fixed-size little-endian records. Every function reports failures
// as a negative Status and mirrors the cause into the last error slot.
//
// The functions are intended to be re-exported unchanged by a thin cgo shim.
package capi
