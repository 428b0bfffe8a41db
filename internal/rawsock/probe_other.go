//go:build !linux

package rawsock

// Available reports whether raw link-layer sockets can be opened. Only Linux is probed.
func Available() bool {
	return false
}
