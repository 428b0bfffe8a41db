//go:build linux

package rawsock

import "golang.org/x/sys/unix"

// Available reports whether the process may open an AF_PACKET raw socket, which usually requires
// CAP_NET_RAW.
func Available() bool {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return false
	}
	_ = unix.Close(fd)

	return true
}

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}
