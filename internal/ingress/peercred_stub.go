//go:build !linux

package ingress

import "net"

// peerCredentials mirrors the Linux SO_PEERCRED shape but stays empty on
// platforms without it (the simulated host only ships for Linux, but the
// module should still build elsewhere for development).
type peerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

func peerCredsOf(conn net.Conn) (peerCredentials, bool) {
	return peerCredentials{}, false
}
