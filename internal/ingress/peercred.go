//go:build linux

package ingress

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials looks up the PID/UID/GID of the process on the other end
// of a Unix-domain stream socket via SO_PEERCRED, used only for logging —
// never for authorization. Trust is whatever the socket's filesystem
// permissions already grant.
type peerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

func peerCredsOf(conn net.Conn) (peerCredentials, bool) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return peerCredentials{}, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return peerCredentials{}, false
	}
	var cred *unix.Ucred
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		cred, sockErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || sockErr != nil || cred == nil {
		return peerCredentials{}, false
	}
	return peerCredentials{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, true
}
