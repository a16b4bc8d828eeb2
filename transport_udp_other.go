//go:build !unix

package mqttsn

import "syscall"

// Broadcast permission is left to the platform default.
func enableBroadcast(_, _ string, _ syscall.RawConn) error {
	return nil
}
