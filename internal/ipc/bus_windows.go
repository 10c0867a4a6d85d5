//go:build windows

package ipc

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// Listen binds the single-instance bus named pipe at path. The security
// descriptor restricts access to the owner, matching the per-user path
// returned by DefaultSocketPath.
func Listen(path string) (net.Listener, error) {
	cfg := &winio.PipeConfig{
		SecurityDescriptor: "D:P(A;;GA;;;OW)",
		MessageMode:        false,
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	}
	return winio.ListenPipe(path, cfg)
}

// Dial connects to an already-running instance's bus pipe.
func Dial(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}
