package backend

import (
	"fmt"
	"net"
)

// FreePort asks the kernel for an unused loopback TCP port. The port is
// released before returning, so a racing process could still claim it.
func FreePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("allocate port: %w", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

func ensurePort(port *int) error {
	if *port != 0 {
		return nil
	}
	p, err := FreePort()
	if err != nil {
		return err
	}
	*port = p
	return nil
}
