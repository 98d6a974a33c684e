package modem

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	defaultBaud = 115200
	// readTimeout bounds every blocking port read. A quiet line returns a
	// zero-byte read after this long instead of hanging forever.
	readTimeout = 5 * time.Second
)

// Port is the byte-oriented serial channel the driver speaks over. A read
// that times out must return (0, nil) so callers can tell silence from a
// broken channel.
type Port interface {
	io.ReadWriteCloser
}

// Open opens the modem's serial device. Baud 0 selects the default 115200.
func Open(device string, baud int) (Port, error) {
	if baud <= 0 {
		baud = defaultBaud
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("modem: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("modem: set read timeout: %w", err)
	}
	return port, nil
}
