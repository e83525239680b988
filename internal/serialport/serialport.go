// Package serialport abstracts the host-to-adapter UART link (spec.md
// §4.3), generalizing the teacher's internal/serial.Port (a thin wrapper
// over github.com/tarm/serial) into the richer trait the USB adapter needs:
// open/closed state, a path, and a raw handle for diagnostics, alongside
// read/write.
package serialport

// Port is the minimal serial transport the USB adapter depends on. Real
// hardware is backed by Real (github.com/tarm/serial); tests use Fake.
type Port interface {
	// Write writes buf in full or returns an error; a short write without an
	// error never happens for a well-behaved implementation.
	Write(buf []byte) (int, error)
	// Read reads up to len(buf) bytes, blocking for at most timeoutMs
	// milliseconds. Returning (0, nil) means no data arrived within the
	// timeout; any other error is an I/O failure.
	Read(buf []byte, timeoutMs int) (int, error)
	IsOpen() bool
	Close() error
	Path() string
	RawHandle() uintptr
}
