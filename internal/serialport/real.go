package serialport

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"

	"github.com/wsusbcan/bridge/internal/coerrors"
)

// Real is the production Port backed by github.com/tarm/serial, exactly the
// library the teacher opens its USB device with in internal/serial/port.go.
type Real struct {
	path string
	port *serial.Port
	open atomic.Bool
}

// Open opens path at baud with a fixed per-read-syscall timeout. The USB
// adapter is responsible for accumulating several Read calls to honor a
// longer caller-supplied timeout, the same pattern the teacher's
// backend_serial.go RX loop uses around sp.Read(buf).
func Open(path string, baud int, readTimeout time.Duration) (*Real, error) {
	cfg := &serial.Config{Name: path, Baud: baud, ReadTimeout: readTimeout}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, coerrors.Newf(coerrors.KindDeviceNotFound, "serialport.open", "%s: %v", path, err)
	}
	r := &Real{path: path, port: p}
	r.open.Store(true)
	return r, nil
}

func (r *Real) Write(buf []byte) (int, error) {
	n, err := r.port.Write(buf)
	if err != nil {
		return n, coerrors.Newf(coerrors.KindDeviceWriteError, "serialport.write", "%v", err)
	}
	return n, nil
}

// Read performs one underlying read. timeoutMs is advisory: tarm/serial
// fixes its VTIME-equivalent at Open time, so a single call honors the
// configured ReadTimeout; the caller accumulates across calls for a longer
// overall deadline, as spec.md §4.4 requires.
func (r *Real) Read(buf []byte, timeoutMs int) (int, error) {
	n, err := r.port.Read(buf)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return n, coerrors.Newf(coerrors.KindDeviceReadError, "serialport.read", "%v", err)
	}
	return n, nil
}

func (r *Real) IsOpen() bool { return r.open.Load() }

func (r *Real) Close() error {
	if !r.open.CompareAndSwap(true, false) {
		return nil
	}
	if err := r.port.Close(); err != nil {
		return coerrors.Newf(coerrors.KindDeviceWriteError, "serialport.close", "%v", err)
	}
	return nil
}

func (r *Real) Path() string { return r.path }

// RawHandle has no meaningful value for tarm/serial's abstraction on all
// platforms; 0 signals "unavailable" rather than guessing at an fd.
func (r *Real) RawHandle() uintptr { return 0 }

// Flush flushes the underlying port when supported. tarm/serial.Port exposes
// Flush() error directly.
func (r *Real) Flush() error {
	if err := r.port.Flush(); err != nil {
		return coerrors.Newf(coerrors.KindDeviceWriteError, "serialport.flush", "%v", err)
	}
	return nil
}
