// Package usbadapter implements the Waveshare USB-CAN-A framed I/O layer
// (spec.md §4.4) on top of a serialport.Port: whole-frame send, fixed-frame
// and variable-frame reassembly, and the concurrency discipline the bridge's
// two forwarding loops rely on to run without serializing on each other.
package usbadapter

import (
	"sync"
	"time"

	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/frame"
	"github.com/wsusbcan/bridge/internal/serialport"
	"github.com/wsusbcan/bridge/internal/wire"
)

// serializable is satisfied by FixedFrame, VariableFrame, and ConfigFrame.
type serializable interface {
	Serialize() []byte
}

// Adapter owns a serial port and exposes whole-frame send/receive. The
// shared-read lock below guards observable state (open/handle/path); the
// write and read mutexes are disjoint so a send and a receive can proceed on
// different goroutines at once, matching spec.md §4.4's concurrency rules.
type Adapter struct {
	stateMu sync.RWMutex
	port    serialport.Port
	opened  bool

	writeMu sync.Mutex
	readMu  sync.Mutex
}

// New wraps an already-open port.
func New(port serialport.Port) *Adapter {
	return &Adapter{port: port, opened: port.IsOpen()}
}

// IsOpen reports whether the underlying port is open.
func (a *Adapter) IsOpen() bool {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.opened && a.port.IsOpen()
}

// Path returns the underlying port's device path.
func (a *Adapter) Path() string {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()
	return a.port.Path()
}

// SendFrame serializes frame and writes it in full; any short write is an
// error, never silently retried.
func (a *Adapter) SendFrame(f serializable) error {
	const op = "usbadapter.send_frame"
	buf := f.Serialize()
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	n, err := a.port.Write(buf)
	if err != nil {
		return coerrors.Wrap(op, err)
	}
	if n != len(buf) {
		return coerrors.Newf(coerrors.KindDeviceWriteError, op, "short write: wrote %d of %d bytes", n, len(buf))
	}
	return nil
}

// ReceiveFixedFrame reads exactly frame.FixedFrameSize bytes, accumulating
// across several port.Read calls, within the overall timeout budget, then
// deserializes them.
func (a *Adapter) ReceiveFixedFrame(timeoutMs int) (*frame.FixedFrame, error) {
	const op = "usbadapter.receive_fixed_frame"
	a.readMu.Lock()
	defer a.readMu.Unlock()

	buf := make([]byte, 0, frame.FixedFrameSize)
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for len(buf) < frame.FixedFrameSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, coerrors.New(coerrors.KindTimeout, op)
		}
		chunk := make([]byte, frame.FixedFrameSize-len(buf))
		n, err := a.port.Read(chunk, int(remaining.Milliseconds())+1)
		if err != nil {
			return nil, coerrors.Wrap(op, err)
		}
		buf = append(buf, chunk[:n]...)
	}
	var f frame.FixedFrame
	if err := f.Deserialize(buf); err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	return &f, nil
}

const variableMaxSize = 15

// ReceiveVariableFrame reassembles a variable frame byte by byte: skip
// leading noise until 0xAA, then accumulate until an 0x55 END byte is
// observed, aborting with BadLength if the buffer exceeds 15 bytes first.
// The timeout is measured against the total wall time of reassembly, not
// per byte.
func (a *Adapter) ReceiveVariableFrame(timeoutMs int) (*frame.VariableFrame, error) {
	const op = "usbadapter.receive_variable_frame"
	a.readMu.Lock()
	defer a.readMu.Unlock()

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	var buf []byte
	started := false
	one := make([]byte, 1)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, coerrors.New(coerrors.KindTimeout, op)
		}
		n, err := a.port.Read(one, int(remaining.Milliseconds())+1)
		if err != nil {
			return nil, coerrors.Wrap(op, err)
		}
		if n == 0 {
			continue
		}
		b := one[0]
		if !started {
			if b != wire.StartByte {
				continue
			}
			started = true
			buf = append(buf, b)
			continue
		}
		buf = append(buf, b)
		if b == wire.HeaderByte {
			break
		}
		if len(buf) > variableMaxSize {
			return nil, coerrors.New(coerrors.KindBadLength, op)
		}
	}
	var f frame.VariableFrame
	if err := f.Deserialize(buf); err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	return &f, nil
}

// flusher is implemented by serialport.Real; Fake has no I/O to flush.
type flusher interface {
	Flush() error
}

// Flush acquires both exclusive mutexes before delegating to the port's
// flush primitive, guaranteeing no send or receive is in flight.
func (a *Adapter) Flush() error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.readMu.Lock()
	defer a.readMu.Unlock()
	if f, ok := a.port.(flusher); ok {
		return f.Flush()
	}
	return nil
}

// Close marks the adapter closed and closes the underlying port.
func (a *Adapter) Close() error {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.opened = false
	return a.port.Close()
}
