//go:build !linux

package cansocket

import "github.com/wsusbcan/bridge/internal/coerrors"

// Real is a non-functional stand-in on non-linux builds, where AF_CAN raw
// sockets don't exist; it exists only so the module compiles for local
// development off-target. Open always fails.
type Real struct{}

func Open(iface string) (*Real, error) {
	return nil, coerrors.New(coerrors.KindDeviceNotFound, "cansocket.open")
}

func (r *Real) Send(fr Frame) error                       { return coerrors.New(coerrors.KindDeviceNotOpen, "cansocket.send") }
func (r *Real) Receive(timeoutMs int) (Frame, bool, error) { return Frame{}, false, coerrors.New(coerrors.KindDeviceNotOpen, "cansocket.receive") }
func (r *Real) IsOpen() bool                               { return false }
func (r *Real) Close() error                               { return nil }
func (r *Real) InterfaceName() string                      { return "" }
func (r *Real) RawHandle() uintptr                         { return 0 }

var _ CANSocket = (*Real)(nil)
