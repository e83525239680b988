//go:build linux

package cansocket

import (
	"encoding/binary"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wsusbcan/bridge/internal/coerrors"
)

// Real is a raw AF_CAN socket, adapted from the teacher's
// internal/socketcan/device.go: same socket/bind sequence, generalized to
// satisfy the CANSocket trait (open/close state, per-call receive timeout)
// the bridge needs instead of the teacher's hardwired blocking reads.
type Real struct {
	fd    int
	iface string
	open  atomic.Bool
}

// Open binds a raw CAN_RAW socket to iface, exactly as the teacher's
// socketcan.Open does.
func Open(iface string) (*Real, error) {
	const op = "cansocket.open"
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, coerrors.Newf(coerrors.KindDeviceNotFound, op, "socket(AF_CAN): %v", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil && err != unix.ENOPROTOOPT {
		_ = unix.Close(fd)
		return nil, coerrors.Newf(coerrors.KindDeviceConfigError, op, "disable CAN FD: %v", err)
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, coerrors.Newf(coerrors.KindDeviceNotFound, op, "if %q: %v", iface, err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		_ = unix.Close(fd)
		return nil, coerrors.Newf(coerrors.KindDeviceConfigError, op, "bind(can@%s): %v", iface, err)
	}
	r := &Real{fd: fd, iface: iface}
	r.open.Store(true)
	return r, nil
}

// Send writes one classic CAN frame in the kernel's struct can_frame layout:
// can_id u32 [0:4], can_dlc u8 [4], pad [5:8], data [8:16].
func (r *Real) Send(fr Frame) error {
	var buf [unix.CAN_MTU]byte
	binary.LittleEndian.PutUint32(buf[0:4], fr.ID)
	buf[4] = fr.DLC
	copy(buf[8:], fr.Data[:fr.DLC])
	if _, err := unix.Write(r.fd, buf[:]); err != nil {
		return coerrors.Newf(coerrors.KindDeviceWriteError, "cansocket.send", "%v", err)
	}
	return nil
}

// Receive sets a per-call SO_RCVTIMEO and reads one frame, returning
// (Frame{}, false, nil) when the kernel reports the timeout elapsed.
func (r *Real) Receive(timeoutMs int) (Frame, bool, error) {
	const op = "cansocket.receive"
	tv := unix.NsecToTimeval((time.Duration(timeoutMs) * time.Millisecond).Nanoseconds())
	if err := unix.SetsockoptTimeval(r.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return Frame{}, false, coerrors.Newf(coerrors.KindDeviceConfigError, op, "%v", err)
	}
	var buf [unix.CAN_MTU]byte
	n, err := unix.Read(r.fd, buf[:])
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return Frame{}, false, nil
	}
	if err != nil {
		return Frame{}, false, coerrors.Newf(coerrors.KindDeviceReadError, op, "%v", err)
	}
	if n != unix.CAN_MTU {
		return Frame{}, false, coerrors.Newf(coerrors.KindBadLength, op, "short read: %d", n)
	}
	dlc := buf[4]
	if dlc > 8 {
		dlc = 8
	}
	fr := Frame{ID: binary.LittleEndian.Uint32(buf[0:4]), DLC: dlc}
	copy(fr.Data[:], buf[8:8+dlc])
	return fr, true, nil
}

func (r *Real) IsOpen() bool { return r.open.Load() }

func (r *Real) Close() error {
	if !r.open.CompareAndSwap(true, false) {
		return nil
	}
	if err := unix.Close(r.fd); err != nil {
		return coerrors.Newf(coerrors.KindDeviceWriteError, "cansocket.close", "%v", err)
	}
	return nil
}

func (r *Real) InterfaceName() string { return r.iface }

func (r *Real) RawHandle() uintptr { return uintptr(r.fd) }

var _ CANSocket = (*Real)(nil)
