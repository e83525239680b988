// Package cansocket abstracts the SocketCAN side of the bridge (spec.md
// §4.3), generalizing the teacher's internal/can.Frame + internal/socketcan
// raw-socket device into a CANSocket trait with a Real (linux, AF_CAN) and a
// Fake (in-memory) implementation.
package cansocket

// Flag bits packed into the high bits of Frame.ID, matching SocketCAN's
// struct can_frame can_id field exactly (<linux/can.h>).
const (
	ExtendedIDFlag  = 0x80000000 // CAN_EFF_FLAG
	RemoteFrameFlag = 0x40000000 // CAN_RTR_FLAG
	ErrorFrameFlag  = 0x20000000 // CAN_ERR_FLAG

	StandardIDMask = 0x7FF      // CAN_SFF_MASK
	ExtendedIDMask = 0x1FFFFFFF // CAN_EFF_MASK
)

// Frame is a classic CAN frame: ID carries the 11/29-bit identifier plus the
// EFF/RTR flags in its high bits, exactly as the kernel's struct can_frame
// does, so the Real socket can read/write it with no per-field translation.
type Frame struct {
	ID   uint32
	DLC  uint8
	Data [8]byte
}

// IsExtended reports whether the 29-bit extended-ID flag is set.
func (f Frame) IsExtended() bool { return f.ID&ExtendedIDFlag != 0 }

// IsRemote reports whether the remote-transmission-request flag is set.
func (f Frame) IsRemote() bool { return f.ID&RemoteFrameFlag != 0 }

// RawID returns the identifier with flag bits and any out-of-range bits
// stripped, masked to 11 or 29 bits depending on IsExtended.
func (f Frame) RawID() uint32 {
	if f.IsExtended() {
		return f.ID & ExtendedIDMask
	}
	return f.ID & StandardIDMask
}
