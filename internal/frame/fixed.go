// Package frame implements the three Waveshare USB-CAN-A wire frame
// variants (spec.md §3/§4.1): FixedFrame, VariableFrame and ConfigFrame.
// Frames are state-first value types — no persistent wire buffer is kept;
// Serialize produces bytes on demand and never fails, while Deserialize is
// the single fallible constructor path (spec.md §9 drops the
// exception-and-Result dual API the C++ source carried during migration).
package frame

import (
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/wire"
)

const FixedFrameSize = 20

// CoreState is the pair of fields present on every frame variant.
type CoreState struct {
	CANVersion wire.CANVersion
	Type       wire.Type
}

// DataState is the CAN payload shared by FixedFrame and VariableFrame.
type DataState struct {
	Format wire.Format
	CANID  uint32
	DLC    uint8
	Data   [8]byte
}

// FixedFrame is always exactly 20 bytes on the wire (spec.md §4.1).
type FixedFrame struct {
	Core CoreState
	Data DataState
}

func maxIDFor(extended bool) uint32 {
	if extended {
		return 0x1FFFFFFF
	}
	return 0x7FF
}

func validateID(id uint32, extended bool) error {
	if id > maxIDFor(extended) {
		return coerrors.Newf(coerrors.KindBadID, "validate_id", "can id 0x%X exceeds range for extended=%v", id, extended)
	}
	return nil
}

// Serialize produces the 20-byte wire representation. Never fails.
func (f *FixedFrame) Serialize() []byte {
	buf := make([]byte, FixedFrameSize)
	buf[0] = wire.StartByte
	buf[1] = wire.HeaderByte
	buf[2] = byte(f.Core.Type)
	buf[3] = byte(f.Core.CANVersion)
	buf[4] = byte(f.Data.Format)
	wire.PutUint32LE(buf[5:9], f.Data.CANID)
	buf[9] = f.Data.DLC
	copy(buf[10:18], f.Data.Data[:])
	buf[18] = wire.ReservedByte
	buf[19] = wire.Checksum(buf, 2, 18)
	return buf
}

// Deserialize populates f from buf, overwriting any prior state. buf must be
// exactly FixedFrameSize bytes.
func (f *FixedFrame) Deserialize(buf []byte) error {
	const op = "fixed_frame.deserialize"
	if len(buf) != FixedFrameSize {
		return coerrors.Newf(coerrors.KindBadLength, op, "expected %d bytes, got %d", FixedFrameSize, len(buf))
	}
	if buf[0] != wire.StartByte {
		return coerrors.New(coerrors.KindBadStart, op)
	}
	if buf[1] != wire.HeaderByte {
		return coerrors.New(coerrors.KindBadHeader, op)
	}
	typ := wire.Type(buf[2])
	if typ != wire.TypeDataFixed {
		return coerrors.New(coerrors.KindBadType, op)
	}
	version := wire.CANVersion(buf[3])
	if version != wire.CANVersionStdFixed && version != wire.CANVersionExtFixed {
		return coerrors.New(coerrors.KindBadType, op)
	}
	format := wire.Format(buf[4])
	if format != wire.FormatDataFixed && format != wire.FormatRemoteFixed {
		return coerrors.New(coerrors.KindBadFormat, op)
	}
	dlc := buf[9]
	if dlc > 8 {
		return coerrors.New(coerrors.KindBadDLC, op)
	}
	id := wire.Uint32LE(buf[5:9])
	if err := validateID(id, version == wire.CANVersionExtFixed); err != nil {
		return coerrors.Wrap(op, err)
	}
	expected := wire.Checksum(buf, 2, 18)
	if expected != buf[19] {
		return coerrors.New(coerrors.KindBadChecksum, op)
	}

	f.Core.Type = typ
	f.Core.CANVersion = version
	f.Data.Format = format
	f.Data.CANID = id
	f.Data.DLC = dlc
	var data [8]byte
	copy(data[:], buf[10:18])
	f.Data.Data = data
	return nil
}
