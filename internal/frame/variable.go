package frame

import (
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/wire"
)

const (
	variableMinSize = 5
	variableMaxSize = 15
)

// VariableFrame is 5–15 bytes on the wire, framed by START/END bytes instead
// of a checksum (spec.md §4.1).
type VariableFrame struct {
	Core CoreState
	Data DataState
}

func idSize(extended bool) int {
	if extended {
		return 4
	}
	return 2
}

// typeByte encodes bits 7-6=11, bit5=ext, bit4=remote, bits3-0=dlc.
func typeByte(extended bool, remote bool, dlc uint8) byte {
	b := byte(0xC0)
	if extended {
		b |= 0x20
	}
	if remote {
		b |= 0x10
	}
	b |= dlc & 0x0F
	return b
}

// Serialize produces 1+1+id_size+dlc+1 bytes. Never fails.
func (f *VariableFrame) Serialize() []byte {
	extended := f.Core.CANVersion == wire.CANVersionExtVariable
	remote := f.Data.Format == wire.FormatRemoteVariable
	idSz := idSize(extended)
	dlc := f.Data.DLC
	size := 2 + idSz + int(dlc) + 1
	buf := make([]byte, size)
	buf[0] = wire.StartByte
	buf[1] = typeByte(extended, remote, dlc)
	if extended {
		wire.PutUint32LE(buf[2:6], f.Data.CANID)
	} else {
		wire.PutUint16LE(buf[2:4], uint16(f.Data.CANID))
	}
	copy(buf[2+idSz:2+idSz+int(dlc)], f.Data.Data[:dlc])
	buf[size-1] = wire.HeaderByte
	return buf
}

// Deserialize populates f from buf, overwriting any prior state.
func (f *VariableFrame) Deserialize(buf []byte) error {
	const op = "variable_frame.deserialize"
	if len(buf) < variableMinSize || len(buf) > variableMaxSize {
		return coerrors.Newf(coerrors.KindBadLength, op, "length %d out of [%d,%d]", len(buf), variableMinSize, variableMaxSize)
	}
	if buf[0] != wire.StartByte {
		return coerrors.New(coerrors.KindBadStart, op)
	}
	if buf[len(buf)-1] != wire.HeaderByte {
		return coerrors.New(coerrors.KindBadEnd, op)
	}
	tb := buf[1]
	if tb&0xC0 != 0xC0 {
		return coerrors.New(coerrors.KindBadType, op)
	}
	extended := tb&0x20 != 0
	remote := tb&0x10 != 0
	dlc := tb & 0x0F
	if dlc > 8 {
		return coerrors.New(coerrors.KindBadDLC, op)
	}
	idSz := idSize(extended)
	expectedLen := 2 + idSz + int(dlc) + 1
	if expectedLen != len(buf) {
		return coerrors.Newf(coerrors.KindBadLength, op, "type byte implies %d bytes, got %d", expectedLen, len(buf))
	}
	var id uint32
	if extended {
		id = wire.Uint32LE(buf[2:6])
	} else {
		id = uint32(wire.Uint16LE(buf[2:4]))
	}
	version := wire.CANVersionStdVariable
	if extended {
		version = wire.CANVersionExtVariable
	}
	if err := validateID(id, extended); err != nil {
		return coerrors.Wrap(op, err)
	}
	format := wire.FormatDataVariable
	if remote {
		format = wire.FormatRemoteVariable
	}

	f.Core.Type = wire.TypeDataVariable
	f.Core.CANVersion = version
	f.Data.Format = format
	f.Data.CANID = id
	f.Data.DLC = dlc
	var data [8]byte
	copy(data[:], buf[2+idSz:2+idSz+int(dlc)])
	f.Data.Data = data
	return nil
}
