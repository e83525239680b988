package frame

import (
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/wire"
)

const ConfigFrameSize = 20

// ConfigState carries the adapter bus-configuration fields.
type ConfigState struct {
	BaudRate wire.CANBaud
	CANMode  wire.CANMode
	AutoRTX  wire.RTX
	Filter   uint32
	Mask     uint32
}

// ConfigFrame is always exactly 20 bytes on the wire. Filter and Mask are
// big-endian — the one field group on the whole bus that isn't
// little-endian; spec.md §4.1/§9 require preserving this bit-exactly.
type ConfigFrame struct {
	Core   CoreState
	Config ConfigState
}

// Serialize produces the 20-byte wire representation. Never fails.
func (f *ConfigFrame) Serialize() []byte {
	buf := make([]byte, ConfigFrameSize)
	buf[0] = wire.StartByte
	buf[1] = wire.HeaderByte
	buf[2] = byte(f.Core.Type)
	buf[3] = byte(f.Config.BaudRate)
	buf[4] = byte(f.Core.CANVersion)
	wire.PutUint32BE(buf[5:9], f.Config.Filter)
	wire.PutUint32BE(buf[9:13], f.Config.Mask)
	buf[13] = byte(f.Config.CANMode)
	buf[14] = byte(f.Config.AutoRTX)
	// buf[15:19] stay at ReservedByte (zero value).
	buf[19] = wire.Checksum(buf, 2, 18)
	return buf
}

// Deserialize populates f from buf, overwriting any prior state.
func (f *ConfigFrame) Deserialize(buf []byte) error {
	const op = "config_frame.deserialize"
	if len(buf) != ConfigFrameSize {
		return coerrors.Newf(coerrors.KindBadLength, op, "expected %d bytes, got %d", ConfigFrameSize, len(buf))
	}
	if buf[0] != wire.StartByte {
		return coerrors.New(coerrors.KindBadStart, op)
	}
	if buf[1] != wire.HeaderByte {
		return coerrors.New(coerrors.KindBadHeader, op)
	}
	typ := wire.Type(buf[2])
	if typ != wire.TypeConfFixed && typ != wire.TypeConfVariable {
		return coerrors.New(coerrors.KindBadType, op)
	}
	baud := wire.CANBaud(buf[3])
	if !baud.Valid() {
		return coerrors.New(coerrors.KindBadCanBaud, op)
	}
	version := wire.CANVersion(buf[4])
	if version != wire.CANVersionStdFixed && version != wire.CANVersionExtFixed {
		return coerrors.New(coerrors.KindBadType, op)
	}
	mode := wire.CANMode(buf[13])
	if !mode.Valid() {
		return coerrors.New(coerrors.KindBadCanMode, op)
	}
	rtx := wire.RTX(buf[14])
	if !rtx.Valid() {
		return coerrors.New(coerrors.KindBadRTX, op)
	}
	expected := wire.Checksum(buf, 2, 18)
	if expected != buf[19] {
		return coerrors.New(coerrors.KindBadChecksum, op)
	}

	f.Core.Type = typ
	f.Core.CANVersion = version
	f.Config.BaudRate = baud
	f.Config.Filter = wire.Uint32BE(buf[5:9])
	f.Config.Mask = wire.Uint32BE(buf[9:13])
	f.Config.CANMode = mode
	f.Config.AutoRTX = rtx
	return nil
}
