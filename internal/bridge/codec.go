package bridge

import (
	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/frame"
	"github.com/wsusbcan/bridge/internal/wire"
)

// toCANFrame converts a VariableFrame to the SocketCAN wire layout
// (spec.md §4.5's can_frame mapping): EXTENDED_ID_FLAG set iff the variable
// frame's can_version is EXT, REMOTE_FRAME_FLAG set iff the format is
// REMOTE_VARIABLE, data copied only for data frames.
func toCANFrame(vf *frame.VariableFrame) (cansocket.Frame, error) {
	const op = "bridge.to_can_frame"
	if vf.Data.DLC > 8 {
		return cansocket.Frame{}, coerrors.New(coerrors.KindBadDLC, op)
	}
	id := vf.Data.CANID
	if vf.Core.CANVersion == wire.CANVersionExtVariable {
		id |= cansocket.ExtendedIDFlag
	}
	remote := vf.Data.Format == wire.FormatRemoteVariable
	if remote {
		id |= cansocket.RemoteFrameFlag
	}
	fr := cansocket.Frame{ID: id, DLC: vf.Data.DLC}
	if !remote {
		fr.Data = vf.Data.Data
	}
	return fr, nil
}

// fromCANFrame converts a SocketCAN frame to a VariableFrame. Remote frames
// deserialize with an empty data payload regardless of the socket frame's
// DLC — the VariableFrameBuilder derives DLC from the (empty) data it is
// given, so a remote frame's original DLC is not preserved. This is the
// lossy reduction spec.md §4.5/§9 calls out explicitly.
func fromCANFrame(fr cansocket.Frame) (*frame.VariableFrame, error) {
	const op = "bridge.from_can_frame"
	if fr.DLC > 8 {
		return nil, coerrors.New(coerrors.KindBadDLC, op)
	}
	extended := fr.IsExtended()
	remote := fr.IsRemote()

	version := wire.CANVersionStdVariable
	if extended {
		version = wire.CANVersionExtVariable
	}
	format := wire.FormatDataVariable
	if remote {
		format = wire.FormatRemoteVariable
	}

	data := fr.Data[:fr.DLC]
	if remote {
		data = nil
	}

	b := frame.NewVariableFrameBuilder().
		WithCANVersion(version).
		WithFormat(format).
		WithID(fr.RawID()).
		WithData(data)
	vf, err := b.Build()
	if err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	return vf, nil
}
