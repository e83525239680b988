package frame

import (
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/wire"
)

// FixedFrameBuilder fluently constructs a FixedFrame, applying the defaults
// from spec.md §4.2: can_version=STD_FIXED, format=DATA_FIXED, type defaults
// to DATA_FIXED. Build validates and is usable either as a one-shot consumer
// (discard the builder after) or repeatedly (state survives Build calls).
type FixedFrameBuilder struct {
	canVersion *wire.CANVersion
	format     *wire.Format
	id         *uint32
	data       []byte
}

func NewFixedFrameBuilder() *FixedFrameBuilder { return &FixedFrameBuilder{} }

func (b *FixedFrameBuilder) WithCANVersion(v wire.CANVersion) *FixedFrameBuilder {
	b.canVersion = &v
	return b
}

func (b *FixedFrameBuilder) WithFormat(f wire.Format) *FixedFrameBuilder {
	b.format = &f
	return b
}

func (b *FixedFrameBuilder) WithID(id uint32) *FixedFrameBuilder {
	b.id = &id
	return b
}

func (b *FixedFrameBuilder) WithData(data []byte) *FixedFrameBuilder {
	b.data = data
	return b
}

// Build validates the accumulated state and returns a new FixedFrame,
// leaving the builder untouched for reuse.
func (b *FixedFrameBuilder) Build() (*FixedFrame, error) {
	const op = "fixed_frame_builder.build"
	if b.id == nil {
		return nil, coerrors.New(coerrors.KindMissingField, op)
	}
	if len(b.data) > 8 {
		return nil, coerrors.New(coerrors.KindBadDLC, op)
	}
	version := wire.CANVersionStdFixed
	if b.canVersion != nil {
		version = *b.canVersion
	}
	format := wire.FormatDataFixed
	if b.format != nil {
		format = *b.format
	}
	if err := validateID(*b.id, version == wire.CANVersionExtFixed); err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	f := &FixedFrame{
		Core: CoreState{CANVersion: version, Type: wire.TypeDataFixed},
		Data: DataState{Format: format, CANID: *b.id, DLC: uint8(len(b.data))},
	}
	copy(f.Data.Data[:], b.data)
	return f, nil
}

// VariableFrameBuilder fluently constructs a VariableFrame. Defaults:
// can_version=STD_VARIABLE, format=DATA_VARIABLE.
type VariableFrameBuilder struct {
	canVersion *wire.CANVersion
	format     *wire.Format
	id         *uint32
	data       []byte
}

func NewVariableFrameBuilder() *VariableFrameBuilder { return &VariableFrameBuilder{} }

func (b *VariableFrameBuilder) WithCANVersion(v wire.CANVersion) *VariableFrameBuilder {
	b.canVersion = &v
	return b
}

func (b *VariableFrameBuilder) WithFormat(f wire.Format) *VariableFrameBuilder {
	b.format = &f
	return b
}

func (b *VariableFrameBuilder) WithID(id uint32) *VariableFrameBuilder {
	b.id = &id
	return b
}

func (b *VariableFrameBuilder) WithData(data []byte) *VariableFrameBuilder {
	b.data = data
	return b
}

func (b *VariableFrameBuilder) Build() (*VariableFrame, error) {
	const op = "variable_frame_builder.build"
	if b.id == nil {
		return nil, coerrors.New(coerrors.KindMissingField, op)
	}
	if len(b.data) > 8 {
		return nil, coerrors.New(coerrors.KindBadDLC, op)
	}
	version := wire.CANVersionStdVariable
	if b.canVersion != nil {
		version = *b.canVersion
	}
	format := wire.FormatDataVariable
	if b.format != nil {
		format = *b.format
	}
	if err := validateID(*b.id, version == wire.CANVersionExtVariable); err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	f := &VariableFrame{
		Core: CoreState{CANVersion: version, Type: wire.TypeDataVariable},
		Data: DataState{Format: format, CANID: *b.id, DLC: uint8(len(b.data))},
	}
	copy(f.Data.Data[:], b.data)
	return f, nil
}

// ConfigFrameBuilder fluently constructs a ConfigFrame. Defaults:
// can_version=STD_FIXED, auto_rtx=AUTO, filter=0, mask=0, type=CONF_FIXED.
type ConfigFrameBuilder struct {
	canVersion *wire.CANVersion
	typ        *wire.Type
	baud       *wire.CANBaud
	mode       *wire.CANMode
	autoRTX    *wire.RTX
	filter     *uint32
	mask       *uint32
}

func NewConfigFrameBuilder() *ConfigFrameBuilder { return &ConfigFrameBuilder{} }

func (b *ConfigFrameBuilder) WithCANVersion(v wire.CANVersion) *ConfigFrameBuilder {
	b.canVersion = &v
	return b
}

func (b *ConfigFrameBuilder) WithType(t wire.Type) *ConfigFrameBuilder {
	b.typ = &t
	return b
}

func (b *ConfigFrameBuilder) WithBaudRate(baud wire.CANBaud) *ConfigFrameBuilder {
	b.baud = &baud
	return b
}

func (b *ConfigFrameBuilder) WithMode(mode wire.CANMode) *ConfigFrameBuilder {
	b.mode = &mode
	return b
}

func (b *ConfigFrameBuilder) WithAutoRTX(r wire.RTX) *ConfigFrameBuilder {
	b.autoRTX = &r
	return b
}

func (b *ConfigFrameBuilder) WithFilter(filter uint32) *ConfigFrameBuilder {
	b.filter = &filter
	return b
}

func (b *ConfigFrameBuilder) WithMask(mask uint32) *ConfigFrameBuilder {
	b.mask = &mask
	return b
}

func (b *ConfigFrameBuilder) Build() (*ConfigFrame, error) {
	const op = "config_frame_builder.build"
	if b.baud == nil || b.mode == nil {
		return nil, coerrors.New(coerrors.KindMissingField, op)
	}
	if !b.baud.Valid() {
		return nil, coerrors.New(coerrors.KindBadCanBaud, op)
	}
	if !b.mode.Valid() {
		return nil, coerrors.New(coerrors.KindBadCanMode, op)
	}
	version := wire.CANVersionStdFixed
	if b.canVersion != nil {
		version = *b.canVersion
	}
	typ := wire.TypeConfFixed
	if b.typ != nil {
		typ = *b.typ
	}
	autoRTX := wire.RTXAuto
	if b.autoRTX != nil {
		autoRTX = *b.autoRTX
	}
	if !autoRTX.Valid() {
		return nil, coerrors.New(coerrors.KindBadRTX, op)
	}
	var filter, mask uint32
	if b.filter != nil {
		filter = *b.filter
	}
	if b.mask != nil {
		mask = *b.mask
	}
	limit := uint32(0x7FF)
	if version == wire.CANVersionExtFixed {
		limit = 0x1FFFFFFF
	}
	if filter > limit {
		return nil, coerrors.New(coerrors.KindBadFilter, op)
	}
	if mask > limit {
		return nil, coerrors.New(coerrors.KindBadMask, op)
	}
	return &ConfigFrame{
		Core: CoreState{CANVersion: version, Type: typ},
		Config: ConfigState{
			BaudRate: *b.baud,
			CANMode:  *b.mode,
			AutoRTX:  autoRTX,
			Filter:   filter,
			Mask:     mask,
		},
	}, nil
}
