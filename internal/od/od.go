// Package od implements the Object Dictionary (spec.md §4.6): an immutable,
// name-keyed map of entries loaded once from JSON and shared by reference,
// in the same load-once-at-startup spirit as the teacher's cmd/can-server
// config loading, generalized from flags to a JSON schema per spec.md §6.
package od

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wsusbcan/bridge/internal/coerrors"
)

// DataType enumerates the integer widths/signedness an Entry may declare.
type DataType string

const (
	U8  DataType = "U8"
	I8  DataType = "I8"
	U16 DataType = "U16"
	I16 DataType = "I16"
	U32 DataType = "U32"
	I32 DataType = "I32"
	U64 DataType = "U64"
	I64 DataType = "I64"
)

// Size returns the wire width in bytes for dt, or 0 if dt is unrecognized.
func (dt DataType) Size() int {
	switch dt {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32:
		return 4
	case U64, I64:
		return 8
	default:
		return 0
	}
}

// Access is the CiA 301 read/write/write-only access mode of an entry.
type Access string

const (
	AccessRO Access = "ro"
	AccessRW Access = "rw"
	AccessWO Access = "wo"
)

// Entry is one named Object Dictionary slot.
type Entry struct {
	Index      uint16
	Subindex   uint8
	DataType   DataType
	Access     Access
	PDOMapping string
	Scaling    float64
	Unit       string
}

// Dictionary is the immutable, name-keyed map plus device metadata that
// spec.md §4.6 describes. Entries and MotorParams are never mutated after
// Load returns, so a *Dictionary can be shared by reference across the SDO
// client, PDO manager, and CiA 402 state machine without locking.
type Dictionary struct {
	NodeID       uint8
	DeviceName   string
	CANInterface string
	entries      map[string]Entry
	motorParams  map[string]float64
}

type jsonEntry struct {
	Index         string  `json:"index"`
	Subindex      uint8   `json:"subindex"`
	DataType      string  `json:"datatype"`
	Access        string  `json:"access"`
	PDOMapping    string  `json:"pdo_mapping"`
	ScalingFactor float64 `json:"scaling_factor"`
	Unit          string  `json:"unit"`
}

type jsonDictionary struct {
	NodeID       uint8                `json:"node_id"`
	DeviceName   string               `json:"device_name"`
	CANInterface string               `json:"can_interface"`
	Objects      map[string]jsonEntry `json:"objects"`
	MotorParams  map[string]float64   `json:"motor_parameters"`
}

// Load reads and parses the Object Dictionary JSON schema from path (§6).
func Load(path string) (*Dictionary, error) {
	const op = "od.load"
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coerrors.Newf(coerrors.KindMissingField, op, "read %s: %v", path, err)
	}
	var raw jsonDictionary
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, coerrors.Newf(coerrors.KindBadFormat, op, "parse %s: %v", path, err)
	}

	d := &Dictionary{
		NodeID:       raw.NodeID,
		DeviceName:   raw.DeviceName,
		CANInterface: raw.CANInterface,
		entries:      make(map[string]Entry, len(raw.Objects)),
		motorParams:  raw.MotorParams,
	}
	if d.motorParams == nil {
		d.motorParams = map[string]float64{}
	}
	for name, je := range raw.Objects {
		index, err := parseIndex(je.Index)
		if err != nil {
			return nil, coerrors.Newf(coerrors.KindBadFormat, op, "object %q: %v", name, err)
		}
		dt := DataType(strings.ToUpper(je.DataType))
		if dt.Size() == 0 {
			return nil, coerrors.Newf(coerrors.KindBadFormat, op, "object %q: unknown datatype %q", name, je.DataType)
		}
		access := Access(strings.ToLower(je.Access))
		if access != AccessRO && access != AccessRW && access != AccessWO {
			return nil, coerrors.Newf(coerrors.KindBadFormat, op, "object %q: unknown access %q", name, je.Access)
		}
		d.entries[name] = Entry{
			Index:      index,
			Subindex:   je.Subindex,
			DataType:   dt,
			Access:     access,
			PDOMapping: je.PDOMapping,
			Scaling:    je.ScalingFactor,
			Unit:       je.Unit,
		}
	}
	return d, nil
}

func parseIndex(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", s, err)
	}
	return uint16(n), nil
}

// Get returns the named entry, or a KindMissingField error if it is absent.
func (d *Dictionary) Get(name string) (Entry, error) {
	e, ok := d.entries[name]
	if !ok {
		return Entry{}, coerrors.Newf(coerrors.KindMissingField, "od.get", "no such object %q", name)
	}
	return e, nil
}

// Has reports whether name is a known entry.
func (d *Dictionary) Has(name string) bool {
	_, ok := d.entries[name]
	return ok
}

// ObjectsForPDO returns the names of every entry whose pdo_mapping equals
// pdoName, in no particular order.
func (d *Dictionary) ObjectsForPDO(pdoName string) []string {
	var names []string
	for name, e := range d.entries {
		if e.PDOMapping == pdoName {
			names = append(names, name)
		}
	}
	return names
}

// MotorParam returns a named scalar motor parameter, or a KindMissingField
// error if it is absent.
func (d *Dictionary) MotorParam(name string) (float64, error) {
	v, ok := d.motorParams[name]
	if !ok {
		return 0, coerrors.Newf(coerrors.KindMissingField, "od.motor_param", "no such motor parameter %q", name)
	}
	return v, nil
}

// integer is the set of widths ToRaw/FromRaw can encode/decode.
type integer interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// ToRaw encodes value little-endian into exactly sizeof(T) bytes.
func ToRaw[T integer](value T) []byte {
	buf := make([]byte, sizeOf(value))
	switch v := any(value).(type) {
	case int8:
		buf[0] = byte(v)
	case uint8:
		buf[0] = v
	case int16:
		binary.LittleEndian.PutUint16(buf, uint16(v))
	case uint16:
		binary.LittleEndian.PutUint16(buf, v)
	case int32:
		binary.LittleEndian.PutUint32(buf, uint32(v))
	case uint32:
		binary.LittleEndian.PutUint32(buf, v)
	case int64:
		binary.LittleEndian.PutUint64(buf, uint64(v))
	case uint64:
		binary.LittleEndian.PutUint64(buf, v)
	}
	return buf
}

// FromRaw decodes the little-endian bytes of bytes into a T, failing with
// BadLength if bytes is too short.
func FromRaw[T integer](bytes []byte) (T, error) {
	var zero T
	n := sizeOf(zero)
	if len(bytes) < n {
		return zero, coerrors.Newf(coerrors.KindBadLength, "od.from_raw", "need %d bytes, got %d", n, len(bytes))
	}
	switch any(zero).(type) {
	case int8:
		return T(int8(bytes[0])), nil
	case uint8:
		return T(bytes[0]), nil
	case int16:
		return T(int16(binary.LittleEndian.Uint16(bytes))), nil
	case uint16:
		return T(binary.LittleEndian.Uint16(bytes)), nil
	case int32:
		return T(int32(binary.LittleEndian.Uint32(bytes))), nil
	case uint32:
		return T(binary.LittleEndian.Uint32(bytes)), nil
	case int64:
		return T(int64(binary.LittleEndian.Uint64(bytes))), nil
	case uint64:
		return T(binary.LittleEndian.Uint64(bytes)), nil
	}
	return zero, coerrors.New(coerrors.KindBadFormat, "od.from_raw")
}

func sizeOf[T integer](v T) int {
	switch any(v).(type) {
	case int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32:
		return 4
	case int64, uint64:
		return 8
	default:
		return 0
	}
}
