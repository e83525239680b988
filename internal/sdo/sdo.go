// Package sdo implements the CiA 301 expedited SDO client (spec.md §4.7) on
// top of a cansocket.CANSocket, blocking request/response in the style of
// the teacher's synchronous serial/socketcan device calls rather than
// gocanopen's segmented state machine — the bridge only ever needs
// expedited transfers.
package sdo

import (
	"encoding/binary"
	"time"

	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/coerrors"
	"github.com/wsusbcan/bridge/internal/metrics"
	"github.com/wsusbcan/bridge/internal/od"
)

// DefaultTimeout is the per-call deadline spec.md §4.7 specifies absent an
// explicit override.
const DefaultTimeout = time.Second

const (
	cmdInitiateDownload = 0x23 // "initiate download", size-indicated + expedited, n encoded in bits 2-3
	cmdDownloadResponse = 0x60
	cmdInitiateUpload   = 0x40
	cmdAbort            = 0x80
)

// Client is an expedited SDO client bound to one server node.
type Client struct {
	socket cansocket.CANSocket
	dict   *od.Dictionary
	nodeID uint8
	cobTx  uint32 // client -> server
	cobRx  uint32 // server -> client
}

// New builds a Client for dict.NodeID, deriving COB-IDs per spec.md §4.7:
// tx = 0x600 + node_id, rx = 0x580 + node_id.
func New(socket cansocket.CANSocket, dict *od.Dictionary) *Client {
	nodeID := dict.NodeID
	return &Client{
		socket: socket,
		dict:   dict,
		nodeID: nodeID,
		cobTx:  0x600 + uint32(nodeID),
		cobRx:  0x580 + uint32(nodeID),
	}
}

// WriteBytes performs an expedited download of data (≤4 bytes) to the
// object named name, blocking up to timeout for the server's response.
func (c *Client) WriteBytes(name string, data []byte, timeout time.Duration) error {
	const op = "sdo.write_bytes"
	entry, err := c.dict.Get(name)
	if err != nil {
		return coerrors.Wrap(op, err)
	}
	if len(data) > 4 {
		return coerrors.Newf(coerrors.KindBadLength, op, "expedited payload too long: %d bytes", len(data))
	}

	var req [8]byte
	n := 4 - len(data)
	req[0] = cmdInitiateDownload | byte(n<<2)
	binary.LittleEndian.PutUint16(req[1:3], entry.Index)
	req[3] = entry.Subindex
	copy(req[4:], data)

	metrics.IncSdoRequest()
	resp, err := c.roundTrip(req, timeout)
	if err != nil {
		return coerrors.Wrap(op, err)
	}
	if resp[0] != cmdDownloadResponse {
		return coerrors.New(coerrors.KindCanSdoProtocol, op)
	}
	return nil
}

// Write encodes value little-endian at the width of T (not the entry's
// declared datatype) and calls WriteBytes with the default timeout.
func Write[T interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}](c *Client, name string, value T) error {
	return c.WriteBytes(name, od.ToRaw(value), DefaultTimeout)
}

// ReadBytes performs an expedited upload from the object named name,
// returning the dictionary entry's declared-size data, blocking up to
// timeout.
func (c *Client) ReadBytes(name string, timeout time.Duration) ([]byte, error) {
	const op = "sdo.read_bytes"
	entry, err := c.dict.Get(name)
	if err != nil {
		return nil, coerrors.Wrap(op, err)
	}

	var req [8]byte
	req[0] = cmdInitiateUpload
	binary.LittleEndian.PutUint16(req[1:3], entry.Index)
	req[3] = entry.Subindex

	metrics.IncSdoRequest()
	resp, err := c.roundTrip(req, timeout)
	if err != nil {
		return nil, coerrors.Wrap(op, err)
	}
	if resp[0] == cmdAbort {
		code := binary.LittleEndian.Uint32(resp[4:8])
		metrics.IncSdoAbort()
		return nil, coerrors.NewSdoAbort(op, code)
	}
	// Expected command byte: 0100 nnxx (top nibble 0100, n in bits 2-3).
	if resp[0]&0xF0 != 0x40 {
		return nil, coerrors.New(coerrors.KindCanSdoProtocol, op)
	}
	size := entry.DataType.Size()
	if size == 0 || size > 4 {
		return nil, coerrors.New(coerrors.KindBadFormat, op)
	}
	return append([]byte(nil), resp[4:4+size]...), nil
}

// Read uploads an object's raw bytes and decodes them as T using the
// default timeout.
func Read[T interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64
}](c *Client, name string) (T, error) {
	var zero T
	raw, err := c.ReadBytes(name, DefaultTimeout)
	if err != nil {
		return zero, err
	}
	return od.FromRaw[T](raw)
}

// roundTrip sends req on cobTx and waits for a matching response on cobRx:
// same COB-ID, same echoed index/subindex. Non-matching frames observed in
// the meantime are discarded without affecting the wait.
func (c *Client) roundTrip(req [8]byte, timeout time.Duration) ([8]byte, error) {
	const op = "sdo.round_trip"
	var zero [8]byte
	frame := cansocket.Frame{ID: c.cobTx, DLC: 8, Data: req}
	if err := c.socket.Send(frame); err != nil {
		return zero, coerrors.Wrap(op, err)
	}

	wantIndex := binary.LittleEndian.Uint16(req[1:3])
	wantSubindex := req[3]
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			metrics.IncSdoTimeout()
			return zero, coerrors.New(coerrors.KindSdoTimeout, op)
		}
		fr, ok, err := c.socket.Receive(int(remaining.Milliseconds()) + 1)
		if err != nil {
			return zero, coerrors.Wrap(op, err)
		}
		if !ok {
			continue
		}
		if fr.RawID() != c.cobRx {
			continue
		}
		gotIndex := binary.LittleEndian.Uint16(fr.Data[1:3])
		gotSubindex := fr.Data[3]
		if gotIndex != wantIndex || gotSubindex != wantSubindex {
			continue
		}
		return fr.Data, nil
	}
}
