package serialport

import (
	"sync"

	"github.com/wsusbcan/bridge/internal/coerrors"
)

// Fake is an in-memory Port for hardware-free tests: writes land in Written,
// reads drain a queue of canned responses fed with Feed. It mirrors the role
// the teacher's socketcan stub.go / fake devices play for the CAN side.
type Fake struct {
	mu      sync.Mutex
	path    string
	open    bool
	Written []byte
	pending [][]byte
}

// NewFake returns an already-open Fake at path.
func NewFake(path string) *Fake {
	return &Fake{path: path, open: true}
}

// Feed enqueues a chunk of bytes to be returned by future Read calls, one
// chunk per call, in FIFO order.
func (f *Fake) Feed(chunk []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	f.pending = append(f.pending, cp)
}

func (f *Fake) Write(buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, coerrors.New(coerrors.KindDeviceNotOpen, "fake_port.write")
	}
	f.Written = append(f.Written, buf...)
	return len(buf), nil
}

// Read pops the next fed chunk into buf. With nothing queued it returns
// (0, nil), the documented timeout-elapsed behavior, regardless of
// timeoutMs (a fake has nothing to wait on).
func (f *Fake) Read(buf []byte, timeoutMs int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return 0, coerrors.New(coerrors.KindDeviceNotOpen, "fake_port.read")
	}
	if len(f.pending) == 0 {
		return 0, nil
	}
	chunk := f.pending[0]
	f.pending = f.pending[1:]
	n := copy(buf, chunk)
	return n, nil
}

func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	return nil
}

func (f *Fake) Path() string { return f.path }

func (f *Fake) RawHandle() uintptr { return 0 }

var _ Port = (*Fake)(nil)
var _ Port = (*Real)(nil)
