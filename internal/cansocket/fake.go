package cansocket

import (
	"sync"

	"github.com/wsusbcan/bridge/internal/coerrors"
)

// Fake is an in-memory CANSocket for hardware-free tests, the cansocket
// analog of serialport.Fake: an outbound log plus an inbound queue fed with
// Feed.
type Fake struct {
	mu      sync.Mutex
	iface   string
	open    bool
	Sent    []Frame
	pending []Frame
}

func NewFake(iface string) *Fake {
	return &Fake{iface: iface, open: true}
}

// Feed enqueues a frame to be handed back by a future Receive call.
func (f *Fake) Feed(fr Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, fr)
}

func (f *Fake) Send(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return coerrors.New(coerrors.KindDeviceNotOpen, "fake_socket.send")
	}
	f.Sent = append(f.Sent, fr)
	return nil
}

func (f *Fake) Receive(timeoutMs int) (Frame, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return Frame{}, false, coerrors.New(coerrors.KindDeviceNotOpen, "fake_socket.receive")
	}
	if len(f.pending) == 0 {
		return Frame{}, false, nil
	}
	fr := f.pending[0]
	f.pending = f.pending[1:]
	return fr, true, nil
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

func (f *Fake) InterfaceName() string { return f.iface }

func (f *Fake) RawHandle() uintptr { return 0 }

var _ CANSocket = (*Fake)(nil)
