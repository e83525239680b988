package bridge

import (
	"testing"
	"time"

	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/config"
	"github.com/wsusbcan/bridge/internal/frame"
	"github.com/wsusbcan/bridge/internal/serialport"
	"github.com/wsusbcan/bridge/internal/usbadapter"
	"github.com/wsusbcan/bridge/internal/wire"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.USBReadTimeoutMs = 20
	cfg.SocketCANReadTimeoutMs = 20
	return cfg
}

func TestNewSendsConfigFrame(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	adapter := usbadapter.New(port)
	sock := cansocket.NewFake("can0")

	if _, err := New(sock, adapter, testConfig()); err != nil {
		t.Fatalf("new: %v", err)
	}
	if len(port.Written) != frame.ConfigFrameSize {
		t.Fatalf("expected a %d-byte config frame written, got %d bytes", frame.ConfigFrameSize, len(port.Written))
	}
}

func TestUSBToCANForwarding(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	adapter := usbadapter.New(port)
	sock := cansocket.NewFake("can0")

	b, err := New(sock, adapter, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	vf, err := frame.NewVariableFrameBuilder().WithID(0x123).WithData([]byte{1, 2, 3}).Build()
	if err != nil {
		t.Fatalf("build variable frame: %v", err)
	}
	// The adapter reassembles a variable frame one byte at a time, so each
	// byte must arrive as its own Read() call.
	for _, b := range vf.Serialize() {
		port.Feed([]byte{b})
	}

	var gotCallback bool
	b.SetUSBToCANCallback(func(vf *frame.VariableFrame, fr cansocket.Frame) { gotCallback = true })

	b.Start()
	defer b.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sock.Sent) == 0 {
		time.Sleep(time.Millisecond)
	}
	if len(sock.Sent) != 1 {
		t.Fatalf("expected one frame forwarded to the CAN socket, got %d", len(sock.Sent))
	}
	if sock.Sent[0].RawID() != 0x123 {
		t.Fatalf("unexpected forwarded ID: 0x%X", sock.Sent[0].RawID())
	}
	if !gotCallback {
		t.Fatal("expected USB->CAN callback to fire")
	}
	if stats := b.GetStatistics(); stats.SocketCANTxFrames != 1 {
		t.Fatalf("expected SocketCANTxFrames=1, got %+v", stats)
	}
}

func TestCANToUSBForwarding(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	adapter := usbadapter.New(port)
	sock := cansocket.NewFake("can0")

	b, err := New(sock, adapter, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	// New() already wrote a ConfigFrame; remember how much was written so
	// the assertion below only looks at bytes written afterward.
	baseline := len(port.Written)

	sock.Feed(cansocket.Frame{ID: 0x200, DLC: 2, Data: [8]byte{0xAA, 0xBB}})

	b.Start()
	defer b.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(port.Written) == baseline {
		time.Sleep(time.Millisecond)
	}
	if len(port.Written) <= baseline {
		t.Fatal("expected a variable frame written to the USB port")
	}
	if stats := b.GetStatistics(); stats.USBTxFrames != 1 {
		t.Fatalf("expected USBTxFrames=1, got %+v", stats)
	}
}

func TestResetStatisticsZeroesCounters(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	adapter := usbadapter.New(port)
	sock := cansocket.NewFake("can0")
	b, err := New(sock, adapter, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b.stats.usbRxFrames.Add(5)
	b.ResetStatistics()
	if b.GetStatistics().USBRxFrames != 0 {
		t.Fatal("expected reset counters")
	}
}

func TestFromCANFrameRemoteDropsData(t *testing.T) {
	fr := cansocket.Frame{ID: 0x10 | cansocket.RemoteFrameFlag, DLC: 5, Data: [8]byte{1, 2, 3, 4, 5}}
	vf, err := fromCANFrame(fr)
	if err != nil {
		t.Fatalf("from_can_frame: %v", err)
	}
	if vf.Data.Format != wire.FormatRemoteVariable {
		t.Fatalf("expected remote format, got %v", vf.Data.Format)
	}
	if vf.Data.DLC != 0 {
		t.Fatalf("expected DLC reduced to 0 for remote frame, got %d", vf.Data.DLC)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	adapter := usbadapter.New(port)
	sock := cansocket.NewFake("can0")
	b, err := New(sock, adapter, testConfig())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !b.Start() {
		t.Fatal("expected first start to succeed")
	}
	if b.Start() {
		t.Fatal("expected second start to be rejected")
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
