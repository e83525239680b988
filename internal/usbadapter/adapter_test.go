package usbadapter

import (
	"testing"

	"github.com/wsusbcan/bridge/internal/frame"
	"github.com/wsusbcan/bridge/internal/serialport"
	"github.com/wsusbcan/bridge/internal/wire"
)

func TestSendFrameWritesSerializedBytes(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	a := New(port)

	f, err := frame.NewFixedFrameBuilder().WithID(0x123).WithData([]byte{1, 2, 3}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.SendFrame(f); err != nil {
		t.Fatalf("send: %v", err)
	}
	want := f.Serialize()
	if len(port.Written) != len(want) {
		t.Fatalf("expected %d bytes written, got %d", len(want), len(port.Written))
	}
}

func TestReceiveFixedFrameAccumulatesAcrossReads(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	a := New(port)

	f, err := frame.NewFixedFrameBuilder().WithID(0x10).WithData([]byte{9}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	wire := f.Serialize()
	// Feed it in three ragged chunks to exercise accumulation.
	port.Feed(wire[:3])
	port.Feed(wire[3:10])
	port.Feed(wire[10:])

	got, err := a.ReceiveFixedFrame(1000)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if *got != *f {
		t.Fatalf("mismatch: got %+v want %+v", got, f)
	}
}

func TestReceiveFixedFrameTimesOutWhenStarved(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	a := New(port)
	if _, err := a.ReceiveFixedFrame(5); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestReceiveVariableFrameSkipsNoiseAndReassembles(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	a := New(port)

	f, err := frame.NewVariableFrameBuilder().WithID(0x42).WithData([]byte{1, 2}).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	payload := f.Serialize()
	noisy := append([]byte{0xFF, 0xFE}, payload...)
	for _, b := range noisy {
		port.Feed([]byte{b})
	}

	got, err := a.ReceiveVariableFrame(1000)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if *got != *f {
		t.Fatalf("mismatch: got %+v want %+v", got, f)
	}
}

func TestReceiveVariableFrameOverlongAborts(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	a := New(port)

	port.Feed([]byte{wire.StartByte})
	for i := 0; i < 20; i++ {
		port.Feed([]byte{0x01})
	}
	if _, err := a.ReceiveVariableFrame(1000); err == nil {
		t.Fatal("expected BadLength error for overlong reassembly")
	}
}

func TestFlushAcquiresBothMutexes(t *testing.T) {
	port := serialport.NewFake("/dev/fake0")
	a := New(port)
	if err := a.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
