package serialport

import "testing"

func TestFakeWriteRead(t *testing.T) {
	p := NewFake("/dev/fake0")
	if !p.IsOpen() {
		t.Fatal("expected fake to start open")
	}
	if _, err := p.Write([]byte{0xAA, 0x01}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(p.Written) != 2 {
		t.Fatalf("expected 2 bytes written, got %d", len(p.Written))
	}

	p.Feed([]byte{0x10, 0x20, 0x30})
	buf := make([]byte, 8)
	n, err := p.Read(buf, 100)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 bytes, got %d", n)
	}
}

func TestFakeReadTimeoutReturnsZero(t *testing.T) {
	p := NewFake("/dev/fake0")
	n, err := p.Read(make([]byte, 4), 10)
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil) on empty queue, got (%d, %v)", n, err)
	}
}

func TestFakeCloseRejectsIO(t *testing.T) {
	p := NewFake("/dev/fake0")
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.IsOpen() {
		t.Fatal("expected closed")
	}
	if _, err := p.Write([]byte{1}); err == nil {
		t.Fatal("expected error writing to closed port")
	}
}
