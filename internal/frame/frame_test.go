package frame

import (
	"bytes"
	"testing"

	"github.com/wsusbcan/bridge/internal/wire"
)

func hexBytes(t *testing.T, words ...byte) []byte { t.Helper(); return words }

// TestFixedFrameStandard covers spec.md §8 scenario S1.
func TestFixedFrameStandard(t *testing.T) {
	f, err := NewFixedFrameBuilder().
		WithCANVersion(wire.CANVersionStdFixed).
		WithFormat(wire.FormatDataFixed).
		WithID(0x0123).
		WithData([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := hexBytes(t, 0xAA, 0x55, 0x01, 0x01, 0x01, 0x23, 0x01, 0x00, 0x00, 0x08,
		0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x00, 0x93)
	got := f.Serialize()
	if !bytes.Equal(got, want) {
		t.Fatalf("serialize mismatch\n got: % X\nwant: % X", got, want)
	}
	var rt FixedFrame
	if err := rt.Deserialize(got); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if rt != *f {
		t.Fatalf("round trip mismatch: got %+v want %+v", rt, *f)
	}
}

// TestFixedFrameExtended covers spec.md §8 scenario S2.
func TestFixedFrameExtended(t *testing.T) {
	f, err := NewFixedFrameBuilder().
		WithCANVersion(wire.CANVersionExtFixed).
		WithFormat(wire.FormatDataFixed).
		WithID(0x12345678).
		WithData([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := hexBytes(t, 0xAA, 0x55, 0x01, 0x02, 0x01, 0x78, 0x56, 0x34, 0x12, 0x08,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x00, 0x44)
	got := f.Serialize()
	if !bytes.Equal(got, want) {
		t.Fatalf("serialize mismatch\n got: % X\nwant: % X", got, want)
	}
}

// TestVariableFrameStandard covers spec.md §8 scenario S3.
func TestVariableFrameStandard(t *testing.T) {
	f, err := NewVariableFrameBuilder().
		WithCANVersion(wire.CANVersionStdVariable).
		WithFormat(wire.FormatDataVariable).
		WithID(0x0123).
		WithData([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := hexBytes(t, 0xAA, 0xC8, 0x23, 0x01, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x55)
	got := f.Serialize()
	if !bytes.Equal(got, want) {
		t.Fatalf("serialize mismatch\n got: % X\nwant: % X", got, want)
	}
	if len(got) != 13 {
		t.Fatalf("expected 13 bytes, got %d", len(got))
	}
}

// TestVariableFrameExtended covers spec.md §8 scenario S4.
func TestVariableFrameExtended(t *testing.T) {
	f, err := NewVariableFrameBuilder().
		WithCANVersion(wire.CANVersionExtVariable).
		WithFormat(wire.FormatDataVariable).
		WithID(0x01234567).
		WithData([]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := hexBytes(t, 0xAA, 0xE8, 0x67, 0x45, 0x23, 0x01, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x55)
	got := f.Serialize()
	if !bytes.Equal(got, want) {
		t.Fatalf("serialize mismatch\n got: % X\nwant: % X", got, want)
	}
	if len(got) != 15 {
		t.Fatalf("expected 15 bytes, got %d", len(got))
	}
}

// TestConfigFrame covers spec.md §8 scenario S5.
func TestConfigFrame(t *testing.T) {
	f, err := NewConfigFrameBuilder().
		WithType(wire.TypeConfVariable).
		WithCANVersion(wire.CANVersionStdFixed).
		WithBaudRate(wire.CANBaud1M).
		WithMode(wire.CANModeNormal).
		WithAutoRTX(wire.RTXAuto).
		WithFilter(0).
		WithMask(0).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := hexBytes(t, 0xAA, 0x55, 0x12, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x14)
	got := f.Serialize()
	if !bytes.Equal(got, want) {
		t.Fatalf("serialize mismatch\n got: % X\nwant: % X", got, want)
	}
	var rt ConfigFrame
	if err := rt.Deserialize(got); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if rt != *f {
		t.Fatalf("round trip mismatch: got %+v want %+v", rt, *f)
	}
}

// TestFixedFrameChecksumInvariant is the universal property from spec.md §8.3:
// sum(bytes[2..=18]) & 0xFF == bytes[19] for every serialized fixed/config frame.
func TestFixedFrameChecksumInvariant(t *testing.T) {
	ids := []uint32{0, 1, 0x7FF, 0x1FFFFFFF, 0x12345678}
	for _, id := range ids {
		ext := id > 0x7FF
		version := wire.CANVersionStdFixed
		if ext {
			version = wire.CANVersionExtFixed
		}
		f, err := NewFixedFrameBuilder().WithCANVersion(version).WithID(id).WithData([]byte{1, 2, 3}).Build()
		if err != nil {
			t.Fatalf("build id=0x%X: %v", id, err)
		}
		buf := f.Serialize()
		var sum byte
		for i := 2; i <= 18; i++ {
			sum += buf[i]
		}
		if sum != buf[19] {
			t.Fatalf("id=0x%X: checksum mismatch computed=%X stored=%X", id, sum, buf[19])
		}
	}
}

// TestFixedFrameRoundTrip is the universal property from spec.md §8.1.
func TestFixedFrameRoundTrip(t *testing.T) {
	cases := []struct {
		version wire.CANVersion
		id      uint32
		data    []byte
	}{
		{wire.CANVersionStdFixed, 0, nil},
		{wire.CANVersionStdFixed, 0x7FF, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{wire.CANVersionExtFixed, 0x1FFFFFFF, []byte{0xFF}},
	}
	for _, c := range cases {
		f, err := NewFixedFrameBuilder().WithCANVersion(c.version).WithID(c.id).WithData(c.data).Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		var rt FixedFrame
		if err := rt.Deserialize(f.Serialize()); err != nil {
			t.Fatalf("deserialize: %v", err)
		}
		if rt != *f {
			t.Fatalf("round trip mismatch for id=0x%X: got %+v want %+v", c.id, rt, *f)
		}
	}
}

func TestVariableFrameBadEndByte(t *testing.T) {
	buf := []byte{0xAA, 0xC1, 0x23, 0x01, 0x11, 0x00}
	var f VariableFrame
	if err := f.Deserialize(buf); err == nil {
		t.Fatal("expected error for missing END byte")
	}
}

func TestVariableFrameOverlongReassemblyRejected(t *testing.T) {
	buf := make([]byte, variableMaxSize+1)
	buf[0] = wire.StartByte
	var f VariableFrame
	if err := f.Deserialize(buf); err == nil {
		t.Fatal("expected BadLength for oversized buffer")
	}
}

func TestBuilderMissingIDFails(t *testing.T) {
	if _, err := NewFixedFrameBuilder().Build(); err == nil {
		t.Fatal("expected MissingField error")
	}
}

func TestBuilderDataTooLongFails(t *testing.T) {
	if _, err := NewFixedFrameBuilder().WithID(1).WithData(make([]byte, 9)).Build(); err == nil {
		t.Fatal("expected BadDLC error")
	}
}

func TestBuilderDefaults(t *testing.T) {
	f, err := NewFixedFrameBuilder().WithID(0x42).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if f.Core.CANVersion != wire.CANVersionStdFixed {
		t.Fatalf("expected default STD_FIXED, got %v", f.Core.CANVersion)
	}
	if f.Data.Format != wire.FormatDataFixed {
		t.Fatalf("expected default DATA_FIXED, got %v", f.Data.Format)
	}
	if f.Data.DLC != 0 {
		t.Fatalf("expected DLC 0, got %d", f.Data.DLC)
	}
}

func TestConfigFrameFilterOutOfRangeFails(t *testing.T) {
	_, err := NewConfigFrameBuilder().
		WithCANVersion(wire.CANVersionStdFixed).
		WithBaudRate(wire.CANBaud1M).
		WithMode(wire.CANModeNormal).
		WithFilter(0x800).
		Build()
	if err == nil {
		t.Fatal("expected BadFilter error for 11-bit overflow")
	}
}
