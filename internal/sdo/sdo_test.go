package sdo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wsusbcan/bridge/internal/cansocket"
	"github.com/wsusbcan/bridge/internal/od"
)

func testDict(t *testing.T) *od.Dictionary {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "od.json")
	body := `{
		"node_id": 1,
		"device_name": "drive",
		"can_interface": "can0",
		"objects": {
			"controlword": {"index": "0x6040", "subindex": 0, "datatype": "U16", "access": "wo"},
			"statusword": {"index": "0x6041", "subindex": 0, "datatype": "U16", "access": "ro"}
		}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	d, err := od.Load(path)
	if err != nil {
		t.Fatalf("load od: %v", err)
	}
	return d
}

// TestWriteBytesScenarioS6 covers spec.md §8 scenario S6.
func TestWriteBytesScenarioS6(t *testing.T) {
	dict := testDict(t)
	sock := cansocket.NewFake("can0")
	client := New(sock, dict)

	sock.Feed(cansocket.Frame{ID: 0x580 + uint32(dict.NodeID), DLC: 8,
		Data: [8]byte{0x60, 0x40, 0x60, 0x00, 0x00, 0x00, 0x00, 0x00}})

	if err := client.WriteBytes("controlword", []byte{0x0F, 0x00}, time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(sock.Sent) != 1 {
		t.Fatalf("expected one frame sent, got %d", len(sock.Sent))
	}
	got := sock.Sent[0]
	want := cansocket.Frame{ID: 0x600 + uint32(dict.NodeID), DLC: 8,
		Data: [8]byte{0x2B, 0x40, 0x60, 0x00, 0x0F, 0x00, 0x00, 0x00}}
	if got != want {
		t.Fatalf("unexpected request frame: got %+v want %+v", got, want)
	}
}

func TestReadBytesReturnsDeclaredSize(t *testing.T) {
	dict := testDict(t)
	sock := cansocket.NewFake("can0")
	client := New(sock, dict)

	sock.Feed(cansocket.Frame{ID: 0x580 + uint32(dict.NodeID), DLC: 8,
		Data: [8]byte{0x4B, 0x41, 0x60, 0x00, 0x37, 0x06, 0x00, 0x00}})

	got, err := client.ReadBytes("statusword", time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 || got[0] != 0x37 || got[1] != 0x06 {
		t.Fatalf("unexpected data: % X", got)
	}
}

func TestReadBytesAbortSurfacesCode(t *testing.T) {
	dict := testDict(t)
	sock := cansocket.NewFake("can0")
	client := New(sock, dict)

	sock.Feed(cansocket.Frame{ID: 0x580 + uint32(dict.NodeID), DLC: 8,
		Data: [8]byte{0x80, 0x41, 0x60, 0x00, 0x00, 0x00, 0x02, 0x06}})

	_, err := client.ReadBytes("statusword", time.Second)
	if err == nil {
		t.Fatal("expected abort error")
	}
}

func TestRoundTripIgnoresNonMatchingFrames(t *testing.T) {
	dict := testDict(t)
	sock := cansocket.NewFake("can0")
	client := New(sock, dict)

	// Unrelated frame first (wrong COB-ID), then a mismatched index, then the real response.
	sock.Feed(cansocket.Frame{ID: 0x080, DLC: 8})
	sock.Feed(cansocket.Frame{ID: 0x580 + uint32(dict.NodeID), DLC: 8,
		Data: [8]byte{0x60, 0x99, 0x99, 0x00, 0, 0, 0, 0}})
	sock.Feed(cansocket.Frame{ID: 0x580 + uint32(dict.NodeID), DLC: 8,
		Data: [8]byte{0x60, 0x40, 0x60, 0x00, 0, 0, 0, 0}})

	if err := client.WriteBytes("controlword", []byte{0x0F, 0x00}, time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWriteBytesTimesOutWithoutResponse(t *testing.T) {
	dict := testDict(t)
	sock := cansocket.NewFake("can0")
	client := New(sock, dict)
	if err := client.WriteBytes("controlword", []byte{0x0F, 0x00}, 10*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}
