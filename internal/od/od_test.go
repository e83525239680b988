package od

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "od.json")
	body := `{
		"node_id": 5,
		"device_name": "test-drive",
		"can_interface": "can0",
		"objects": {
			"controlword": {"index": "0x6040", "subindex": 0, "datatype": "U16", "access": "wo", "pdo_mapping": "rpdo1"},
			"statusword": {"index": "0x6041", "subindex": 0, "datatype": "U16", "access": "ro", "pdo_mapping": "tpdo1"},
			"target_velocity": {"index": "0x60FF", "subindex": 0, "datatype": "I32", "access": "rw", "scaling_factor": 0.1, "unit": "rpm"}
		},
		"motor_parameters": {"rated_current": 4.2}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadAndGet(t *testing.T) {
	d, err := Load(writeFixture(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.NodeID != 5 || d.DeviceName != "test-drive" {
		t.Fatalf("unexpected metadata: %+v", d)
	}
	e, err := d.Get("statusword")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Index != 0x6041 || e.DataType != U16 || e.Access != AccessRO {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if !d.Has("controlword") || d.Has("nonexistent") {
		t.Fatal("Has mismatch")
	}
}

func TestObjectsForPDO(t *testing.T) {
	d, err := Load(writeFixture(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	names := d.ObjectsForPDO("tpdo1")
	if len(names) != 1 || names[0] != "statusword" {
		t.Fatalf("unexpected tpdo1 objects: %v", names)
	}
}

func TestMotorParam(t *testing.T) {
	d, err := Load(writeFixture(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	v, err := d.MotorParam("rated_current")
	if err != nil || v != 4.2 {
		t.Fatalf("motor param: v=%v err=%v", v, err)
	}
	if _, err := d.MotorParam("missing"); err == nil {
		t.Fatal("expected error for missing motor parameter")
	}
}

func TestToRawFromRawRoundTrip(t *testing.T) {
	u16 := ToRaw(uint16(0x1234))
	if len(u16) != 2 || u16[0] != 0x34 || u16[1] != 0x12 {
		t.Fatalf("unexpected LE encoding: % X", u16)
	}
	got, err := FromRaw[uint16](u16)
	if err != nil || got != 0x1234 {
		t.Fatalf("round trip: got=%v err=%v", got, err)
	}

	i32 := ToRaw(int32(-100))
	back, err := FromRaw[int32](i32)
	if err != nil || back != -100 {
		t.Fatalf("signed round trip: got=%v err=%v", back, err)
	}
}

func TestFromRawShortBufferFails(t *testing.T) {
	if _, err := FromRaw[uint32]([]byte{1, 2}); err == nil {
		t.Fatal("expected BadLength error")
	}
}
