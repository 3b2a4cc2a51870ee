package core

import "testing"

func TestEntityPacking(t *testing.T) {
	e := MakeEntity(12345, 7)
	if e.Index() != 12345 {
		t.Errorf("Expected index 12345, got %d", e.Index())
	}
	if e.Generation() != 7 {
		t.Errorf("Expected generation 7, got %d", e.Generation())
	}
}

func TestEntityPackingBounds(t *testing.T) {
	// Index wider than 24 bits must be masked, not corrupt the generation
	e := MakeEntity(MaxEntities+5, 255)
	if e.Index() != 5 {
		t.Errorf("Expected masked index 5, got %d", e.Index())
	}
	if e.Generation() != 255 {
		t.Errorf("Expected generation 255, got %d", e.Generation())
	}
}

func TestNilEntity(t *testing.T) {
	if !NilEntity.IsNil() {
		t.Error("NilEntity must report IsNil")
	}
	if MakeEntity(0, 0).IsNil() {
		t.Error("Zero entity must not report IsNil")
	}
	// The reserved value is index all-ones at generation all-ones
	if NilEntity.Index() != indexMask || NilEntity.Generation() != 255 {
		t.Errorf("Unexpected NilEntity decomposition: %d/%d", NilEntity.Index(), NilEntity.Generation())
	}
}

func TestSectorFromWorld(t *testing.T) {
	cases := []struct {
		x, z float64
		want SectorCoord
	}{
		{0, 0, SectorCoord{0, 0}},
		{31.9, 31.9, SectorCoord{0, 0}},
		{32, 0, SectorCoord{1, 0}},
		{-0.1, -0.1, SectorCoord{-1, -1}},
		{-32, -64, SectorCoord{-1, -2}},
	}
	for _, c := range cases {
		got := SectorFromWorld(c.x, c.z, 32)
		if got != c.want {
			t.Errorf("SectorFromWorld(%v,%v) = %+v, want %+v", c.x, c.z, got, c.want)
		}
	}
}

func TestHash2Deterministic(t *testing.T) {
	a := Hash2(42, -3, 17)
	b := Hash2(42, -3, 17)
	if a != b {
		t.Error("Hash2 must be deterministic for identical inputs")
	}
	if Hash2(42, -3, 17) == Hash2(43, -3, 17) {
		t.Error("Seed change should perturb the hash")
	}
}
