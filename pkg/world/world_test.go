package world

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/meintsot/regionlens/pkg/region"
)

func TestParseRegionName(t *testing.T) {
	tests := []struct {
		name string
		x, z int
		ok   bool
	}{
		{"0.0.region.bin", 0, 0, true},
		{"12.34.region.bin", 12, 34, true},
		{"-3.12.region.bin", -3, 12, true},
		{"123.-456.region.bin", 123, -456, true},
		{"region.bin", 0, 0, false},
		{"1.region.bin", 0, 0, false},
		{"1.2.3.region.bin", 0, 0, false},
		{"a.b.region.bin", 0, 0, false},
		{"1.b.region.bin", 0, 0, false},
		{"1..region.bin", 0, 0, false},
		{".2.region.bin", 0, 0, false},
		{"1.2.region.bin.bak", 0, 0, false},
		{"1.2.region.dat", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		x, z, ok := ParseRegionName(tt.name)
		if ok != tt.ok {
			t.Errorf("ParseRegionName(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			continue
		}
		if ok && (x != tt.x || z != tt.z) {
			t.Errorf("ParseRegionName(%q) = (%d, %d), want (%d, %d)", tt.name, x, z, tt.x, tt.z)
		}
	}
}

func TestRegionFileNameRoundTrip(t *testing.T) {
	name := RegionFileName(-3, 12)
	if name != "-3.12.region.bin" {
		t.Errorf("Expected -3.12.region.bin, got %s", name)
	}

	x, z, ok := ParseRegionName(name)
	if !ok || x != -3 || z != 12 {
		t.Errorf("Round trip failed: got (%d, %d, %v)", x, z, ok)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()

	for _, name := range []string{
		"0.0.region.bin",
		"-1.2.region.bin",
		"1.0.region.bin",
		"notes.txt",
		"x.y.region.bin",
	} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("stub"), 0644); err != nil {
			t.Fatalf("Failed to write fixture file: %v", err)
		}
	}

	// Subdirectories are not descended into, even when their names or
	// contents look like region files.
	nested := filepath.Join(root, "5.5.region.bin.d")
	if err := os.Mkdir(nested, 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "5.5.region.bin"), []byte("stub"), 0644); err != nil {
		t.Fatalf("Failed to write nested fixture: %v", err)
	}

	refs, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	want := []RegionRef{
		{X: -1, Z: 2, Path: filepath.Join(root, "-1.2.region.bin")},
		{X: 0, Z: 0, Path: filepath.Join(root, "0.0.region.bin")},
		{X: 1, Z: 0, Path: filepath.Join(root, "1.0.region.bin")},
	}
	if len(refs) != len(want) {
		t.Fatalf("Expected %d region refs, got %d: %v", len(want), len(refs), refs)
	}
	for i, ref := range refs {
		if ref != want[i] {
			t.Errorf("refs[%d] = %+v, want %+v", i, ref, want[i])
		}
	}
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, region.ErrIO) {
		t.Errorf("Expected ErrIO for a missing directory, got %v", err)
	}
}
