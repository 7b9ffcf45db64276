package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDeviceNamesMissingFile(t *testing.T) {
	d, err := loadDeviceNames(filepath.Join(t.TempDir(), "devices.yaml"))
	if err != nil {
		t.Fatalf("loadDeviceNames of a missing file should not error: %v", err)
	}
	if len(d.names) != 0 {
		t.Fatalf("expected no names from a missing file, got %v", d.names)
	}
}

func TestSeenRecordsNewMACOnce(t *testing.T) {
	d, err := loadDeviceNames(filepath.Join(t.TempDir(), "devices.yaml"))
	if err != nil {
		t.Fatalf("loadDeviceNames: %v", err)
	}

	got := d.seen("de:dc:ce:00:00:01", "kitchen-light")
	if got != "kitchen-light" {
		t.Fatalf("seen() = %q, want %q", got, "kitchen-light")
	}

	again := d.seen("de:dc:ce:00:00:01", "ignored-name")
	if again != "kitchen-light" {
		t.Fatalf("seen() on a known MAC should keep the recorded name, got %q", again)
	}
}

func TestSeenDefaultsUnnamed(t *testing.T) {
	d, err := loadDeviceNames(filepath.Join(t.TempDir(), "devices.yaml"))
	if err != nil {
		t.Fatalf("loadDeviceNames: %v", err)
	}
	if got := d.seen("de:dc:ce:00:00:02", ""); got != "[unnamed]" {
		t.Fatalf("seen() with no name = %q, want %q", got, "[unnamed]")
	}
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "devices.yaml")

	d, err := loadDeviceNames(fn)
	if err != nil {
		t.Fatalf("loadDeviceNames: %v", err)
	}
	d.seen("de:dc:ce:00:00:01", "kitchen-light")
	d.seen("de:dc:ce:00:00:02", "hallway-sensor")

	if err := d.write(fn); err != nil {
		t.Fatalf("write: %v", err)
	}

	reloaded, err := loadDeviceNames(fn)
	if err != nil {
		t.Fatalf("loadDeviceNames after write: %v", err)
	}
	if got := reloaded.seen("de:dc:ce:00:00:01", "ignored"); got != "kitchen-light" {
		t.Fatalf("reloaded name = %q, want %q", got, "kitchen-light")
	}
	if got := reloaded.seen("de:dc:ce:00:00:02", "ignored"); got != "hallway-sensor" {
		t.Fatalf("reloaded name = %q, want %q", got, "hallway-sensor")
	}
}

func TestWritePreservesExistingComments(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "devices.yaml")
	initial := "# hand-edited names\n\"de:dc:ce:00:00:01\": \"kitchen-light\"\n"
	if err := os.WriteFile(fn, []byte(initial), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d, err := loadDeviceNames(fn)
	if err != nil {
		t.Fatalf("loadDeviceNames: %v", err)
	}
	d.seen("de:dc:ce:00:00:02", "hallway-sensor")
	if err := d.write(fn); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, err := os.ReadFile(fn)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(out), "# hand-edited names") {
		t.Fatalf("write() dropped the existing comment:\n%s", out)
	}
	if !strings.Contains(string(out), "hallway-sensor") {
		t.Fatalf("write() missing the newly seen device:\n%s", out)
	}
}

func TestWriteWithNoNewNamesIsNoop(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "devices.yaml")
	d, err := loadDeviceNames(fn)
	if err != nil {
		t.Fatalf("loadDeviceNames: %v", err)
	}
	if err := d.write(fn); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(fn); !os.IsNotExist(err) {
		t.Fatalf("write() with nothing to record should not create %s", fn)
	}
}
