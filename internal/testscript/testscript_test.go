package testscript

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestValidScript(t *testing.T) {
	path := writeScript(t, `
schema_version: "1.0"
inputs:
  firmware: "path/to/fw.elf"
  system: "path/to/sys.yaml"
limits:
  max_steps: 1000
  wall_time_ms: 5000
assertions:
  - uart_contains: "Hello"
  - expected_stop_reason: halt
`)
	s, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if s.Inputs.Firmware != "path/to/fw.elf" || s.Limits.MaxSteps != 1000 || len(s.Assertions) != 2 {
		t.Fatalf("script = %+v, unexpected shape", s)
	}
	if s.Assertions[0].Kind() != "uart_contains" || s.Assertions[1].Kind() != "expected_stop_reason" {
		t.Fatalf("assertion kinds = %q, %q", s.Assertions[0].Kind(), s.Assertions[1].Kind())
	}
}

func TestInvalidSchemaVersion(t *testing.T) {
	path := writeScript(t, "schema_version: \"2.0\"\ninputs:\n  firmware: fw.elf\nlimits:\n  max_steps: 100\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for an unsupported schema_version")
	}
}

func TestZeroMaxSteps(t *testing.T) {
	path := writeScript(t, "schema_version: \"1.0\"\ninputs:\n  firmware: fw.elf\nlimits:\n  max_steps: 0\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for max_steps: 0")
	}
}

func TestMaxStepsExceedsHardGuard(t *testing.T) {
	path := writeScript(t, "schema_version: \"1.0\"\ninputs:\n  firmware: fw.elf\nlimits:\n  max_steps: 50000001\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for max_steps over the hard guard")
	}
}

func TestEmptyFirmwarePath(t *testing.T) {
	path := writeScript(t, "schema_version: \"1.0\"\ninputs:\n  firmware: \"\"\nlimits:\n  max_steps: 100\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected an error for an empty firmware path")
	}
}
