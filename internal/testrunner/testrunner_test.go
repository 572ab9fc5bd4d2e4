package testrunner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labwired/labwired-go/internal/testscript"
)

// minimalFirmware is a bare Cortex-M binary: a two-word vector table
// (SP=0x20001000, PC=0x9 i.e. thumb-bit-set entry at offset 8), then code
// that writes 'O' then 'K' to the UART1 data register (loaded from a
// literal pool via LDR PC-relative) before looping on itself forever.
func minimalFirmware() []byte {
	return []byte{
		0x00, 0x10, 0x00, 0x20, // SP = 0x20001000
		0x09, 0x00, 0x00, 0x00, // PC = 0x9 (entry at offset 8, thumb bit set)
		0x4F, 0x20, // MOVS R0, #0x4F ('O')
		0x02, 0x49, // LDR  R1, [PC, #8]   -> loads the literal pool word below
		0x08, 0x70, // STRB R0, [R1, #0]
		0x4B, 0x20, // MOVS R0, #0x4B ('K')
		0x08, 0x70, // STRB R0, [R1, #0]
		0xFE, 0xE7, // B .   (self-loop)
		0x00, 0xC0, 0x00, 0x40, // literal pool: 0x4000C000 (default UART1 base)
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
	return path
}

func TestRunPassesWithMaxStepsAndUARTAssertions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fw.bin", minimalFirmware())
	writeFile(t, dir, "script.yaml", []byte(`
schema_version: "1.0"
inputs:
  firmware: "fw.bin"
limits:
  max_steps: 10
assertions:
  - uart_contains: "OK"
  - expected_stop_reason: max_steps
`))

	result, err := Run(Options{ScriptPath: filepath.Join(dir, "script.yaml"), NoUARTStdout: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != "pass" {
		t.Fatalf("status = %q, want pass (assertions: %+v, uart: %q)", result.Status, result.Assertions, result.UART)
	}
	if result.StopReason != testscript.StopMaxSteps {
		t.Fatalf("stop_reason = %v, want max_steps", result.StopReason)
	}
	if result.StepsExecuted != 10 {
		t.Fatalf("steps_executed = %d, want 10", result.StepsExecuted)
	}
	if string(result.UART) != "OK" {
		t.Fatalf("uart = %q, want OK", result.UART)
	}
	if len(result.FirmwareHash) != 64 {
		t.Fatalf("firmware_hash = %q, want a 64-hex-char sha256", result.FirmwareHash)
	}
}

func TestRunFailsWhenAssertionDoesNotMatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fw.bin", minimalFirmware())
	writeFile(t, dir, "script.yaml", []byte(`
schema_version: "1.0"
inputs:
  firmware: "fw.bin"
limits:
  max_steps: 10
assertions:
  - uart_contains: "nope"
`))

	result, err := Run(Options{ScriptPath: filepath.Join(dir, "script.yaml"), NoUARTStdout: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != "fail" {
		t.Fatalf("status = %q, want fail", result.Status)
	}
	if result.ExitCode() != ExitAssertFail {
		t.Fatalf("ExitCode() = %d, want %d", result.ExitCode(), ExitAssertFail)
	}
}

func TestRunRejectsMaxStepsOverHardGuard(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fw.bin", minimalFirmware())
	writeFile(t, dir, "script.yaml", []byte(`
schema_version: "1.0"
inputs:
  firmware: "fw.bin"
limits:
  max_steps: 100
`))

	huge := uint64(60_000_000)
	if _, err := Run(Options{ScriptPath: filepath.Join(dir, "script.yaml"), MaxStepsOverride: &huge}); err == nil {
		t.Fatal("expected a ConfigError for a max_steps override over the hard guard")
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fw.bin", minimalFirmware())
	writeFile(t, dir, "script.yaml", []byte(`
schema_version: "1.0"
inputs:
  firmware: "fw.bin"
limits:
  max_steps: 10
assertions:
  - uart_contains: "OK"
`))

	result, err := Run(Options{ScriptPath: filepath.Join(dir, "script.yaml"), NoUARTStdout: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	resultPath := filepath.Join(dir, "result.json")
	if err := result.WriteResultJSON(resultPath); err != nil {
		t.Fatalf("WriteResultJSON: %v", err)
	}
	if data, err := os.ReadFile(resultPath); err != nil || len(data) == 0 {
		t.Fatalf("result.json missing or empty: %v", err)
	}

	uartPath := filepath.Join(dir, "uart.log")
	if err := result.WriteUARTLog(uartPath); err != nil {
		t.Fatalf("WriteUARTLog: %v", err)
	}
	if data, err := os.ReadFile(uartPath); err != nil || string(data) != "OK" {
		t.Fatalf("uart.log = %q, %v, want OK", data, err)
	}

	junitPath := filepath.Join(dir, "junit.xml")
	if err := result.WriteJUnitXML(junitPath); err != nil {
		t.Fatalf("WriteJUnitXML: %v", err)
	}
	data, err := os.ReadFile(junitPath)
	if err != nil || len(data) == 0 {
		t.Fatalf("junit.xml missing or empty: %v", err)
	}
}

func TestSimpleRegexIsMatch(t *testing.T) {
	cases := []struct {
		pattern, text string
		want          bool
	}{
		{"^OK", "OK boot", true},
		{"boot$", "system boot", true},
		{"O.", "OK", true},
		{"A*B", "AAAB", true},
		{"^nope$", "OK", false},
	}
	for _, c := range cases {
		if got := simpleRegexIsMatch(c.pattern, c.text); got != c.want {
			t.Errorf("simpleRegexIsMatch(%q, %q) = %v, want %v", c.pattern, c.text, got, c.want)
		}
	}
}
