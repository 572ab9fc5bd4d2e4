// Package testscript parses and validates the YAML test scripts the CI
// headless mode runs: firmware/system inputs, step/wall-clock limits, and
// a list of pass/fail assertions evaluated against the run's outcome.
package testscript

import (
	"fmt"
	"os"

	"github.com/labwired/labwired-go/internal/simerr"
	"gopkg.in/yaml.v3"
)

// StopReason mirrors the run-outcome taxonomy a test script can assert
// against.
type StopReason string

const (
	StopMaxSteps        StopReason = "max_steps"
	StopWallTime        StopReason = "wall_time"
	StopMemoryViolation StopReason = "memory_violation"
	StopDecodeError     StopReason = "decode_error"
	StopHalt            StopReason = "halt"
)

// Inputs names the firmware image to run and, optionally, the system
// manifest describing the target board. An empty System means run
// against the standard default memory map (spec §6).
type Inputs struct {
	Firmware string `yaml:"firmware"`
	System   string `yaml:"system,omitempty"`
}

// Limits bounds how long a test is allowed to run.
type Limits struct {
	MaxSteps   uint64 `yaml:"max_steps"`
	WallTimeMs uint64 `yaml:"wall_time_ms,omitempty"`
}

// Assertion is one pass/fail check evaluated against the finished run.
// Exactly one of its fields is set per YAML document entry, mirroring
// the untagged-enum shape the YAML schema uses.
type Assertion struct {
	UARTContains       string     `yaml:"uart_contains,omitempty"`
	UARTRegex          string     `yaml:"uart_regex,omitempty"`
	ExpectedStopReason StopReason `yaml:"expected_stop_reason,omitempty"`
}

// Kind reports which field of Assertion is populated, for dispatch by
// the test runner and for readable failure messages.
func (a Assertion) Kind() string {
	switch {
	case a.UARTContains != "":
		return "uart_contains"
	case a.UARTRegex != "":
		return "uart_regex"
	case a.ExpectedStopReason != "":
		return "expected_stop_reason"
	default:
		return "empty"
	}
}

// Script is the parsed, unvalidated form of a test-script YAML document.
type Script struct {
	SchemaVersion string      `yaml:"schema_version"`
	Inputs        Inputs      `yaml:"inputs"`
	Limits        Limits      `yaml:"limits"`
	Assertions    []Assertion `yaml:"assertions,omitempty"`
}

// supportedSchemaVersion is the only schema_version this simulator
// accepts. A mismatch is a startup-time ConfigError, never a panic or a
// run-time failure.
const supportedSchemaVersion = "1.0"

// LoadFile reads, parses, and validates a test script at path.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("reading test script %s: %v", path, err)}
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("parsing test script %s: %v", path, err)}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate enforces the schema constraints spec §6 describes: a
// recognized schema_version, a non-empty firmware path, and a nonzero
// max_steps not exceeding the hard guard.
func (s *Script) Validate() error {
	if s.SchemaVersion != supportedSchemaVersion {
		return &simerr.ConfigError{Msg: fmt.Sprintf(
			"unsupported schema_version %q: supported versions: %q", s.SchemaVersion, supportedSchemaVersion)}
	}
	if s.Inputs.Firmware == "" {
		return &simerr.ConfigError{Msg: "inputs.firmware cannot be empty"}
	}
	if s.Limits.MaxSteps == 0 {
		return &simerr.ConfigError{Msg: "limits.max_steps must be greater than zero"}
	}
	if s.Limits.MaxSteps > MaxStepsHardGuard {
		return &simerr.ConfigError{Msg: fmt.Sprintf(
			"limits.max_steps %d exceeds the hard guard of %d", s.Limits.MaxSteps, MaxStepsHardGuard)}
	}
	for _, a := range s.Assertions {
		if a.Kind() == "empty" {
			return &simerr.ConfigError{Msg: "assertion entry has no recognized field"}
		}
	}
	return nil
}

// MaxStepsHardGuard is the absolute ceiling on limits.max_steps (spec
// §6): a script asking for more is rejected at load time rather than
// left to run until the host notices.
const MaxStepsHardGuard = 50_000_000
