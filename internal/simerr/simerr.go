// Package simerr defines the error kinds raised by the simulator core.
package simerr

import "fmt"

// MemoryViolation is returned when an address does not resolve to any
// linear-memory region or peripheral window on read or write.
type MemoryViolation struct {
	Addr uint32
}

func (e *MemoryViolation) Error() string {
	return fmt.Sprintf("memory violation at %#08x", e.Addr)
}

// DecodeError is returned by the RV32I core for an opcode it does not
// recognize. The Thumb core never returns this: an unhandled Thumb opcode
// is logged and skipped instead (see spec §4.3, §9 open question ii).
type DecodeError struct {
	PC uint32
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error at %#08x", e.PC)
}

// ConfigError wraps a startup-time configuration problem: invalid YAML, a
// missing firmware path, an unsupported schema_version, or an out-of-range
// max_steps. It is never returned from Step.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Msg
}
