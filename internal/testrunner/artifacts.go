package testrunner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteResultJSON writes the pretty-printed result.json artifact spec §6
// describes.
func (r *Result) WriteResultJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WriteUARTLog writes the raw captured UART bytes to path.
func (r *Result) WriteUARTLog(path string) error {
	return os.WriteFile(path, r.UART, 0o644)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// WriteJUnitXML writes a single-testcase JUnit XML report: <failure> if
// status is "fail", <error> if "error", nothing extra if "pass". CI
// systems that only understand JUnit get the same verdict result.json
// carries, with the per-field detail folded into the testcase body text.
func (r *Result) WriteJUnitXML(path string) error {
	if parent := filepath.Dir(path); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return err
		}
	}

	failures, errs := 0, 0
	switch r.Status {
	case "fail":
		failures = 1
	case "error":
		errs = 1
	}

	var details strings.Builder
	fmt.Fprintf(&details, "stop_reason=%s\n", r.StopReason)
	fmt.Fprintf(&details, "steps_executed=%d\n", r.StepsExecuted)
	fmt.Fprintf(&details, "cycles=%d\n", r.Cycles)
	fmt.Fprintf(&details, "instructions=%d\n", r.Instructions)
	fmt.Fprintf(&details, "firmware_hash=%s\n", r.FirmwareHash)
	fmt.Fprintf(&details, "firmware=%s\n", r.Config.Firmware)
	if r.Config.System != "" {
		fmt.Fprintf(&details, "system=%s\n", r.Config.System)
	}
	fmt.Fprintf(&details, "script=%s\n", r.Config.Script)
	if len(r.Assertions) > 0 {
		details.WriteString("assertions:\n")
		for _, a := range r.Assertions {
			fmt.Fprintf(&details, "  - %s: %v\n", a.Assertion.Kind(), a.Passed)
		}
	}

	timeSecs := r.Duration.Seconds()

	var xml strings.Builder
	xml.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&xml, `<testsuite name="labwired" tests="1" failures="%d" errors="%d" time="%.6f">`+"\n", failures, errs, timeSecs)
	xml.WriteString("  <properties>\n")
	fmt.Fprintf(&xml, "    <property name=\"stop_reason\" value=\"%s\"/>\n", xmlEscaper.Replace(string(r.StopReason)))
	fmt.Fprintf(&xml, "    <property name=\"firmware_hash\" value=\"%s\"/>\n", xmlEscaper.Replace(r.FirmwareHash))
	xml.WriteString("  </properties>\n")
	fmt.Fprintf(&xml, "  <testcase classname=\"labwired\" name=\"labwired test\" time=\"%.6f\">\n", timeSecs)

	switch r.Status {
	case "fail":
		fmt.Fprintf(&xml, "    <failure message=\"assertion failure\">%s</failure>\n", xmlEscaper.Replace(details.String()))
	case "error":
		fmt.Fprintf(&xml, "    <error message=\"runtime error\">%s</error>\n", xmlEscaper.Replace(details.String()))
	}

	xml.WriteString("  </testcase>\n")
	xml.WriteString("</testsuite>\n")

	return os.WriteFile(path, []byte(xml.String()), 0o644)
}
