// Package testrunner drives the CI-headless test mode (spec §6): build a
// machine from a test script and optional system manifest, run it to
// completion or failure, evaluate its assertions against the captured
// UART output and stop reason, and hand back a result ready to be
// written as JSON, a raw UART log, and a JUnit XML report.
package testrunner

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labwired/labwired-go/internal/loader"
	"github.com/labwired/labwired-go/internal/machine"
	"github.com/labwired/labwired-go/internal/metrics"
	"github.com/labwired/labwired-go/internal/simerr"
	"github.com/labwired/labwired-go/internal/sysconfig"
	"github.com/labwired/labwired-go/internal/testscript"
	"github.com/labwired/labwired-go/internal/uart"
)

// Exit codes the CLI's test subcommand returns, matching the four-way
// split spec §6 describes: clean pass, assertion failure, a startup
// configuration problem, and an unrecoverable runtime error.
const (
	ExitPass         = 0
	ExitAssertFail   = 1
	ExitConfigError  = 2
	ExitRuntimeError = 3
)

// Options configures one test run. Script is required; Firmware/System
// paths override what the script names, matching the CLI flags'
// precedence over script-provided defaults.
type Options struct {
	ScriptPath       string
	FirmwareOverride string
	SystemOverride   string
	MaxStepsOverride *uint64
	NoUARTStdout     bool
}

// AssertionResult pairs one evaluated assertion with its pass/fail
// outcome.
type AssertionResult struct {
	Assertion testscript.Assertion `json:"assertion"`
	Passed    bool                 `json:"passed"`
}

// Config records the resolved input paths the run actually used, for the
// result artifact's provenance.
type Config struct {
	Firmware string `json:"firmware"`
	System   string `json:"system,omitempty"`
	Script   string `json:"script"`
}

// Result is the run outcome: spec §6's result.json shape.
type Result struct {
	Status        string                `json:"status"`
	StepsExecuted uint64                `json:"steps_executed"`
	Cycles        uint64                `json:"cycles"`
	Instructions  uint64                `json:"instructions"`
	StopReason    testscript.StopReason `json:"stop_reason"`
	Assertions    []AssertionResult     `json:"assertions"`
	FirmwareHash  string                `json:"firmware_hash"`
	Config        Config                `json:"config"`

	UART     []byte        `json:"-"`
	Duration time.Duration `json:"-"`
}

// resolvePath joins value against script's directory unless value is
// already absolute, matching the script-relative path convention test
// scripts use for their inputs.
func resolvePath(scriptPath, value string) string {
	if value == "" || filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(filepath.Dir(scriptPath), value)
}

// Run executes one test script end to end and returns the result. The
// only error this returns is a startup-time ConfigError; everything that
// happens once the machine starts stepping is folded into Result's
// status/stop_reason instead, per spec §7's distinction between fatal
// configuration problems and recorded run outcomes.
func Run(opts Options) (*Result, error) {
	script, err := testscript.LoadFile(opts.ScriptPath)
	if err != nil {
		return nil, err
	}

	firmwarePath := opts.FirmwareOverride
	if firmwarePath == "" {
		firmwarePath = resolvePath(opts.ScriptPath, script.Inputs.Firmware)
	}
	systemPath := opts.SystemOverride
	if systemPath == "" && script.Inputs.System != "" {
		systemPath = resolvePath(opts.ScriptPath, script.Inputs.System)
	}

	maxSteps := script.Limits.MaxSteps
	if opts.MaxStepsOverride != nil {
		maxSteps = *opts.MaxStepsOverride
	}
	if maxSteps > testscript.MaxStepsHardGuard {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf(
			"max_steps %d exceeds the hard guard of %d", maxSteps, testscript.MaxStepsHardGuard)}
	}

	firmwareBytes, err := os.ReadFile(firmwarePath)
	if err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("reading firmware %s: %v", firmwarePath, err)}
	}

	sink := &uart.Sink{}
	var echoFn func(b byte)
	if !opts.NoUARTStdout {
		echoFn = func(b byte) { os.Stdout.Write([]byte{b}) }
	}

	sysBus, _, err := sysconfig.LoadBus(systemPath, sysconfig.UARTOptions{Sink: sink, Echo: !opts.NoUARTStdout, EchoFn: echoFn})
	if err != nil {
		return nil, err
	}

	image, err := loader.Load(firmwarePath, 0)
	if err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("loading firmware %s: %v", firmwarePath, err)}
	}

	perf := metrics.New()
	m := machine.WithBus(sysBus)
	m.Observers = append(m.Observers, perf)
	m.LoadFirmware(image)

	start := time.Now()
	stopReason := testscript.StopMaxSteps
	var stepsExecuted uint64
	simErrorHappened := false

	for step := uint64(0); step < maxSteps; step++ {
		if script.Limits.WallTimeMs > 0 && uint64(time.Since(start).Milliseconds()) >= script.Limits.WallTimeMs {
			stopReason = testscript.StopWallTime
			break
		}
		stepsExecuted = step + 1
		if err := m.Step(); err != nil {
			simErrorHappened = true
			stopReason = classifyError(err)
			break
		}
	}
	duration := time.Since(start)

	uartText := string(sink.Bytes())
	assertionResults, allPassed, expectedStopMatched := evaluateAssertions(script.Assertions, uartText, stopReason)

	status := "pass"
	switch {
	case !allPassed:
		status = "fail"
	case stopReason == testscript.StopWallTime && !expectedStopMatched:
		status = "fail"
	case simErrorHappened && !expectedStopMatched:
		status = "error"
	}

	hash := sha256.Sum256(firmwareBytes)
	return &Result{
		Status:        status,
		StepsExecuted: stepsExecuted,
		Cycles:        perf.Cycles(),
		Instructions:  perf.Instructions(),
		StopReason:    stopReason,
		Assertions:    assertionResults,
		FirmwareHash:  fmt.Sprintf("%x", hash),
		Config:        Config{Firmware: firmwarePath, System: systemPath, Script: opts.ScriptPath},
		UART:          sink.Bytes(),
		Duration:      duration,
	}, nil
}

// ExitCode maps a Result's status (and whether a simulation error was
// recorded without a matching expected_stop_reason assertion) onto the
// process exit code the CLI returns.
func (r *Result) ExitCode() int {
	switch r.Status {
	case "fail":
		return ExitAssertFail
	case "error":
		return ExitRuntimeError
	default:
		return ExitPass
	}
}

func classifyError(err error) testscript.StopReason {
	switch err.(type) {
	case *simerr.MemoryViolation:
		return testscript.StopMemoryViolation
	case *simerr.DecodeError:
		return testscript.StopDecodeError
	default:
		return testscript.StopHalt
	}
}

func evaluateAssertions(assertions []testscript.Assertion, uartText string, stopReason testscript.StopReason) ([]AssertionResult, bool, bool) {
	results := make([]AssertionResult, 0, len(assertions))
	allPassed := true
	expectedStopMatched := false

	for _, a := range assertions {
		var passed bool
		switch a.Kind() {
		case "uart_contains":
			passed = strings.Contains(uartText, a.UARTContains)
		case "uart_regex":
			passed = simpleRegexIsMatch(a.UARTRegex, uartText)
		case "expected_stop_reason":
			passed = a.ExpectedStopReason == stopReason
			if passed {
				expectedStopMatched = true
			}
		}
		if !passed {
			allPassed = false
		}
		results = append(results, AssertionResult{Assertion: a, Passed: passed})
	}
	return results, allPassed, expectedStopMatched
}

// simpleRegexIsMatch is a deliberately small matcher supporting '^'/'$'
// anchors, '.' (any char), and '*' (Kleene star on the preceding atom) —
// enough for the uart_regex assertions test scripts actually write,
// without pulling in a full regex engine for one CI-mode feature.
func simpleRegexIsMatch(pattern, text string) bool {
	patRunes := []rune(pattern)
	textRunes := []rune(text)

	if len(patRunes) > 0 && patRunes[0] == '^' {
		return matchHere(patRunes[1:], textRunes)
	}
	for start := 0; start <= len(textRunes); start++ {
		if matchHere(patRunes, textRunes[start:]) {
			return true
		}
	}
	return false
}

func charEq(pat, ch rune) bool {
	return pat == '.' || pat == ch
}

func matchHere(pat, text []rune) bool {
	if len(pat) == 0 {
		return true
	}
	if len(pat) >= 2 && pat[1] == '*' {
		return matchStar(pat[0], pat[2:], text)
	}
	if pat[0] == '$' && len(pat) == 1 {
		return len(text) == 0
	}
	if len(text) > 0 && charEq(pat[0], text[0]) {
		return matchHere(pat[1:], text[1:])
	}
	return false
}

func matchStar(ch rune, pat, text []rune) bool {
	i := 0
	for {
		if matchHere(pat, text[i:]) {
			return true
		}
		if i >= len(text) {
			return false
		}
		if !charEq(ch, text[i]) {
			return false
		}
		i++
	}
}
