/*
 * labwired - Main process.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Command labwired is the simulator CLI: an interactive run mode that
// steps a machine and reports on it, and a "test" subcommand that drives
// a YAML test script through to a pass/fail verdict for CI.
package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"

	getopt "github.com/pborman/getopt/v2"

	"github.com/labwired/labwired-go/internal/loader"
	"github.com/labwired/labwired-go/internal/machine"
	"github.com/labwired/labwired-go/internal/metrics"
	"github.com/labwired/labwired-go/internal/simlog"
	"github.com/labwired/labwired-go/internal/sysconfig"
	"github.com/labwired/labwired-go/internal/testrunner"
	"github.com/labwired/labwired-go/internal/uart"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "test" {
		os.Exit(runTest(os.Args[2:]))
	}
	os.Exit(runInteractive(os.Args[1:]))
}

func newLogger(trace bool) *slog.Logger {
	level := slog.LevelInfo
	if trace {
		level = slog.LevelDebug
	}
	programLevel := new(slog.LevelVar)
	programLevel.Set(level)
	return slog.New(simlog.NewHandler(nil, &slog.HandlerOptions{Level: programLevel}, trace))
}

// runInteractive implements the bare CLI: `labwired --firmware fw.elf`.
// getopt.Parse consults os.Args directly, so args is not read here.
func runInteractive(args []string) int {
	optFirmware := getopt.StringLong("firmware", 'f', "", "Path to the firmware file (ELF or bare binary)")
	optSystem := getopt.StringLong("system", 's', "", "Path to the system manifest (YAML)")
	optTrace := getopt.BoolLong("trace", 't', "Enable instruction-level execution tracing")
	optMaxSteps := getopt.StringLong("max-steps", 0, "20000", "Maximum number of steps to execute")
	optSnapshot := getopt.StringLong("snapshot", 0, "", "Write a register-file snapshot (JSON) to this path when the run stops")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		return testrunner.ExitPass
	}

	logger := newLogger(*optTrace)
	slog.SetDefault(logger)
	logger.Info("Starting labwired simulator")

	if *optFirmware == "" {
		logger.Error("missing required --firmware argument")
		return testrunner.ExitConfigError
	}
	maxSteps, err := strconv.ParseUint(*optMaxSteps, 10, 64)
	if err != nil {
		logger.Error("invalid --max-steps value", "value", *optMaxSteps)
		return testrunner.ExitConfigError
	}

	sink := &uart.Sink{}
	echoFn := func(b byte) { os.Stdout.Write([]byte{b}) }
	sysBus, _, err := sysconfig.LoadBus(*optSystem, sysconfig.UARTOptions{Sink: sink, Echo: true, EchoFn: echoFn})
	if err != nil {
		logger.Error(err.Error())
		return testrunner.ExitConfigError
	}

	logger.Info("loading firmware", "path", *optFirmware)
	image, err := loader.Load(*optFirmware, 0)
	if err != nil {
		logger.Error(err.Error())
		return testrunner.ExitConfigError
	}
	logger.Info("firmware loaded", "entry_point", image.EntryPoint)

	perf := metrics.New()
	m := machine.WithBus(sysBus)
	m.Observers = append(m.Observers, perf)
	m.LoadFirmware(image)

	logger.Info("starting simulation", "initial_pc", m.CPU.PC(), "max_steps", maxSteps)
	for step := uint64(0); step < maxSteps; step++ {
		if err := m.Step(); err != nil {
			logger.Info("simulation stopped", "step", step, "error", err)
			break
		}
		if !*optTrace && step > 0 && step%10000 == 0 {
			logger.Info("progress", "steps", step, "ips", perf.InstructionsPerSecond())
		}
	}

	logger.Info("simulation finished",
		"final_pc", m.CPU.PC(),
		"instructions", perf.Instructions(),
		"cycles", perf.Cycles(),
		"ips", perf.InstructionsPerSecond())

	if *optSnapshot != "" {
		if err := writeSnapshot(m, *optSnapshot); err != nil {
			logger.Error("failed to write snapshot", "path", *optSnapshot, "error", err)
			return testrunner.ExitRuntimeError
		}
	}
	return testrunner.ExitPass
}

func writeSnapshot(m *machine.Machine, path string) error {
	snap, err := m.Snapshot()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// runTest implements `labwired test --script script.yaml [...]`. args
// excludes the leading "test" token; os.Args is rewritten (and not
// restored) so
// getopt.Parse (which always consults os.Args) sees only this
// subcommand's own flags.
func runTest(args []string) int {
	os.Args = append([]string{"labwired test"}, args...)

	optFirmware := getopt.StringLong("firmware", 'f', "", "Path to the firmware file (overrides the script's inputs.firmware)")
	optSystem := getopt.StringLong("system", 's', "", "Path to the system manifest (overrides the script's inputs.system)")
	optScript := getopt.StringLong("script", 'c', "", "Path to the test script (YAML)")
	optMaxSteps := getopt.StringLong("max-steps", 0, "", "Override max_steps (takes precedence over the script)")
	optNoUARTStdout := getopt.BoolLong("no-uart-stdout", 0, "Disable UART stdout echo (still captured for assertions/artifacts)")
	optOutputDir := getopt.StringLong("output-dir", 0, "", "Directory to write test artifacts (result.json, uart.log, junit.xml)")
	optJunit := getopt.StringLong("junit", 0, "", "Optional path to write a JUnit XML report")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		return testrunner.ExitPass
	}

	logger := newLogger(false)
	slog.SetDefault(logger)

	if *optScript == "" {
		logger.Error("missing required --script argument")
		return testrunner.ExitConfigError
	}

	opts := testrunner.Options{
		ScriptPath:       *optScript,
		FirmwareOverride: *optFirmware,
		SystemOverride:   *optSystem,
		NoUARTStdout:     *optNoUARTStdout,
	}
	if *optMaxSteps != "" {
		n, err := strconv.ParseUint(*optMaxSteps, 10, 64)
		if err != nil {
			logger.Error("invalid --max-steps value", "value", *optMaxSteps)
			return testrunner.ExitConfigError
		}
		opts.MaxStepsOverride = &n
	}

	result, err := testrunner.Run(opts)
	if err != nil {
		logger.Error(err.Error())
		return testrunner.ExitConfigError
	}

	for _, a := range result.Assertions {
		if !a.Passed {
			logger.Error("assertion failed", "kind", a.Assertion.Kind(), "uart_len", len(result.UART))
		}
	}

	if *optOutputDir != "" {
		if err := os.MkdirAll(*optOutputDir, 0o755); err != nil {
			logger.Error("failed to create output directory", "dir", *optOutputDir, "error", err)
		} else {
			writeOutputArtifact(logger, result.WriteResultJSON, *optOutputDir+"/result.json", "result.json")
			writeOutputArtifact(logger, result.WriteUARTLog, *optOutputDir+"/uart.log", "uart.log")
			writeOutputArtifact(logger, result.WriteJUnitXML, *optOutputDir+"/junit.xml", "junit.xml")
		}
	}
	if *optJunit != "" {
		writeOutputArtifact(logger, result.WriteJUnitXML, *optJunit, "junit report")
	}

	return result.ExitCode()
}

func writeOutputArtifact(logger *slog.Logger, write func(string) error, path, label string) {
	if err := write(path); err != nil {
		logger.Error("failed to write artifact", "artifact", label, "path", path, "error", err)
	}
}
