package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/framework/ldtest"

	"github.com/fatih/color"
)

var (
	testNameColor = color.New(color.Bold)
	failedColor   = color.New(color.FgRed, color.Bold)
	errorColor    = color.New(color.FgRed)
	skippedColor  = color.New(color.FgYellow)
	passedColor   = color.New(color.FgGreen, color.Bold)
)

type ConsoleTestLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c *ConsoleTestLogger) TestStarted(id ldtest.TestID) {
	if len(id.Path) == 0 {
		return
	}
	testNameColor.Printf("[%s]\n", id)
}

func (c *ConsoleTestLogger) TestError(id ldtest.TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		errorColor.Printf("  %s\n", line)
	}
}

func (c *ConsoleTestLogger) TestFinished(id ldtest.TestID, failed bool, debugOutput framework.CapturedOutput) {
	if failed {
		failedColor.Printf("  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(color.Output, "    DEBUG ")
	}
}

func (c *ConsoleTestLogger) TestSkipped(id ldtest.TestID, reason string) {
	if reason == "" {
		skippedColor.Printf("  SKIPPED: %s\n", id)
	} else {
		skippedColor.Printf("  SKIPPED: %s (%s)\n", id, reason)
	}
}

// PrintResults writes the summary of a test run.
func PrintResults(results ldtest.Results) {
	if results.OK() {
		passedColor.Printf("All tests passed (%d)\n", len(results.Tests))
		return
	}
	failedColor.Printf("FAILED TESTS (%d of %d):\n", len(results.Failures), len(results.Tests))
	for _, f := range results.Failures {
		fmt.Printf("  * %s\n", f.TestID)
		for _, err := range f.Errors {
			errorColor.Fprintf(os.Stdout, "    %s\n", err)
		}
	}
}
