package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/laji-form/mock-contract-tests/formtests"
	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/framework/harness"
	"github.com/laji-form/mock-contract-tests/framework/ldtest"

	"github.com/fatih/color"
)

const defaultPort = 8111
const statusQueryTimeout = time.Second * 10

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}
	if params.noColor {
		color.NoColor = true
	}

	mainDebugLogger := framework.NullLogger()
	if params.debugAll {
		mainDebugLogger = log.New(os.Stdout, "", log.LstdFlags)
	}

	testHarness, err := harness.NewTestHarness(
		params.serviceURL,
		params.host,
		params.port,
		statusQueryTimeout,
		mainDebugLogger,
		os.Stdout,
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Page service error: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = testHarness.Close() }()

	fmt.Println()
	printFilterDescription(params.filters, testHarness.TestServiceInfo().Capabilities)

	fmt.Println("Running test suite")
	testLogger := &ConsoleTestLogger{
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	results := formtests.RunTestSuite(testHarness, params.filters.AsFilter, testLogger)

	fmt.Println()
	PrintResults(results)

	if params.stopServiceAtEnd {
		fmt.Println("Stopping page service")
		if err := testHarness.StopService(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stop page service: %s\n", err)
		}
	}

	if !results.OK() {
		var failed []ldtest.TestID
		for _, f := range results.Failures {
			failed = append(failed, f.TestID)
		}
		fmt.Println()
		fmt.Println("To rerun the failed tests with debug output:")
		fmt.Printf("  %s\n", params.rerunCommand(os.Args[0], failed))
		_ = testHarness.Close()
		os.Exit(1)
	}
}

func printFilterDescription(filters ldtest.RegexFilters, capabilities ldtest.Capabilities) {
	if description := filters.Describe(); description != "" {
		fmt.Println("Some tests will be skipped based on the filter criteria for this test run:")
		for _, line := range strings.Split(description, "\n") {
			fmt.Printf("  %s\n", line)
		}
		fmt.Println()
	}

	var missing []string
	for _, c := range formtests.AllCapabilities {
		if !capabilities.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		fmt.Println("Some tests may be skipped because the page service does not support the following capabilities:")
		fmt.Printf("  %s\n", strings.Join(missing, ", "))
		fmt.Println()
	}
}
