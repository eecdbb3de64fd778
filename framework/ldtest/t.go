package ldtest

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/laji-form/mock-contract-tests/framework"
)

// TestConfiguration holds the parameters for a whole test run.
type TestConfiguration struct {
	// Filter selects tests to run. A nil Filter runs everything.
	Filter Filter

	// Capabilities are the capabilities reported by the page service.
	Capabilities Capabilities

	// TestLogger receives progress notifications. A nil TestLogger discards them.
	TestLogger TestLogger

	// Context is an arbitrary value that domain-specific test code can retrieve with T.Context.
	Context interface{}
}

type environment struct {
	config     TestConfiguration
	results    Results
	testLogger TestLogger
}

// T represents a test or subtest. It implements the same basic functionality as Go's
// testing.T, outside of the Go test runner, so it can be passed to the assert and require
// packages.
type T struct {
	env         *environment
	id          TestID
	debugLogger framework.CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	cleanups    []func()
}

// Run runs the top-level test action and returns the results of it and all its subtests.
func Run(config TestConfiguration, action func(*T)) Results {
	env := &environment{config: config, testLogger: config.TestLogger}
	if env.testLogger == nil {
		env.testLogger = nullTestLogger{}
	}
	t := &T{env: env}
	t.run(action)
	return env.results
}

func (t *T) run(action func(*T)) {
	defer func() {
		if r := recover(); r != nil {
			t.recordPanic(r)
		}
		t.runCleanups()
		if t.skipped {
			return
		}
		result := TestResult{TestID: t.id, Errors: t.errors}
		t.env.results.Tests = append(t.env.results.Tests, result)
		if t.failed {
			t.env.results.Failures = append(t.env.results.Failures, result)
		}
	}()

	action(t)
}

func (t *T) recordPanic(r interface{}) {
	if t.skipped {
		return
	}
	t.failed = true
	var addError error
	if _, ok := r.(*T); ok {
		if len(t.errors) == 0 {
			addError = errors.New("test failed with no failure message")
		}
	} else {
		addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
	}
	if addError != nil {
		t.errors = append(t.errors, addError)
		t.env.testLogger.TestError(t.id, addError)
	}
}

func (t *T) runCleanups() {
	for len(t.cleanups) > 0 {
		last := len(t.cleanups) - 1
		cleanup := t.cleanups[last]
		t.cleanups = t.cleanups[:last]
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.recordPanic(r)
				}
			}()
			cleanup()
		}()
	}
}

// ID returns the identifier of the test.
func (t *T) ID() TestID {
	return t.id
}

// Context returns the value passed as TestConfiguration.Context.
func (t *T) Context() interface{} {
	return t.env.config.Context
}

// Capabilities returns the capabilities reported by the page service.
func (t *T) Capabilities() Capabilities {
	return t.env.config.Capabilities
}

// Run runs a subtest.
func (t *T) Run(name string, action func(*T)) {
	id := t.id.Plus(name)

	t.env.testLogger.TestStarted(id)
	if t.env.config.Filter != nil && !t.env.config.Filter(id) {
		t.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		return
	}
	t1 := &T{
		id:  id,
		env: t.env,
	}
	t1.run(action)
	if t1.skipped {
		t.env.testLogger.TestSkipped(id, t1.skipReason)
	} else {
		t.env.testLogger.TestFinished(id, t1.failed, t1.debugLogger.Output())
	}
}

// Defer schedules a function to run when the test ends, in reverse order of scheduling. It
// runs even if the test fails or panics; failures it reports still count for this test.
func (t *T) Defer(cleanup func()) {
	t.cleanups = append(t.cleanups, cleanup)
}

// Errorf is called by assertions to log a test failure. It does not cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.failed = true
	err := fmt.Errorf(format, args...)
	t.errors = append(t.errors, err)
	t.env.testLogger.TestError(t.id, err)
}

// FailNow is called by the require package to stop the test immediately.
func (t *T) FailNow() {
	panic(t)
}

// Failed returns true if the test has failed so far.
func (t *T) Failed() bool {
	return t.failed
}

// Skip stops the test and reports it as skipped.
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// SkipWithReason is Skip with an explanation for the test log.
func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// RequireCapability skips the test if the page service did not report the capability.
func (t *T) RequireCapability(capability string) {
	if !t.Capabilities().Has(capability) {
		t.SkipWithReason(fmt.Sprintf("page service does not have capability %q", capability))
	}
}

// Debug adds a line to the test's debug output.
func (t *T) Debug(message string, args ...interface{}) {
	t.debugLogger.Printf(message, args...)
}

// DebugLogger returns the logger for the test's debug output.
func (t *T) DebugLogger() framework.Logger {
	return &t.debugLogger
}
