package ldtest

import (
	"errors"
	"testing"

	"github.com/laji-form/mock-contract-tests/framework"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTestLogger struct {
	started  []string
	finished map[string]bool
	skipped  map[string]string
}

func newRecordingTestLogger() *recordingTestLogger {
	return &recordingTestLogger{finished: make(map[string]bool), skipped: make(map[string]string)}
}

func (r *recordingTestLogger) TestStarted(id TestID)          { r.started = append(r.started, id.String()) }
func (r *recordingTestLogger) TestError(id TestID, err error) {}
func (r *recordingTestLogger) TestFinished(id TestID, failed bool, _ framework.CapturedOutput) {
	r.finished[id.String()] = failed
}
func (r *recordingTestLogger) TestSkipped(id TestID, reason string) { r.skipped[id.String()] = reason }

func TestRunCollectsFailures(t *testing.T) {
	logger := newRecordingTestLogger()
	results := Run(TestConfiguration{TestLogger: logger}, func(t *T) {
		t.Run("passes", func(t *T) {})
		t.Run("fails", func(t *T) {
			assert.Equal(t, 1, 2)
		})
		t.Run("fails now", func(t *T) {
			require.Fail(t, "stop here")
			t.Errorf("not reached")
		})
	})

	assert.False(t, results.OK())
	require.Len(t, results.Failures, 2)
	assert.Equal(t, "fails", results.Failures[0].TestID.String())
	assert.Equal(t, "fails now", results.Failures[1].TestID.String())
	assert.Len(t, results.Failures[1].Errors, 1)
	assert.Equal(t, []string{"passes", "fails", "fails now"}, logger.started)
	assert.False(t, logger.finished["passes"])
	assert.True(t, logger.finished["fails"])
}

func TestRunReportsUnexpectedPanic(t *testing.T) {
	results := Run(TestConfiguration{}, func(t *T) {
		t.Run("panics", func(t *T) {
			panic(errors.New("boom"))
		})
	})
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "boom")
}

func TestSkipWithReasonAndCapabilities(t *testing.T) {
	logger := newRecordingTestLogger()
	results := Run(TestConfiguration{TestLogger: logger, Capabilities: Capabilities{"rendezvous"}}, func(t *T) {
		t.Run("has capability", func(t *T) {
			t.RequireCapability("rendezvous")
		})
		t.Run("lacks capability", func(t *T) {
			t.RequireCapability("fallthrough")
			t.Errorf("not reached")
		})
	})
	assert.True(t, results.OK())
	assert.Contains(t, logger.skipped["lacks capability"], `"fallthrough"`)
	_, finished := logger.finished["has capability"]
	assert.True(t, finished)
}

func TestDeferRunsInReverseOrderAndCanFailTheTest(t *testing.T) {
	var order []int
	results := Run(TestConfiguration{}, func(t *T) {
		t.Run("cleanups", func(t *T) {
			t.Defer(func() { order = append(order, 1) })
			t.Defer(func() {
				order = append(order, 2)
				t.Errorf("leaked something")
			})
			require.Fail(t, "the real failure")
		})
	})
	assert.Equal(t, []int{2, 1}, order)
	require.Len(t, results.Failures, 1)
	errs := results.Failures[0].Errors
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "the real failure")
	assert.Contains(t, errs[1].Error(), "leaked something")
}

func TestFilterExcludesTests(t *testing.T) {
	var filters RegexFilters
	require.NoError(t, filters.MustNotMatch.Set("^queue/"))
	logger := newRecordingTestLogger()
	ran := map[string]bool{}
	Run(TestConfiguration{Filter: filters.AsFilter, TestLogger: logger}, func(t *T) {
		t.Run("queue", func(t *T) {
			t.Run("fifo", func(t *T) { ran["queue/fifo"] = true })
		})
		t.Run("single", func(t *T) { ran["single"] = true })
	})
	assert.False(t, ran["queue/fifo"])
	assert.True(t, ran["single"])
	assert.Equal(t, "excluded by filter parameters", logger.skipped["queue/fifo"])
	assert.Equal(t, `skip any matching "^queue/"`, filters.Describe())
}

func TestTestIDPlusDoesNotShareStorage(t *testing.T) {
	parent := TestID{Path: make([]string, 1, 4)}
	parent.Path[0] = "a"
	b := parent.Plus("b")
	c := parent.Plus("c")
	assert.Equal(t, "a/b", b.String())
	assert.Equal(t, "a/c", c.String())
}
