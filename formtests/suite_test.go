package formtests

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/laji-form/mock-contract-tests/formpage"
	"github.com/laji-form/mock-contract-tests/framework/harness"
	"github.com/laji-form/mock-contract-tests/framework/ldtest"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// withPageService runs the real page service in-process and a harness connected to it.
func withPageService(t *testing.T, action func(*harness.TestHarness)) {
	config := formpage.DefaultConfig()
	config.PollInterval = time.Millisecond * 5
	service := formpage.NewService(config, nil)
	httphelpers.WithServer(service, func(server *httptest.Server) {
		defer service.CloseAll()
		h, err := harness.NewTestHarness(server.URL, "localhost", 0, time.Second, nil, io.Discard)
		require.NoError(t, err)
		defer func() { _ = h.Close() }()
		action(h)
	})
}

func describeFailures(results ldtest.Results) string {
	var lines []string
	for _, f := range results.Failures {
		for _, err := range f.Errors {
			lines = append(lines, ldtest.TestFailure{ID: f.TestID, Err: err}.Error())
		}
	}
	return strings.Join(lines, "\n")
}

func TestSuitePassesAgainstPageService(t *testing.T) {
	withPageService(t, func(h *harness.TestHarness) {
		results := RunTestSuite(h, nil, nil)
		assert.True(t, results.OK(), describeFailures(results))
		assert.Greater(t, len(results.Tests), 20)
	})
}

func TestUnremovedMocksAreReportedOnce(t *testing.T) {
	withPageService(t, func(h *harness.TestHarness) {
		config := ldtest.TestConfiguration{
			Capabilities: h.TestServiceInfo().Capabilities,
			Context:      FormTestContext{harness: h},
		}
		results := ldtest.Run(config, func(t *ldtest.T) {
			t.Run("forgetful", func(t *ldtest.T) {
				page := NewPage(t)
				page.SetMockResponse(t, uploadPath, ldvalue.Null())
				page.CreateMockResponseQueue(t, geocodePath, ldvalue.Null())
				removed := page.SetMockResponse(t, validatePrefix+"count", ldvalue.Null())
				removed.Remove(t)
			})
		})

		require.Len(t, results.Failures, 1)
		failure := results.Failures[0]
		assert.Equal(t, "forgetful", failure.TestID.String())
		require.Len(t, failure.Errors, 1)
		message := failure.Errors[0].Error()
		assert.Contains(t, message, "did not remove 2 mock(s)")
		assert.Contains(t, message, uploadPath)
		assert.Contains(t, message, geocodePath)
	})
}

func TestLeakReportComesAfterTestFailures(t *testing.T) {
	withPageService(t, func(h *harness.TestHarness) {
		config := ldtest.TestConfiguration{
			Capabilities: h.TestServiceInfo().Capabilities,
			Context:      FormTestContext{harness: h},
		}
		results := ldtest.Run(config, func(t *ldtest.T) {
			t.Run("fails", func(t *ldtest.T) {
				page := NewPage(t)
				page.SetMockResponse(t, uploadPath, ldvalue.Null())
				assert.True(t, page.IsBusy(t), "expected to be busy")
			})
		})

		require.Len(t, results.Failures, 1)
		errs := results.Failures[0].Errors
		require.Len(t, errs, 2)
		assert.Contains(t, errs[0].Error(), "expected to be busy")
		assert.Contains(t, errs[1].Error(), "did not remove 1 mock(s)")
	})
}

func TestRemovingKeyCountsAsRemovingItsMocks(t *testing.T) {
	withPageService(t, func(h *harness.TestHarness) {
		config := ldtest.TestConfiguration{
			Capabilities: h.TestServiceInfo().Capabilities,
			Context:      FormTestContext{harness: h},
		}
		results := ldtest.Run(config, func(t *ldtest.T) {
			t.Run("removes by key", func(t *ldtest.T) {
				page := NewPage(t)
				query := ldvalue.ObjectBuild().Set("q", ldvalue.String("peippo")).Build()
				page.SetMockResponse(t, autosuggestPath, query)
				page.CreateMockResponseQueue(t, geocodePath, ldvalue.Null())
				page.RemoveKey(t, autosuggestPath, query)
				page.RemoveKey(t, geocodePath, ldvalue.Null())
			})
		})

		assert.True(t, results.OK(), describeFailures(results))
	})
}
