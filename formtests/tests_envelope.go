package formtests

import (
	"github.com/laji-form/mock-contract-tests/framework/ldtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoEnvelopeTests(t *ldtest.T) {
	t.Run("raw payload is delivered verbatim", func(t *ldtest.T) {
		page := NewPage(t)
		page.SetField(t, "count", "300")
		mock := page.SetMockResponse(t, validatePrefix+"count",
			ldvalue.ObjectBuild().Set("value", ldvalue.String("300")).Build())

		page.Validate(t, "count")
		mock.Resolve(t, ldvalue.Parse([]byte(`{"status":422,"json":{"errors":["Count must be at most 100"]}}`)), true)
		page.WaitUntilIdle(t, 0)

		state := page.FormState(t)
		assert.Equal(t, []string{"Count must be at most 100"}, state.Errors["count"])
		assert.Empty(t, state.FailedJobs)
		mock.Remove(t)
	})

	t.Run("default envelope is a success", func(t *ldtest.T) {
		page := NewPage(t)
		page.SetField(t, "count", "3")
		mock := page.SetMockResponse(t, validatePrefix+"count",
			ldvalue.ObjectBuild().Set("value", ldvalue.String("3")).Build())

		page.Validate(t, "count")
		mock.Resolve(t, ldvalue.ObjectBuild().Set("errors", ldvalue.ArrayOf(ldvalue.String("ignored"))).Build(), false)
		page.WaitUntilIdle(t, 0)

		state := page.FormState(t)
		assert.Empty(t, state.Errors)
		assert.Empty(t, state.FailedJobs)
		mock.Remove(t)
	})

	t.Run("rejection fails the job", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())

		page.Upload(t, "kuva.jpg")
		mock.Reject(t, ldvalue.String("quota exceeded"), false)
		page.WaitUntilIdle(t, 0)

		state := page.FormState(t)
		assert.Empty(t, state.Images)
		require.Len(t, state.FailedJobs, 1)
		assert.Contains(t, state.FailedJobs[0], "quota exceeded")
		mock.Remove(t)
	})

	t.Run("raw failure status is seen by the form", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())

		page.Upload(t, "kuva.jpg")
		mock.Resolve(t, ldvalue.Parse([]byte(`{"status":503,"json":null}`)), true)
		page.WaitUntilIdle(t, 0)

		state := page.FormState(t)
		require.Len(t, state.FailedJobs, 1)
		assert.Contains(t, state.FailedJobs[0], "503")
		mock.Remove(t)
	})
}
