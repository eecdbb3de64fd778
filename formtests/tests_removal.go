package formtests

import (
	"github.com/laji-form/mock-contract-tests/framework/ldtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoRemovalTests(t *ldtest.T) {
	t.Run("removal releases a suspended call", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, geocodePath, ldvalue.Null())
		page.Geocode(t, 60.2, 24.9)
		assert.True(t, page.IsBusy(t))

		mock.Remove(t)
		page.WaitUntilIdle(t, 0)
		state := page.FormState(t)
		require.Len(t, state.FailedJobs, 1)
		assert.Contains(t, state.FailedJobs[0], "removed")
	})

	t.Run("removing a key is idempotent", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		page.RemoveKey(t, uploadPath, ldvalue.Null())
		page.RemoveKey(t, uploadPath, ldvalue.Null())
		page.RemoveKey(t, geocodePath, ldvalue.Null())
		assert.Empty(t, page.RegisteredMocks(t))
		mock.Remove(t)
	})

	t.Run("removal does not undo a settlement", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, geocodePath, ldvalue.Null())
		page.Geocode(t, 60.2, 24.9)
		mock.Resolve(t, geocoderResult("Viikki, Helsinki"), false)
		page.WaitUntilIdle(t, 0)
		mock.Remove(t)

		state := page.FormState(t)
		assert.Equal(t, "Viikki, Helsinki", state.Fields["locality"])
		assert.Empty(t, state.FailedJobs)
	})

	t.Run("key can be registered again after removal", func(t *ldtest.T) {
		page := NewPage(t)
		first := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		first.Remove(t)
		second := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		assert.NotEqual(t, first.ID(), second.ID())
		second.Remove(t)
	})
}
