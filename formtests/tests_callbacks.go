package formtests

import (
	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoCallbackTests(t *ldtest.T) {
	t.RequireCapability(servicedef.CapabilityCallbacks)

	t.Run("bound and settled events arrive in order", func(t *ldtest.T) {
		page := NewPage(t)
		page.AddItem(t, "")
		mock := page.SetMockResponse(t, autosuggestPath, taxonQuery("peippo"))

		page.Autosuggest(t, 0, "peippo")
		bound := page.RequireCallEvent(t, mocking.EventBound)
		assert.Equal(t, autosuggestPath, bound.Path)
		assert.Equal(t, mock.ID(), bound.MockID)
		assert.True(t, taxonQuery("peippo").Equal(bound.Query))

		mock.Resolve(t, suggestion("Fringilla coelebs"), false)
		settled := page.RequireCallEvent(t, mocking.EventSettled)
		assert.Equal(t, mock.ID(), settled.MockID)
		assert.Equal(t, mocking.StateResolved.String(), settled.State)

		mock.Remove(t)
		page.WaitUntilIdle(t, 0)
	})

	t.Run("removal is reported as a settlement", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		page.Upload(t, "kuva.jpg")
		page.RequireCallEvent(t, mocking.EventBound)

		mock.Remove(t)
		settled := page.RequireCallEvent(t, mocking.EventSettled)
		assert.Equal(t, mocking.StateRemoved.String(), settled.State)
		page.WaitUntilIdle(t, 0)
	})

	t.Run("unmatched call is reported with its error", func(t *ldtest.T) {
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{Strict: boolPtr(true)}))
		page.Upload(t, "kuva.jpg")
		e := page.RequireCallEvent(t, mocking.EventUnmatched)
		if assert.NotNil(t, e.Error) {
			assert.Equal(t, mocking.CodeUnmatchedCall, e.Error.Code)
		}
		page.WaitUntilIdle(t, 0)
	})
}
