package formtests

import (
	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoSingleMockTests(t *ldtest.T) {
	t.Run("resolved mock delivers payload to the form", func(t *ldtest.T) {
		page := NewPage(t)
		page.AddItem(t, "")
		mock := page.SetMockResponse(t, autosuggestPath, taxonQuery("mustarastas"))

		route := page.Autosuggest(t, 0, "mustarastas")
		assert.Equal(t, string(mocking.EventBound), route.Kind)
		assert.Equal(t, mock.ID(), route.MockID)

		mock.Resolve(t, suggestion("Turdus merula"), false)
		page.WaitUntilIdle(t, 0)
		assert.Equal(t, []string{"Turdus merula"}, page.FormState(t).Taxa)
		mock.Remove(t)
	})

	t.Run("mock resolved before its call arrives", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		mock.Resolve(t, ldvalue.ObjectBuild().Set("id", ldvalue.String("MM.1")).Build(), false)

		page.Upload(t, "kuva.jpg")
		page.WaitUntilIdle(t, 0)
		assert.Equal(t, []string{"MM.1"}, page.FormState(t).Images)
		mock.Remove(t)
	})

	t.Run("query is part of the key", func(t *ldtest.T) {
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{Strict: boolPtr(true)}))
		page.AddItem(t, "")
		mock := page.SetMockResponse(t, autosuggestPath, taxonQuery("peippo"))

		route := page.Autosuggest(t, 0, "pei")
		assert.Equal(t, string(mocking.EventUnmatched), route.Kind)
		mock.Remove(t)
	})

	t.Run("registering a key twice fails", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, geocodePath, ldvalue.Null())
		_, err := page.TrySetMockResponse(geocodePath, ldvalue.Null())
		var duplicate *mocking.DuplicateMockError
		require.ErrorAs(t, err, &duplicate)
		assert.Equal(t, geocodePath, duplicate.Key.Path)
		mock.Remove(t)
	})

	t.Run("single mock binds only one call", func(t *ldtest.T) {
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{Strict: boolPtr(true)}))
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())

		first := page.Upload(t, "a.jpg")
		assert.Equal(t, string(mocking.EventBound), first.Kind)
		second := page.Upload(t, "b.jpg")
		assert.Equal(t, string(mocking.EventUnmatched), second.Kind)
		if assert.NotNil(t, second.Error) {
			assert.Equal(t, mocking.CodeUnmatchedCall, second.Error.Code)
		}

		mock.Resolve(t, ldvalue.ObjectBuild().Set("id", ldvalue.String("MM.1")).Build(), false)
		page.WaitUntilIdle(t, 0)
		state := page.FormState(t)
		assert.Equal(t, []string{"MM.1"}, state.Images)
		assert.Len(t, state.FailedJobs, 1)
		mock.Remove(t)
	})

	t.Run("mock cannot be settled twice", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, geocodePath, ldvalue.Null())
		mock.Resolve(t, geocoderResult("Helsinki"), false)

		var settled *mocking.MockSettledError
		require.ErrorAs(t, mock.TryReject(ldvalue.Null(), false), &settled)
		assert.Equal(t, mocking.StateResolved, settled.State)
		mock.Remove(t)
	})
}
