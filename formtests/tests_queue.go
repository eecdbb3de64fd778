package formtests

import (
	"context"

	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoQueueTests(t *ldtest.T) {
	t.Run("calls bind in create order and settle in any order", func(t *ldtest.T) {
		page := NewPage(t)
		page.AddItem(t, "")
		page.AddItem(t, "")

		queue := page.CreateMockResponseQueue(t, autosuggestPath, taxonQuery("lintu"))
		a := queue.Create(t)
		b := queue.Create(t)

		assert.Equal(t, a.ID(), page.Autosuggest(t, 0, "lintu").MockID)
		assert.Equal(t, b.ID(), page.Autosuggest(t, 1, "lintu").MockID)

		b.Resolve(t, suggestion("mustarastas"), false)
		require.Eventually(t, func() bool {
			state, err := page.Probe().Busy(context.Background())
			return err == nil && state.PendingJobs == 1
		}, awaitEventTimeout, pollInterval)
		assert.Equal(t, []string{"lintu", "mustarastas"}, page.FormState(t).Taxa)
		assert.True(t, page.IsBusy(t))

		a.Resolve(t, suggestion("peippo"), false)
		page.WaitUntilIdle(t, 0)
		assert.Equal(t, []string{"peippo", "mustarastas"}, page.FormState(t).Taxa)

		page.RemoveItem(t, 0)
		assert.Equal(t, []string{"mustarastas"}, page.FormState(t).Taxa)
		queue.Remove(t)
	})

	t.Run("suggestion for a removed item is dropped", func(t *ldtest.T) {
		page := NewPage(t)
		page.AddItem(t, "")
		page.AddItem(t, "")

		queue := page.CreateMockResponseQueue(t, autosuggestPath, taxonQuery("lintu"))
		a := queue.Create(t)
		b := queue.Create(t)
		page.Autosuggest(t, 0, "lintu")
		page.Autosuggest(t, 1, "lintu")
		page.RemoveItem(t, 0)

		b.Resolve(t, suggestion("peippo"), false)
		a.Resolve(t, suggestion("mustarastas"), false)
		page.WaitUntilIdle(t, 0)

		state := page.FormState(t)
		assert.Equal(t, []string{"peippo"}, state.Taxa)
		assert.Empty(t, state.FailedJobs)
		queue.Remove(t)
	})

	t.Run("call arriving before create waits for it", func(t *ldtest.T) {
		t.RequireCapability(servicedef.CapabilityRendezvous)
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{Rendezvous: boolPtr(true)}))
		queue := page.CreateMockResponseQueue(t, uploadPath, ldvalue.Null())

		route := page.Upload(t, "kuva.jpg")
		assert.Equal(t, string(mocking.EventWaiting), route.Kind)
		assert.True(t, page.IsBusy(t))

		mock := queue.Create(t)
		mock.Resolve(t, ldvalue.ObjectBuild().Set("id", ldvalue.String("MM.7")).Build(), false)
		page.WaitUntilIdle(t, 0)
		assert.Equal(t, []string{"MM.7"}, page.FormState(t).Images)
		queue.Remove(t)
	})

	t.Run("call with no slot left fails without rendezvous", func(t *ldtest.T) {
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{Rendezvous: boolPtr(false)}))
		queue := page.CreateMockResponseQueue(t, uploadPath, ldvalue.Null())
		mock := queue.Create(t)

		page.Upload(t, "a.jpg")
		route := page.Upload(t, "b.jpg")
		assert.Equal(t, string(mocking.EventFailed), route.Kind)
		if assert.NotNil(t, route.Error) {
			assert.Equal(t, mocking.CodeQueueExhausted, route.Error.Code)
		}

		mock.Resolve(t, ldvalue.ObjectBuild().Set("id", ldvalue.String("MM.1")).Build(), false)
		page.WaitUntilIdle(t, 0)
		state := page.FormState(t)
		assert.Equal(t, []string{"MM.1"}, state.Images)
		assert.Len(t, state.FailedJobs, 1)
		queue.Remove(t)
	})

	t.Run("waiting calls are bounded", func(t *ldtest.T) {
		t.RequireCapability(servicedef.CapabilityRendezvous)
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{
			Rendezvous:    boolPtr(true),
			QueueCapacity: ldvalue.NewOptionalInt(1),
		}))
		queue := page.CreateMockResponseQueue(t, uploadPath, ldvalue.Null())

		assert.Equal(t, string(mocking.EventWaiting), page.Upload(t, "a.jpg").Kind)
		route := page.Upload(t, "b.jpg")
		assert.Equal(t, string(mocking.EventFailed), route.Kind)
		if assert.NotNil(t, route.Error) {
			assert.Equal(t, mocking.CodeQueueExhausted, route.Error.Code)
		}

		queue.Remove(t)
		page.WaitUntilIdle(t, 0)
		assert.Len(t, page.FormState(t).FailedJobs, 2)
	})

	t.Run("removing the queue releases bound calls", func(t *ldtest.T) {
		page := NewPage(t)
		queue := page.CreateMockResponseQueue(t, geocodePath, ldvalue.Null())
		queue.Create(t)
		page.Geocode(t, 60.2, 24.9)
		assert.True(t, page.IsBusy(t))

		queue.Remove(t)
		page.WaitUntilIdle(t, 0)
		assert.Len(t, page.FormState(t).FailedJobs, 1)
		assert.Empty(t, page.RegisteredMocks(t))
	})
}
