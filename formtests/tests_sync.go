package formtests

import (
	"time"

	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/syncbridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoSyncTests(t *ldtest.T) {
	t.Run("geocoded locality is filled in once idle", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, geocodePath, ldvalue.Null())

		page.Geocode(t, 60.1699, 24.9384)
		assert.True(t, page.IsBusy(t))

		mock.Resolve(t, geocoderResult("Kaisaniemi, Helsinki"), false)
		mock.Remove(t)
		page.WaitUntilIdle(t, 0)

		assert.False(t, page.IsBusy(t))
		assert.Equal(t, "Kaisaniemi, Helsinki", page.FormState(t).Fields["locality"])
	})

	t.Run("idle form is idle immediately", func(t *ldtest.T) {
		page := NewPage(t)
		assert.False(t, page.IsBusy(t))
		page.WaitUntilIdle(t, time.Millisecond*100)
	})

	t.Run("forgotten mock keeps the form busy", func(t *ldtest.T) {
		page := NewPage(t)
		mock := page.SetMockResponse(t, geocodePath, ldvalue.Null())
		page.Geocode(t, 60.2, 24.9)

		err := page.AwaitIdle(time.Millisecond * 200)
		var timeout *syncbridge.SyncTimeoutError
		require.ErrorAs(t, err, &timeout)
		assert.Equal(t, 1, timeout.Last.PendingJobs)
		assert.Contains(t, timeout.Last.Reason, "geocode")

		mock.Remove(t)
		page.WaitUntilIdle(t, 0)
	})

	t.Run("busy reason names every running job", func(t *ldtest.T) {
		page := NewPage(t)
		geocode := page.SetMockResponse(t, geocodePath, ldvalue.Null())
		upload := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		page.Geocode(t, 60.2, 24.9)
		page.Upload(t, "kuva.jpg")

		state := page.BusyState(t)
		assert.Equal(t, 2, state.PendingJobs)
		assert.Equal(t, []string{"geocode", "upload kuva.jpg"}, state.Jobs)

		geocode.Resolve(t, geocoderResult("Helsinki"), false)
		upload.Resolve(t, ldvalue.ObjectBuild().Set("id", ldvalue.String("MM.1")).Build(), false)
		page.WaitUntilIdle(t, 0)
		geocode.Remove(t)
		upload.Remove(t)
	})
}
