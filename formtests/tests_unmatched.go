package formtests

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func DoUnmatchedCallTests(t *ldtest.T) {
	t.Run("strict page fails unmatched calls", func(t *ldtest.T) {
		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{Strict: boolPtr(true)}))

		route := page.Geocode(t, 60.2, 24.9)
		assert.Equal(t, string(mocking.EventUnmatched), route.Kind)
		require.NotNil(t, route.Error)
		assert.Equal(t, mocking.CodeUnmatchedCall, route.Error.Code)
		assert.Equal(t, geocodePath, route.Error.Path)

		page.WaitUntilIdle(t, 0)
		assert.Len(t, page.FormState(t).FailedJobs, 1)
	})

	t.Run("lenient page sends unmatched calls upstream", func(t *ldtest.T) {
		t.RequireCapability(servicedef.CapabilityFallthrough)

		upstreamResponse := map[string]interface{}{
			"status":  "OK",
			"results": []interface{}{map[string]string{"formatted_address": "Upstream, Finland"}},
		}
		handler, requests := httphelpers.RecordingHandler(
			httphelpers.HandlerWithJSONResponse(upstreamResponse, nil))
		upstream := requireContext(t).harness.NewMockEndpoint(handler, nil, t.DebugLogger())
		upstream.SetDescription("upstream")
		t.Defer(upstream.Close)

		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{
			Strict:      boolPtr(false),
			FallbackURL: upstream.BaseURL(),
		}))

		route := page.Geocode(t, 60.2, 24.9)
		assert.Equal(t, string(mocking.EventUnmatched), route.Kind)
		assert.Nil(t, route.Error)
		page.WaitUntilIdle(t, 0)

		assert.Equal(t, "Upstream, Finland", page.FormState(t).Fields["locality"])

		select {
		case request := <-requests:
			assert.Equal(t, http.MethodPost, request.Request.Method)
			assert.Equal(t, geocodePath, request.Request.URL.Path)
			var body map[string]float64
			require.NoError(t, json.Unmarshal(request.Body, &body))
			assert.Equal(t, map[string]float64{"lat": 60.2, "lng": 24.9}, body)
		case <-time.After(awaitEventTimeout):
			require.Fail(t, "upstream did not receive the call")
		}
	})

	t.Run("registered mock takes precedence over upstream", func(t *ldtest.T) {
		t.RequireCapability(servicedef.CapabilityFallthrough)

		handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusInternalServerError))
		upstream := requireContext(t).harness.NewMockEndpoint(handler, nil, t.DebugLogger())
		t.Defer(upstream.Close)

		page := NewPage(t, WithPageParams(servicedef.CreateSessionParams{
			Strict:      boolPtr(false),
			FallbackURL: upstream.BaseURL(),
		}))
		mock := page.SetMockResponse(t, uploadPath, ldvalue.Null())
		page.Upload(t, "kuva.jpg")
		mock.Resolve(t, ldvalue.ObjectBuild().Set("id", ldvalue.String("MM.2")).Build(), false)
		page.WaitUntilIdle(t, 0)
		mock.Remove(t)

		assert.Equal(t, []string{"MM.2"}, page.FormState(t).Images)
		assert.Len(t, requests, 0)
	})
}
