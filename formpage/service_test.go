package formpage

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func withService(t *testing.T, action func(*Service, string)) {
	config := DefaultConfig()
	config.PollInterval = time.Millisecond * 5
	service := NewService(config, nil)
	httphelpers.WithServer(service, func(server *httptest.Server) {
		defer service.CloseAll()
		action(service, server.URL)
	})
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func createSession(t *testing.T, baseURL string, params servicedef.CreateSessionParams) string {
	resp := postJSON(t, baseURL, params)
	readBody(t, resp)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.NotEmpty(t, location)
	return baseURL + location
}

func TestServiceStatus(t *testing.T) {
	withService(t, func(_ *Service, baseURL string) {
		resp, err := http.Get(baseURL)
		require.NoError(t, err)
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status servicedef.StatusRep
		require.NoError(t, json.Unmarshal(body, &status))
		assert.Equal(t, ServiceName, status.Name)
		assert.Contains(t, status.Capabilities, servicedef.CapabilityRendezvous)
		assert.Contains(t, status.Capabilities, servicedef.CapabilityStrict)
	})
}

func TestServiceSessionLifecycle(t *testing.T) {
	withService(t, func(service *Service, baseURL string) {
		sessionURL := createSession(t, baseURL, servicedef.CreateSessionParams{Tag: "lifecycle"})
		assert.Equal(t, 1, service.SessionCount())

		resp := postJSON(t, sessionURL, servicedef.CommandParams{
			Command: servicedef.CommandRegisterMock,
			Mock:    &servicedef.MockParams{Path: UploadPath},
		})
		var rep servicedef.MockRep
		require.NoError(t, json.Unmarshal(readBody(t, resp), &rep))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, rep.MockID)

		resp = postJSON(t, sessionURL, servicedef.CommandParams{
			Command: servicedef.CommandRegisterMock,
			Mock:    &servicedef.MockParams{Path: UploadPath},
		})
		info := errorInfoFromBody(t, readBody(t, resp))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, mocking.CodeDuplicateMock, info.Code)
		assert.Equal(t, UploadPath, info.Path)

		resp = postJSON(t, sessionURL, servicedef.CommandParams{
			Command: servicedef.CommandResolveMock,
			Settle:  &servicedef.SettleParams{MockID: 5},
		})
		info = errorInfoFromBody(t, readBody(t, resp))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, mocking.CodeUnknownMock, info.Code)

		resp = postJSON(t, sessionURL, servicedef.CommandParams{Command: "dance"})
		info = errorInfoFromBody(t, readBody(t, resp))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, servicedef.CodeBadRequest, info.Code)

		req, _ := http.NewRequest(http.MethodDelete, sessionURL, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		var leaked servicedef.MockListRep
		require.NoError(t, json.Unmarshal(readBody(t, resp), &leaked))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, leaked.Leaked, 1)
		assert.Equal(t, UploadPath, leaked.Leaked[0].Path)
		assert.Equal(t, 0, service.SessionCount())

		resp = postJSON(t, sessionURL, servicedef.CommandParams{Command: servicedef.CommandListMocks})
		readBody(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServiceStop(t *testing.T) {
	withService(t, func(service *Service, baseURL string) {
		req, _ := http.NewRequest(http.MethodDelete, baseURL, nil)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		readBody(t, resp)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		select {
		case <-service.Stopped():
		case <-time.After(time.Second):
			require.Fail(t, "service did not report being stopped")
		}
	})
}

func TestServicePostsNumberedCallbacks(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(http.StatusAccepted))
	httphelpers.WithServer(handler, func(callbacks *httptest.Server) {
		withService(t, func(_ *Service, baseURL string) {
			sessionURL := createSession(t, baseURL, servicedef.CreateSessionParams{CallbackURL: callbacks.URL + "/events"})

			resp := postJSON(t, sessionURL, servicedef.CommandParams{
				Command: servicedef.CommandRegisterMock,
				Mock:    &servicedef.MockParams{Path: GeocodePath},
			})
			readBody(t, resp)
			resp = postJSON(t, sessionURL, servicedef.CommandParams{
				Command:    servicedef.CommandFormAction,
				FormAction: &servicedef.FormActionParams{Action: servicedef.ActionGeocode, Value: ldvalue.Null()},
			})
			readBody(t, resp)
			resp = postJSON(t, sessionURL, servicedef.CommandParams{
				Command: servicedef.CommandResolveMock,
				Settle:  &servicedef.SettleParams{MockID: 1, Payload: parseJSON(`{"results":[]}`)},
			})
			readBody(t, resp)

			received := make(map[string]servicedef.CallbackEvent)
			var paths []string
			for i := 0; i < 2; i++ {
				info := <-requests
				var event servicedef.CallbackEvent
				require.NoError(t, json.Unmarshal(info.Body, &event))
				received[info.Request.URL.Path] = event
				paths = append(paths, info.Request.URL.Path)
			}
			sort.Strings(paths)
			assert.Equal(t, []string{"/events/1", "/events/2"}, paths)
			assert.Equal(t, string(mocking.EventBound), received["/events/1"].Kind)
			assert.Equal(t, string(mocking.EventSettled), received["/events/2"].Kind)
			assert.Equal(t, mocking.StateResolved.String(), received["/events/2"].State)
		})
	})
}
