package mocking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const testTimeout = time.Second * 2

type callResult struct {
	response Response
	err      error
}

// startCall issues a call in the background and waits until it has been routed.
func startCall(t *testing.T, i *Interceptor, call Call) (<-chan callResult, Event) {
	routed := make(chan Event, 1)
	ctx := WithRouteListener(context.Background(), func(e Event) { routed <- e })
	results := make(chan callResult, 1)
	go func() {
		resp, err := i.Do(ctx, call)
		results <- callResult{resp, err}
	}()
	select {
	case e := <-routed:
		return results, e
	case <-time.After(testTimeout):
		require.Fail(t, "timed out waiting for call to be routed")
		return nil, Event{}
	}
}

func requireResult(t *testing.T, results <-chan callResult) callResult {
	select {
	case r := <-results:
		return r
	case <-time.After(testTimeout):
		require.Fail(t, "timed out waiting for call to complete")
		return callResult{}
	}
}

func requireStillPending(t *testing.T, results <-chan callResult) {
	select {
	case r := <-results:
		require.Fail(t, "call completed unexpectedly", "%+v", r)
	case <-time.After(20 * time.Millisecond):
	}
}

func newTestInterceptor(t *testing.T, opts RegistryOptions) *Interceptor {
	i, err := NewInterceptor(NewRegistry(opts), InterceptorOptions{Strict: true})
	require.NoError(t, err)
	return i
}

func autosuggestCall() Call {
	return Call{Method: "GET", Path: "/autocomplete/taxon", Query: ldvalue.Null(), Payload: ldvalue.Null()}
}

func valuePayload(s string) ldvalue.Value {
	return ldvalue.ObjectBuild().Set("value", ldvalue.String(s)).Build()
}
