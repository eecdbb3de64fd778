package mocking

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/laji-form/mock-contract-tests/framework"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Call is an outbound call made by the code under test.
type Call struct {
	Method  string
	Path    string
	Query   ldvalue.Value
	Payload ldvalue.Value
}

// Key returns the key the call is matched by.
func (c Call) Key() Key {
	return NewKey(c.Path, c.Query)
}

// InterceptorOptions configures an Interceptor.
type InterceptorOptions struct {
	// Strict makes unmatched calls fail with UnmatchedCallError. Otherwise they are sent
	// to FallbackURL.
	Strict bool

	// FallbackURL is the base URL for unmatched calls in non-strict mode. If it is empty,
	// unmatched calls fail as in strict mode.
	FallbackURL string

	// FallbackTransport sends unmatched calls. Defaults to http.DefaultTransport.
	FallbackTransport http.RoundTripper

	Logger framework.Logger
}

// Interceptor is the single point through which the code under test makes its calls.
//
// A call that matches a mock suspends until the mock is settled. It implements
// http.RoundTripper, so an http.Client using it as its Transport is fully mocked.
type Interceptor struct {
	registry  *Registry
	strict    bool
	fallback  *url.URL
	transport http.RoundTripper
	logger    framework.Logger
}

// NewInterceptor creates an Interceptor that routes calls through the registry.
func NewInterceptor(registry *Registry, opts InterceptorOptions) (*Interceptor, error) {
	i := &Interceptor{
		registry:  registry,
		strict:    opts.Strict,
		transport: opts.FallbackTransport,
		logger:    opts.Logger,
	}
	if i.transport == nil {
		i.transport = http.DefaultTransport
	}
	if i.logger == nil {
		i.logger = framework.NullLogger()
	}
	if opts.FallbackURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.FallbackURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid fallback URL: %w", err)
		}
		i.fallback = u
	}
	return i, nil
}

// Registry returns the registry the interceptor consults.
func (i *Interceptor) Registry() *Registry {
	return i.registry
}

// Do routes a call. It returns when the bound mock is settled, when the context is
// cancelled, or immediately if the call cannot be routed.
func (i *Interceptor) Do(ctx context.Context, call Call) (Response, error) {
	key := call.Key()
	report := func(e Event) {
		if l := routeListener(ctx); l != nil {
			l(e)
		}
		i.registry.emit(e)
	}

	b, err := i.registry.bind(key)
	if err != nil {
		i.logger.Printf("Call to %s could not be routed: %s", key, err)
		report(Event{Kind: EventFailed, Key: key, Err: err})
		return Response{}, err
	}
	if b == nil {
		return i.unmatched(ctx, call, report)
	}

	m := b.mock
	if m == nil {
		i.logger.Printf("Call to %s is waiting for a mock to be created", key)
		report(Event{Kind: EventWaiting, Key: key})
		select {
		case delivered, ok := <-b.waitCh:
			if !ok {
				return Response{}, &MockRemovedError{Key: key}
			}
			m = delivered
		case <-ctx.Done():
			i.registry.lock.Lock()
			abandoned := b.queue.abandonLocked(b.waitCh)
			i.registry.lock.Unlock()
			if abandoned {
				return Response{}, ctx.Err()
			}
			m = <-b.waitCh
			if m == nil {
				return Response{}, ctx.Err()
			}
		}
		i.logger.Printf("Call to %s bound to mock %d", key, m.id)
		i.registry.emit(Event{Kind: EventBound, Key: key, MockID: m.id})
	} else {
		i.logger.Printf("Call to %s bound to mock %d", key, m.id)
		report(Event{Kind: EventBound, Key: key, MockID: m.id})
	}
	return m.await(ctx)
}

func (i *Interceptor) unmatched(ctx context.Context, call Call, report func(Event)) (Response, error) {
	key := call.Key()
	if i.strict || i.fallback == nil {
		err := &UnmatchedCallError{Key: key}
		i.logger.Printf("Unmatched call to %s failed closed", key)
		report(Event{Kind: EventUnmatched, Key: key, Err: err})
		return Response{}, err
	}
	report(Event{Kind: EventUnmatched, Key: key})
	i.logger.Printf("Unmatched call to %s falls through to %s", key, i.fallback)
	return i.forward(ctx, call)
}

func (i *Interceptor) forward(ctx context.Context, call Call) (Response, error) {
	target := *i.fallback
	target.Path += call.Path
	target.RawQuery = QueryToURL(call.Query).Encode()

	method := call.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if !call.Payload.IsNull() {
		body = strings.NewReader(call.Payload.JSONString())
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return Response{}, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := i.transport.RoundTrip(req)
	if err != nil {
		return Response{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, err
	}
	payload := ldvalue.Null()
	if len(bytes.TrimSpace(data)) > 0 {
		payload = ldvalue.Parse(data)
	}
	return ResponseFromEnvelope(wrap(resp.StatusCode, payload)), nil
}

// RoundTrip implements http.RoundTripper. A resolved mock becomes an HTTP response with the
// envelope's status and JSON body; a rejected or removed mock becomes a transport error.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	call, err := CallFromRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := i.Do(req.Context(), call)
	if err != nil {
		return nil, err
	}
	data := []byte("null")
	if !resp.Body.IsNull() {
		data = []byte(resp.Body.JSONString())
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		Request:       req,
	}, nil
}

// CallFromRequest converts an HTTP request into a Call. A JSON body becomes the payload.
func CallFromRequest(req *http.Request) (Call, error) {
	call := Call{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   QueryFromURL(req.URL.Query()),
		Payload: ldvalue.Null(),
	}
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return Call{}, err
		}
		if len(bytes.TrimSpace(data)) > 0 {
			call.Payload = ldvalue.Parse(data)
		}
	}
	return call, nil
}
