package formtests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/framework/harness"
	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"
	"github.com/laji-form/mock-contract-tests/syncbridge"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const awaitEventTimeout = time.Second * 5

// Page is a session in the page service: one form with its own mock registry.
type Page struct {
	service       *harness.TestServiceEntity
	events        chan eventOrError
	callbackQueue *harness.MessageSortingQueue
	handles       []handle
	logger        framework.Logger
	lock          sync.Mutex
}

// handle is a mock or queue that the test is responsible for removing.
type handle interface {
	Key() mocking.Key
	isRemoved() bool
	markRemoved()
	describe() string
}

type eventOrError struct {
	event servicedef.CallbackEvent
	err   error
}

type PageConfigurer interface {
	ApplyConfiguration(*servicedef.CreateSessionParams)
}

type pageParamsConfigurer servicedef.CreateSessionParams

func (c pageParamsConfigurer) ApplyConfiguration(p *servicedef.CreateSessionParams) {
	tag, callbackURL := p.Tag, p.CallbackURL
	*p = servicedef.CreateSessionParams(c)
	if p.Tag == "" {
		p.Tag = tag
	}
	if p.CallbackURL == "" {
		p.CallbackURL = callbackURL
	}
}

// WithPageParams overrides the session parameters.
func WithPageParams(params servicedef.CreateSessionParams) PageConfigurer {
	return pageParamsConfigurer(params)
}

// NewPage opens a page session for the duration of the test. At the end of the test, any mock
// or queue the test did not remove is reported as a single failure, and the session is closed.
func NewPage(t *ldtest.T, configurers ...PageConfigurer) *Page {
	testHarness := requireContext(t).harness

	params := servicedef.CreateSessionParams{Tag: t.ID().String()}
	p := &Page{
		events:        make(chan eventOrError, 100),
		callbackQueue: harness.NewMessageSortingQueue(100),
		logger:        t.DebugLogger(),
	}
	t.Defer(p.callbackQueue.Close)

	if t.Capabilities().Has(servicedef.CapabilityCallbacks) {
		callbackEndpoint := testHarness.NewMockEndpoint(http.HandlerFunc(p.handleCallback), nil, t.DebugLogger())
		callbackEndpoint.SetDescription("event callbacks")
		t.Defer(callbackEndpoint.Close)
		params.CallbackURL = callbackEndpoint.BaseURL()
	}
	for _, c := range configurers {
		c.ApplyConfiguration(&params)
	}

	service, err := testHarness.NewTestServiceEntity(params, "page", t.DebugLogger())
	require.NoError(t, err)
	t.Defer(func() {
		_ = service.Close()
	})
	p.service = service
	t.Defer(func() { p.reportLeaks(t) })

	go p.consumeCallbacks()

	return p
}

func (p *Page) reportLeaks(t *ldtest.T) {
	p.lock.Lock()
	var leaked []string
	for _, h := range p.handles {
		if !h.isRemoved() {
			leaked = append(leaked, h.describe())
		}
	}
	p.lock.Unlock()
	if len(leaked) > 0 {
		t.Errorf("test did not remove %d mock(s): %s", len(leaked), strings.Join(leaked, "; "))
	}
}

func (p *Page) track(h handle) {
	p.lock.Lock()
	p.handles = append(p.handles, h)
	p.lock.Unlock()
}

// send runs a command. A failure described by the page service is returned as the same typed
// error the page saw, so callers can use errors.As.
func (p *Page) send(params servicedef.CommandParams, out interface{}) error {
	err := p.service.SendCommandWithParams(params, p.logger, out)
	var commandErr *harness.CommandError
	if errors.As(err, &commandErr) && len(commandErr.Body) > 0 {
		var info servicedef.ErrorInfo
		if json.Unmarshal(commandErr.Body, &info) == nil && info.Code != "" {
			return info.Err()
		}
	}
	return err
}

// SetMockResponse registers a single mock for a path and optional query. Pass ldvalue.Null()
// for no query.
func (p *Page) SetMockResponse(t *ldtest.T, path string, query ldvalue.Value) *Mock {
	m, err := p.TrySetMockResponse(path, query)
	require.NoError(t, err)
	return m
}

// TrySetMockResponse is SetMockResponse returning the registration error.
func (p *Page) TrySetMockResponse(path string, query ldvalue.Value) (*Mock, error) {
	var rep servicedef.MockRep
	err := p.send(servicedef.CommandParams{
		Command: servicedef.CommandRegisterMock,
		Mock:    &servicedef.MockParams{Path: path, Query: query},
	}, &rep)
	if err != nil {
		return nil, err
	}
	m := &Mock{page: p, id: rep.MockID, key: mocking.NewKey(path, query)}
	p.track(m)
	return m, nil
}

// CreateMockResponseQueue registers a queue of mocks for a path and optional query.
func (p *Page) CreateMockResponseQueue(t *ldtest.T, path string, query ldvalue.Value) *MockQueue {
	var rep servicedef.MockRep
	require.NoError(t, p.send(servicedef.CommandParams{
		Command: servicedef.CommandRegisterQueue,
		Mock:    &servicedef.MockParams{Path: path, Query: query},
	}, &rep))
	q := &MockQueue{page: p, id: rep.QueueID, key: mocking.NewKey(path, query)}
	p.track(q)
	return q
}

// RemoveKey removes whatever is registered for a key. Removing nothing is not an error.
func (p *Page) RemoveKey(t *ldtest.T, path string, query ldvalue.Value) {
	require.NoError(t, p.send(servicedef.CommandParams{
		Command: servicedef.CommandRemoveKey,
		Mock:    &servicedef.MockParams{Path: path, Query: query},
	}, nil))
	key := mocking.NewKey(path, query)
	p.lock.Lock()
	for _, h := range p.handles {
		if h.Key().Equal(key) {
			h.markRemoved()
		}
	}
	p.lock.Unlock()
}

// RegisteredMocks returns the keys the page still has mocks for.
func (p *Page) RegisteredMocks(t *ldtest.T) []mocking.Key {
	var rep servicedef.MockListRep
	require.NoError(t, p.send(servicedef.CommandParams{Command: servicedef.CommandListMocks}, &rep))
	keys := make([]mocking.Key, 0, len(rep.Leaked))
	for _, k := range rep.Leaked {
		keys = append(keys, mocking.NewKey(k.Path, k.Query))
	}
	return keys
}

// BusyState reads the form's busy indicator.
func (p *Page) BusyState(t *ldtest.T) servicedef.BusyStateRep {
	var rep servicedef.BusyStateRep
	require.NoError(t, p.send(servicedef.CommandParams{Command: servicedef.CommandGetBusyState}, &rep))
	return rep
}

// IsBusy reports whether the form has background work in progress.
func (p *Page) IsBusy(t *ldtest.T) bool {
	return p.BusyState(t).Busy
}

// Probe reads the busy indicator for a syncbridge.Bridge.
func (p *Page) Probe() syncbridge.Probe {
	return syncbridge.ProbeFunc(func(context.Context) (syncbridge.State, error) {
		var rep servicedef.BusyStateRep
		if err := p.send(servicedef.CommandParams{Command: servicedef.CommandGetBusyState}, &rep); err != nil {
			return syncbridge.State{}, err
		}
		return syncbridge.State{Busy: rep.Busy, Reason: rep.Reason, PendingJobs: rep.PendingJobs}, nil
	})
}

// AwaitIdle polls the busy indicator until the form is idle. It returns *syncbridge.SyncTimeoutError
// if the form is still busy after timeout; zero means syncbridge.DefaultTimeout.
func (p *Page) AwaitIdle(timeout time.Duration) error {
	return syncbridge.New(p.Probe(), 0).WaitUntilIdle(context.Background(), timeout)
}

// WaitUntilIdle is AwaitIdle that fails the test on timeout.
func (p *Page) WaitUntilIdle(t *ldtest.T, timeout time.Duration) {
	require.NoError(t, p.AwaitIdle(timeout))
}

// FormState returns a snapshot of the form's values.
func (p *Page) FormState(t *ldtest.T) servicedef.FormStateRep {
	var rep servicedef.FormStateRep
	require.NoError(t, p.send(servicedef.CommandParams{Command: servicedef.CommandGetFormState}, &rep))
	return rep
}

func (p *Page) formAction(t *ldtest.T, action servicedef.FormActionParams) servicedef.RouteRep {
	var rep servicedef.FormActionRep
	require.NoError(t, p.send(servicedef.CommandParams{
		Command:    servicedef.CommandFormAction,
		FormAction: &action,
	}, &rep))
	if len(rep.Routes) == 0 {
		return servicedef.RouteRep{}
	}
	return rep.Routes[0]
}

// AddItem appends an item to the form's taxa array.
func (p *Page) AddItem(t *ldtest.T, value string) {
	p.formAction(t, servicedef.FormActionParams{Action: servicedef.ActionAddItem, Value: ldvalue.String(value)})
}

// RemoveItem deletes an item from the taxa array.
func (p *Page) RemoveItem(t *ldtest.T, index int) {
	p.formAction(t, servicedef.FormActionParams{Action: servicedef.ActionRemoveItem, Index: ldvalue.NewOptionalInt(index)})
}

// SetField sets a plain form field.
func (p *Page) SetField(t *ldtest.T, field, value string) {
	p.formAction(t, servicedef.FormActionParams{Action: servicedef.ActionSetField, Field: field, Value: ldvalue.String(value)})
}

// Autosuggest types into a taxa item, which looks the input up. It returns once the call
// has been routed.
func (p *Page) Autosuggest(t *ldtest.T, index int, input string) servicedef.RouteRep {
	return p.formAction(t, servicedef.FormActionParams{
		Action: servicedef.ActionAutosuggest,
		Index:  ldvalue.NewOptionalInt(index),
		Value:  ldvalue.String(input),
	})
}

// Geocode asks the form to look up a coordinate.
func (p *Page) Geocode(t *ldtest.T, lat, lng float64) servicedef.RouteRep {
	return p.formAction(t, servicedef.FormActionParams{
		Action: servicedef.ActionGeocode,
		Value:  ldvalue.ObjectBuild().Set("lat", ldvalue.Float64(lat)).Set("lng", ldvalue.Float64(lng)).Build(),
	})
}

// Upload asks the form to upload an image.
func (p *Page) Upload(t *ldtest.T, name string) servicedef.RouteRep {
	return p.formAction(t, servicedef.FormActionParams{Action: servicedef.ActionUpload, Value: ldvalue.String(name)})
}

// Validate asks the form to validate a field remotely.
func (p *Page) Validate(t *ldtest.T, field string) servicedef.RouteRep {
	return p.formAction(t, servicedef.FormActionParams{Action: servicedef.ActionValidate, Field: field})
}

func (p *Page) handleCallback(w http.ResponseWriter, req *http.Request) {
	if req.Body == nil {
		p.outputError(errors.New("got callback request with no body"))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer func() { _ = req.Body.Close() }()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		p.outputError(fmt.Errorf("error reading callback request body: %w", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(req.URL.Path) > 1 {
		if counter, err := strconv.Atoi(req.URL.Path[1:]); err == nil {
			p.callbackQueue.Accept(counter, data)
			w.WriteHeader(http.StatusAccepted)
			return
		}
	}
	p.outputError(fmt.Errorf("callback request had invalid path %q", req.URL.Path))
	w.WriteHeader(http.StatusBadRequest)
}

func (p *Page) consumeCallbacks() {
	for data := range p.callbackQueue.C {
		var event servicedef.CallbackEvent
		if err := json.Unmarshal(data, &event); err != nil {
			p.outputError(fmt.Errorf("malformed JSON data from page service: %s", string(data)))
			continue
		}
		p.logger.Printf("Received event: %s", string(data))
		p.events <- eventOrError{event: event}
	}
}

func (p *Page) outputError(err error) {
	p.logger.Printf("Error: %s", err)
	p.events <- eventOrError{err: err}
}

// AwaitCallEvent waits for the next routing or settlement event from the page.
func (p *Page) AwaitCallEvent(timeout time.Duration) (servicedef.CallbackEvent, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case item := <-p.events:
		return item.event, item.err
	case <-deadline.C:
		return servicedef.CallbackEvent{}, errors.New("timed out waiting for event from page service")
	}
}

// RequireCallEvent waits for the next event and requires it to be of the given kind.
func (p *Page) RequireCallEvent(t *ldtest.T, kind mocking.EventKind) servicedef.CallbackEvent {
	t.RequireCapability(servicedef.CapabilityCallbacks)
	e, err := p.AwaitCallEvent(awaitEventTimeout)
	require.NoError(t, err)
	if e.Kind != string(kind) {
		require.Fail(t, "received an unexpected event", "expected %q but got %+v", kind, e)
	}
	return e
}
