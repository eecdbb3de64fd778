package formpage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"
	"github.com/laji-form/mock-contract-tests/syncbridge"
)

// ErrUnknownCommand is returned for a command name the session does not implement.
var ErrUnknownCommand = errors.New("unknown command")

// BadRequestError means the command parameters were missing or invalid.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

func badRequest(format string, args ...interface{}) error {
	return &BadRequestError{Message: fmt.Sprintf(format, args...)}
}

// Session is one page: a mock registry, the interceptor in front of it, and the form whose
// calls go through the interceptor.
type Session struct {
	id          string
	tag         string
	registry    *mocking.Registry
	interceptor *mocking.Interceptor
	form        *Form
	bridge      *syncbridge.Bridge
	callbacks   *callbackSender
	config      Config
	logger      framework.Logger
}

// NewSession creates a session from the service config and the driver's overrides.
func NewSession(id string, params servicedef.CreateSessionParams, config Config, logger framework.Logger) (*Session, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	strict := config.Strict
	if params.Strict != nil {
		strict = *params.Strict
	}
	rendezvous := config.Rendezvous
	if params.Rendezvous != nil {
		rendezvous = *params.Rendezvous
	}
	fallbackURL := config.FallbackURL
	if params.FallbackURL != "" {
		fallbackURL = params.FallbackURL
	}

	s := &Session{id: id, tag: params.Tag, config: config, logger: logger}
	if params.CallbackURL != "" {
		s.callbacks = newCallbackSender(params.CallbackURL, logger)
	}
	s.registry = mocking.NewRegistry(mocking.RegistryOptions{
		Rendezvous:    rendezvous,
		QueueCapacity: params.QueueCapacity.OrElse(config.QueueCapacity),
		Observer:      s.observe,
		Logger:        logger,
	})
	interceptor, err := mocking.NewInterceptor(s.registry, mocking.InterceptorOptions{
		Strict:      strict,
		FallbackURL: fallbackURL,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	s.interceptor = interceptor
	form, err := NewForm(interceptor, config.Derivations, config.RouteTimeout, logger)
	if err != nil {
		return nil, err
	}
	s.form = form
	s.bridge = syncbridge.New(form, config.PollInterval)
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Tag returns the label the driver gave the session.
func (s *Session) Tag() string { return s.tag }

// Execute runs one command and returns the value to encode as the response, or nil.
func (s *Session) Execute(ctx context.Context, params servicedef.CommandParams) (interface{}, error) {
	switch params.Command {
	case servicedef.CommandRegisterMock:
		key, err := mockKey(params)
		if err != nil {
			return nil, err
		}
		m, err := s.registry.Register(key)
		if err != nil {
			return nil, err
		}
		return servicedef.MockRep{MockID: m.ID()}, nil

	case servicedef.CommandRegisterQueue:
		key, err := mockKey(params)
		if err != nil {
			return nil, err
		}
		q, err := s.registry.RegisterQueue(key)
		if err != nil {
			return nil, err
		}
		return servicedef.MockRep{QueueID: q.ID()}, nil

	case servicedef.CommandCreateQueueMock:
		if params.Mock == nil {
			return nil, badRequest("missing mock parameters")
		}
		q, err := s.registry.Queue(params.Mock.QueueID)
		if err != nil {
			return nil, err
		}
		m, err := q.Create()
		if err != nil {
			return nil, err
		}
		return servicedef.MockRep{MockID: m.ID(), QueueID: q.ID()}, nil

	case servicedef.CommandResolveMock, servicedef.CommandRejectMock:
		if params.Settle == nil {
			return nil, badRequest("missing settle parameters")
		}
		m, err := s.registry.Mock(params.Settle.MockID)
		if err != nil {
			return nil, err
		}
		if params.Command == servicedef.CommandResolveMock {
			return nil, m.Resolve(params.Settle.Payload, params.Settle.Raw)
		}
		return nil, m.Reject(params.Settle.Payload, params.Settle.Raw)

	case servicedef.CommandRemoveMock:
		if params.Mock == nil {
			return nil, badRequest("missing mock parameters")
		}
		return nil, s.registry.RemoveMock(params.Mock.MockID)

	case servicedef.CommandRemoveQueue:
		if params.Mock == nil {
			return nil, badRequest("missing mock parameters")
		}
		q, err := s.registry.Queue(params.Mock.QueueID)
		if err != nil {
			return nil, err
		}
		q.Remove()
		return nil, nil

	case servicedef.CommandRemoveKey:
		key, err := mockKey(params)
		if err != nil {
			return nil, err
		}
		s.registry.Remove(key)
		return nil, nil

	case servicedef.CommandListMocks:
		return servicedef.MockListRep{Leaked: servicedef.KeyReps(s.registry.Leaked())}, nil

	case servicedef.CommandGetBusyState:
		state, err := s.form.Busy(ctx)
		if err != nil {
			return nil, err
		}
		return servicedef.BusyStateRep{
			Busy:        state.Busy,
			Reason:      state.Reason,
			PendingJobs: state.PendingJobs,
			Jobs:        s.form.Snapshot().Jobs,
		}, nil

	case servicedef.CommandGetFormState:
		state := s.form.Snapshot()
		return servicedef.FormStateRep{
			Fields:     state.Fields,
			Taxa:       state.Taxa,
			Images:     state.Images,
			Errors:     state.Errors,
			FailedJobs: state.FailedJobs,
		}, nil

	case servicedef.CommandFormAction:
		if params.FormAction == nil {
			return nil, badRequest("missing formAction parameters")
		}
		return s.formAction(*params.FormAction)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, params.Command)
}

func mockKey(params servicedef.CommandParams) (mocking.Key, error) {
	if params.Mock == nil || params.Mock.Path == "" {
		return mocking.Key{}, badRequest("a mock path is required")
	}
	if !strings.HasPrefix(params.Mock.Path, "/") {
		return mocking.Key{}, badRequest("mock path %q must start with a slash", params.Mock.Path)
	}
	return mocking.NewKey(params.Mock.Path, params.Mock.Query), nil
}

func (s *Session) formAction(p servicedef.FormActionParams) (interface{}, error) {
	var (
		event mocking.Event
		err   error
	)
	switch p.Action {
	case servicedef.ActionSetField:
		if p.Field == "" {
			return nil, badRequest("setField needs a field")
		}
		s.form.SetField(p.Field, p.Value.StringValue())
		return servicedef.FormActionRep{}, nil
	case servicedef.ActionAddItem:
		s.form.AddItem(p.Value.StringValue())
		return servicedef.FormActionRep{}, nil
	case servicedef.ActionRemoveItem:
		if !p.Index.IsDefined() {
			return nil, badRequest("removeItem needs an index")
		}
		if err := s.form.RemoveItem(p.Index.IntValue()); err != nil {
			return nil, badRequest("%s", err)
		}
		return servicedef.FormActionRep{}, nil
	case servicedef.ActionAutosuggest:
		if !p.Index.IsDefined() {
			return nil, badRequest("autosuggest needs an index")
		}
		event, err = s.form.Autosuggest(p.Index.IntValue(), p.Value.StringValue())
	case servicedef.ActionGeocode:
		event, err = s.form.Geocode(p.Value.GetByKey("lat").Float64Value(), p.Value.GetByKey("lng").Float64Value())
	case servicedef.ActionUpload:
		event, err = s.form.Upload(p.Value.StringValue())
	case servicedef.ActionValidate:
		if p.Field == "" {
			return nil, badRequest("validate needs a field")
		}
		event, err = s.form.Validate(p.Field)
	default:
		return nil, badRequest("unknown form action %q", p.Action)
	}
	if err != nil {
		return nil, err
	}
	return servicedef.FormActionRep{Routes: []servicedef.RouteRep{routeRep(event)}}, nil
}

func routeRep(e mocking.Event) servicedef.RouteRep {
	r := servicedef.RouteRep{Kind: string(e.Kind), Path: e.Key.Path, MockID: e.MockID}
	if e.Err != nil {
		info := servicedef.ErrorInfoFrom(e.Err)
		r.Error = &info
	}
	return r
}

func (s *Session) observe(e mocking.Event) {
	if s.callbacks == nil {
		return
	}
	ce := servicedef.CallbackEvent{
		Kind:   string(e.Kind),
		Path:   e.Key.Path,
		Query:  e.Key.Query,
		MockID: e.MockID,
	}
	if e.Kind == mocking.EventSettled {
		ce.State = e.State.String()
	}
	if e.Err != nil {
		info := servicedef.ErrorInfoFrom(e.Err)
		ce.Error = &info
	}
	s.callbacks.send(ce)
}

// WaitUntilIdle waits for the form to finish its jobs.
func (s *Session) WaitUntilIdle(ctx context.Context) error {
	return s.bridge.WaitUntilIdle(ctx, s.config.CloseTimeout)
}

// Close removes every mock, waits briefly for the form's jobs to finish, and returns the
// keys that were still registered.
func (s *Session) Close() []mocking.Key {
	leaked := s.registry.Clear()
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CloseTimeout)
	defer cancel()
	if err := s.form.Wait(ctx); err != nil {
		s.logger.Printf("Form jobs still running at close: %s", err)
	}
	s.form.Abort()
	if s.callbacks != nil {
		s.callbacks.close()
	}
	for _, k := range leaked {
		s.logger.Printf("Mock for %s was never removed", k)
	}
	return leaked
}

// callbackSender posts numbered events. Each event is its own request, so the receiver may
// see them out of order and has to sort by the counter in the URL.
type callbackSender struct {
	baseURL string
	client  *http.Client
	logger  framework.Logger
	counter int
	closed  bool
	lock    sync.Mutex
	pending sync.WaitGroup
}

func newCallbackSender(baseURL string, logger framework.Logger) *callbackSender {
	return &callbackSender{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
	}
}

func (c *callbackSender) send(event servicedef.CallbackEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		c.logger.Printf("Can't encode callback event: %s", err)
		return
	}
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.counter++
	target := fmt.Sprintf("%s/%d", c.baseURL, c.counter)
	c.pending.Add(1)
	c.lock.Unlock()

	go func() {
		defer c.pending.Done()
		resp, err := c.client.Post(target, "application/json", bytes.NewReader(data))
		if err != nil {
			c.logger.Printf("Callback to %s failed: %s", target, err)
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			c.logger.Printf("Callback to %s returned status %d", target, resp.StatusCode)
		}
	}()
}

func (c *callbackSender) close() {
	c.lock.Lock()
	c.closed = true
	c.lock.Unlock()
	c.pending.Wait()
}
