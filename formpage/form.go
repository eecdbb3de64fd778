package formpage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/syncbridge"

	"github.com/itchyny/gojq"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Paths the form calls.
const (
	AutosuggestPath = "/autocomplete/taxon"
	GeocodePath     = "/coordinates/location"
	UploadPath      = "/images"
	ValidatePrefix  = "/validate/"
)

// formOrigin is never resolved; every request goes through the interceptor transport.
const formOrigin = "http://form.invalid"

// Derivation copies a value out of a response body into a field. Expr is a jq expression
// evaluated against the body of a successful response to CallPath.
type Derivation struct {
	CallPath string `toml:"call_path"`
	Field    string `toml:"field"`
	Expr     string `toml:"expr"`
}

type compiledDerivation struct {
	Derivation
	code *gojq.Code
}

// DefaultDerivations fills the locality field from a geocoder response.
func DefaultDerivations() []Derivation {
	return []Derivation{
		{CallPath: GeocodePath, Field: "locality", Expr: `.results[0].formatted_address // empty`},
		{CallPath: GeocodePath, Field: "country", Expr: `.results[0].address_components[]? | select(.types | any(. == "country")) | .long_name`},
	}
}

type taxonItem struct {
	id    int
	value string
}

// Form is a minimal stand-in for the form under test. It holds field values, issues its
// calls through an http.Client, and counts running jobs as its busy signal.
type Form struct {
	client      *http.Client
	derivations []compiledDerivation
	fields      map[string]string
	items       []taxonItem
	lastItemID  int
	images      []string
	errors      map[string][]string
	failedJobs  []string
	jobs        map[int]string
	lastJobID   int
	routeWait   time.Duration
	logger      framework.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	lock        sync.Mutex
	running     sync.WaitGroup
}

// NewForm creates a Form whose calls all go through transport.
func NewForm(transport http.RoundTripper, derivations []Derivation, routeWait time.Duration, logger framework.Logger) (*Form, error) {
	if logger == nil {
		logger = framework.NullLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Form{
		client:    &http.Client{Transport: transport},
		ctx:       ctx,
		cancel:    cancel,
		fields:    make(map[string]string),
		errors:    make(map[string][]string),
		jobs:      make(map[int]string),
		routeWait: routeWait,
		logger:    logger,
	}
	for _, d := range derivations {
		query, err := gojq.Parse(d.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid expression for field %q: %w", d.Field, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("invalid expression for field %q: %w", d.Field, err)
		}
		f.derivations = append(f.derivations, compiledDerivation{Derivation: d, code: code})
	}
	return f, nil
}

// Abort cancels every call still in flight.
func (f *Form) Abort() {
	f.cancel()
}

// Busy implements syncbridge.Probe.
func (f *Form) Busy(context.Context) (syncbridge.State, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	names := make([]string, 0, len(f.jobs))
	for _, name := range f.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return syncbridge.State{
		Busy:        len(names) > 0,
		Reason:      strings.Join(names, ", "),
		PendingJobs: len(names),
	}, nil
}

// State is a snapshot of the form's values.
type State struct {
	Fields     map[string]string
	Taxa       []string
	Images     []string
	Errors     map[string][]string
	FailedJobs []string
	Jobs       []string
}

// Snapshot returns a copy of the form's values.
func (f *Form) Snapshot() State {
	f.lock.Lock()
	defer f.lock.Unlock()
	s := State{
		Fields:     make(map[string]string, len(f.fields)),
		Taxa:       make([]string, 0, len(f.items)),
		Images:     append([]string{}, f.images...),
		Errors:     make(map[string][]string, len(f.errors)),
		FailedJobs: append([]string(nil), f.failedJobs...),
	}
	for k, v := range f.fields {
		s.Fields[k] = v
	}
	for _, item := range f.items {
		s.Taxa = append(s.Taxa, item.value)
	}
	for k, v := range f.errors {
		s.Errors[k] = append([]string(nil), v...)
	}
	for _, name := range f.jobs {
		s.Jobs = append(s.Jobs, name)
	}
	sort.Strings(s.Jobs)
	return s
}

// SetField sets a plain field value.
func (f *Form) SetField(field, value string) {
	f.lock.Lock()
	f.fields[field] = value
	f.lock.Unlock()
}

// AddItem appends an item to the taxa array and returns its index.
func (f *Form) AddItem(value string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.lastItemID++
	f.items = append(f.items, taxonItem{id: f.lastItemID, value: value})
	return len(f.items) - 1
}

// RemoveItem deletes an item from the taxa array. Later items shift down by one.
func (f *Form) RemoveItem(index int) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if index < 0 || index >= len(f.items) {
		return fmt.Errorf("no taxon item at index %d", index)
	}
	f.items = append(f.items[:index], f.items[index+1:]...)
	return nil
}

// Autosuggest types input into a taxa item and looks it up. The suggestion's "value" replaces
// the item's value when it arrives, unless the item has been removed by then.
func (f *Form) Autosuggest(index int, input string) (mocking.Event, error) {
	f.lock.Lock()
	if index < 0 || index >= len(f.items) {
		f.lock.Unlock()
		return mocking.Event{}, fmt.Errorf("no taxon item at index %d", index)
	}
	f.items[index].value = input
	itemID := f.items[index].id
	f.lock.Unlock()

	query := url.Values{"q": {input}}
	return f.startJob("autosuggest "+input, http.MethodGet, AutosuggestPath, query, ldvalue.Null(),
		func(resp callResponse) error {
			if resp.status != http.StatusOK {
				return fmt.Errorf("autosuggest returned status %d", resp.status)
			}
			f.lock.Lock()
			defer f.lock.Unlock()
			for i := range f.items {
				if f.items[i].id == itemID {
					f.items[i].value = resp.body.GetByKey("value").StringValue()
					return nil
				}
			}
			f.logger.Printf("Dropping suggestion for removed taxon item %d", itemID)
			return nil
		})
}

// Geocode looks up a coordinate and applies the derivations for the geocoder path.
func (f *Form) Geocode(lat, lng float64) (mocking.Event, error) {
	body := ldvalue.ObjectBuild().
		Set("lat", ldvalue.Float64(lat)).
		Set("lng", ldvalue.Float64(lng)).
		Build()
	return f.startJob("geocode", http.MethodPost, GeocodePath, nil, body, func(resp callResponse) error {
		if resp.status != http.StatusOK {
			return fmt.Errorf("geocoding returned status %d", resp.status)
		}
		return f.applyDerivations(GeocodePath, resp.body)
	})
}

// Upload sends an image and stores the returned id.
func (f *Form) Upload(name string) (mocking.Event, error) {
	body := ldvalue.ObjectBuild().Set("name", ldvalue.String(name)).Build()
	return f.startJob("upload "+name, http.MethodPost, UploadPath, nil, body, func(resp callResponse) error {
		if resp.status != http.StatusOK && resp.status != http.StatusCreated {
			return fmt.Errorf("upload returned status %d", resp.status)
		}
		f.lock.Lock()
		f.images = append(f.images, resp.body.GetByKey("id").StringValue())
		f.lock.Unlock()
		return nil
	})
}

// Validate asks the server to validate a field. A 422 response sets the field's errors from
// the "errors" array of the body.
func (f *Form) Validate(field string) (mocking.Event, error) {
	f.lock.Lock()
	value := f.fields[field]
	f.lock.Unlock()

	query := url.Values{"value": {value}}
	return f.startJob("validate "+field, http.MethodGet, ValidatePrefix+field, query, ldvalue.Null(),
		func(resp callResponse) error {
			var messages []string
			switch resp.status {
			case http.StatusOK:
			case http.StatusUnprocessableEntity:
				errs := resp.body.GetByKey("errors")
				for i := 0; i < errs.Count(); i++ {
					messages = append(messages, errs.GetByIndex(i).StringValue())
				}
			default:
				return fmt.Errorf("validation returned status %d", resp.status)
			}
			f.lock.Lock()
			if len(messages) == 0 {
				delete(f.errors, field)
			} else {
				f.errors[field] = messages
			}
			f.lock.Unlock()
			return nil
		})
}

// Wait blocks until every job has finished or the context ends.
func (f *Form) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type callResponse struct {
	status int
	body   ldvalue.Value
}

// startJob issues a call in the background and returns once the interceptor has routed it,
// so that a caller triggering two actions in a row gets them routed in that order.
func (f *Form) startJob(
	name, method, path string,
	query url.Values,
	body ldvalue.Value,
	onResponse func(callResponse) error,
) (mocking.Event, error) {
	target := formOrigin + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reqBody io.Reader
	if !body.IsNull() {
		reqBody = strings.NewReader(body.JSONString())
	}

	routed := make(chan mocking.Event, 1)
	ctx := mocking.WithRouteListener(f.ctx, func(e mocking.Event) {
		select {
		case routed <- e:
		default:
		}
	})
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return mocking.Event{}, err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	f.lock.Lock()
	f.lastJobID++
	jobID := f.lastJobID
	f.jobs[jobID] = name
	f.lock.Unlock()

	finished := make(chan struct{})
	f.running.Add(1)
	go func() {
		defer f.running.Done()
		defer close(finished)
		err := f.runCall(req, onResponse)
		f.lock.Lock()
		delete(f.jobs, jobID)
		if err != nil {
			f.failedJobs = append(f.failedJobs, fmt.Sprintf("%s: %s", name, err))
		}
		f.lock.Unlock()
		if err != nil {
			f.logger.Printf("Job %q failed: %s", name, err)
		}
	}()

	timeout := time.NewTimer(f.routeWait)
	defer timeout.Stop()
	select {
	case e := <-routed:
		return e, nil
	case <-finished:
		select {
		case e := <-routed:
			return e, nil
		default:
			return mocking.Event{Kind: mocking.EventFailed, Key: mocking.PathKey(path)}, nil
		}
	case <-timeout.C:
		return mocking.Event{}, fmt.Errorf("call to %s was not routed within %s", path, f.routeWait)
	}
}

func (f *Form) runCall(req *http.Request, onResponse func(callResponse) error) error {
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	body := ldvalue.Null()
	if len(strings.TrimSpace(string(data))) > 0 {
		body = ldvalue.Parse(data)
	}
	return onResponse(callResponse{status: resp.StatusCode, body: body})
}

func (f *Form) applyDerivations(callPath string, body ldvalue.Value) error {
	var input interface{}
	if err := json.Unmarshal([]byte(body.JSONString()), &input); err != nil {
		return err
	}
	derived := make(map[string]string)
	for _, d := range f.derivations {
		if d.CallPath != callPath {
			continue
		}
		iter := d.code.Run(input)
		v, ok := iter.Next()
		if !ok || v == nil {
			continue
		}
		if err, isErr := v.(error); isErr {
			return fmt.Errorf("deriving %s: %w", d.Field, err)
		}
		if s, isString := v.(string); isString {
			derived[d.Field] = s
		} else {
			derived[d.Field] = fmt.Sprint(v)
		}
	}
	f.lock.Lock()
	for field, value := range derived {
		f.fields[field] = value
	}
	f.lock.Unlock()
	return nil
}
