package harness

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/laji-form/mock-contract-tests/framework"
)

const endpointPathPrefix = "/endpoints/"
const httpListenerTimeout = time.Second * 10

// TestHarness is the driver-side half of the harness. It talks to the page service and
// serves the mock endpoints that the page service calls back to.
type TestHarness struct {
	testServiceBaseURL         string
	testHarnessExternalBaseURL string
	testServiceInfo            TestServiceInfo
	endpoints                  map[string]*MockEndpoint
	lastEndpointID             int
	server                     *http.Server
	logger                     framework.Logger
	lock                       sync.Mutex
}

// NewTestHarness creates a TestHarness instance, and verifies that the page service is
// responding by querying its status resource. It also starts an HTTP listener on the
// specified port to receive callback requests; port 0 picks a free port.
func NewTestHarness(
	testServiceBaseURL string,
	testHarnessExternalHostname string,
	testHarnessPort int,
	statusQueryTimeout time.Duration,
	debugLogger framework.Logger,
	startupOutput io.Writer,
) (*TestHarness, error) {
	if debugLogger == nil {
		debugLogger = framework.NullLogger()
	}

	h := &TestHarness{
		testServiceBaseURL: strings.TrimSuffix(testServiceBaseURL, "/"),
		endpoints:          make(map[string]*MockEndpoint),
		logger:             debugLogger,
	}

	testServiceInfo, err := queryTestServiceInfo(h.testServiceBaseURL, statusQueryTimeout, startupOutput)
	if err != nil {
		return nil, err
	}
	h.testServiceInfo = testServiceInfo

	server, port, err := startServer(testHarnessPort, http.HandlerFunc(h.serveHTTP))
	if err != nil {
		return nil, err
	}
	h.server = server
	h.testHarnessExternalBaseURL = fmt.Sprintf("http://%s:%d", testHarnessExternalHostname, port)

	return h, nil
}

// TestServiceInfo returns the status information reported by the page service.
func (h *TestHarness) TestServiceInfo() TestServiceInfo {
	return h.testServiceInfo
}

// ExternalBaseURL returns the base URL at which the page service can reach the harness.
func (h *TestHarness) ExternalBaseURL() string {
	return h.testHarnessExternalBaseURL
}

// Close stops the harness's own listener. Active mock endpoint requests are cancelled.
func (h *TestHarness) Close() error {
	h.lock.Lock()
	endpoints := make([]*MockEndpoint, 0, len(h.endpoints))
	for _, e := range h.endpoints {
		endpoints = append(endpoints, e)
	}
	h.lock.Unlock()
	for _, e := range endpoints {
		e.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

func (h *TestHarness) serveHTTP(w http.ResponseWriter, req *http.Request) {
	if !strings.HasPrefix(req.URL.Path, endpointPathPrefix) {
		h.logger.Printf("Received request for unrecognized URL path %s", req.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	path := strings.TrimPrefix(req.URL.Path, endpointPathPrefix)
	var endpointID string
	slashPos := strings.Index(path, "/")
	if slashPos >= 0 {
		endpointID = path[0:slashPos]
		path = path[slashPos:]
	} else {
		endpointID = path
		path = ""
	}

	h.lock.Lock()
	e := h.endpoints[endpointID]
	h.lock.Unlock()
	if e == nil {
		h.logger.Printf("Received request for unrecognized endpoint %s", req.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			h.logger.Printf("Unexpected error trying to read request body: %s", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = data
	}

	ctx, canceller := context.WithCancel(req.Context())
	if e.contextFn != nil {
		ctx = e.contextFn(ctx)
	}
	incoming := IncomingRequestInfo{
		Headers: req.Header,
		Method:  req.Method,
		Path:    path,
		Query:   req.URL.Query(),
		Body:    body,
		Context: ctx,
	}

	e.lock.Lock()
	if e.closed {
		e.lock.Unlock()
		canceller()
		w.WriteHeader(http.StatusNotFound)
		return
	}
	cancellerPtr := &canceller
	e.cancels = append(e.cancels, cancellerPtr)
	select { // non-blocking push
	case e.newConns <- incoming:
	default:
		h.logger.Printf("Incoming connection channel was full for %s", req.URL)
	}
	e.lock.Unlock()

	transformedReq := req.WithContext(ctx)
	url := *req.URL
	url.Path = path
	transformedReq.URL = &url
	if body != nil {
		transformedReq.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	e.handler.ServeHTTP(w, transformedReq)

	e.lock.Lock()
	for i, c := range e.cancels {
		if c == cancellerPtr { // can't compare functions with ==, but can compare pointers
			e.cancels = append(e.cancels[:i], e.cancels[i+1:]...)
			break
		}
	}
	e.lock.Unlock()
	canceller()
}

func startServer(port int, handler http.Handler) (*http.Server, int, error) {
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK) // we use this to test whether our own listener is active yet
				return
			}
			handler.ServeHTTP(w, r)
		}),
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, 0, fmt.Errorf("could not start listener on port %d: %w", port, err)
	}
	actualPort := listener.Addr().(*net.TCPAddr).Port
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()

	// Wait till the server is definitely answering requests before we run any tests
	deadline := time.NewTimer(httpListenerTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Millisecond * 10)
	defer ticker.Stop()
	for {
		select {
		case <-deadline.C:
			return nil, 0, fmt.Errorf("could not detect own listener at port %d", actualPort)
		case <-ticker.C:
			resp, err := http.DefaultClient.Head(fmt.Sprintf("http://localhost:%d", actualPort))
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return server, actualPort, nil
				}
			}
		}
	}
}
