package formpage

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/google/uuid"
)

// ServiceName is reported in the status resource.
const ServiceName = "laji-form-page-service"

const sessionsPathPrefix = "/sessions/"

// Service is the HTTP front end of the page service. It hosts any number of sessions.
type Service struct {
	config   Config
	sessions map[string]*Session
	logger   framework.Logger
	stopped  chan struct{}
	stopOnce sync.Once
	lock     sync.Mutex
}

// NewService creates a Service.
func NewService(config Config, logger framework.Logger) *Service {
	if logger == nil {
		logger = framework.NullLogger()
	}
	return &Service{
		config:   config,
		sessions: make(map[string]*Session),
		logger:   logger,
		stopped:  make(chan struct{}),
	}
}

// Stopped is closed when the driver asks the service to stop.
func (s *Service) Stopped() <-chan struct{} {
	return s.stopped
}

// Capabilities lists what this service supports.
func (s *Service) Capabilities() []string {
	caps := []string{servicedef.CapabilityCallbacks, servicedef.CapabilityFallthrough}
	if s.config.Rendezvous {
		caps = append(caps, servicedef.CapabilityRendezvous)
	}
	if s.config.Strict {
		caps = append(caps, servicedef.CapabilityStrict)
	}
	sort.Strings(caps)
	return caps
}

// SessionCount returns the number of open sessions.
func (s *Service) SessionCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.sessions)
}

func (s *Service) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path == "/" {
		switch req.Method {
		case http.MethodGet:
			s.writeJSON(w, http.StatusOK, servicedef.StatusRep{
				Name:         ServiceName,
				Description:  "stand-in form with intercepted calls",
				Capabilities: s.Capabilities(),
			})
		case http.MethodPost:
			s.createSession(w, req)
		case http.MethodDelete:
			s.logger.Printf("Stop requested by the test driver")
			w.WriteHeader(http.StatusNoContent)
			s.stopOnce.Do(func() { close(s.stopped) })
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if !strings.HasPrefix(req.URL.Path, sessionsPathPrefix) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := strings.TrimPrefix(req.URL.Path, sessionsPathPrefix)
	s.lock.Lock()
	session := s.sessions[id]
	if session != nil && req.Method == http.MethodDelete {
		delete(s.sessions, id)
	}
	s.lock.Unlock()
	if session == nil {
		s.logger.Printf("Request for unknown session %q", id)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch req.Method {
	case http.MethodPost:
		s.runCommand(w, req, session)
	case http.MethodDelete:
		leaked := session.Close()
		s.logger.Printf("Closed session %s (%s)", id, session.Tag())
		s.writeJSON(w, http.StatusOK, servicedef.MockListRep{Leaked: servicedef.KeyReps(leaked)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Service) createSession(w http.ResponseWriter, req *http.Request) {
	var params servicedef.CreateSessionParams
	if err := readJSON(req, &params); err != nil {
		s.writeError(w, badRequest("malformed session parameters: %s", err))
		return
	}
	id := uuid.New().String()
	logger := framework.LoggerWithPrefix(s.logger, "["+params.Tag+"] ")
	session, err := NewSession(id, params, s.config, logger)
	if err != nil {
		s.writeError(w, badRequest("%s", err))
		return
	}
	s.lock.Lock()
	s.sessions[id] = session
	s.lock.Unlock()
	logger.Printf("Created session %s", id)
	w.Header().Set("Location", sessionsPathPrefix+id)
	w.WriteHeader(http.StatusCreated)
}

func (s *Service) runCommand(w http.ResponseWriter, req *http.Request, session *Session) {
	var params servicedef.CommandParams
	if err := readJSON(req, &params); err != nil {
		s.writeError(w, badRequest("malformed command: %s", err))
		return
	}
	result, err := session.Execute(req.Context(), params)
	if err != nil {
		s.logger.Printf("Command %s failed: %s", params.Command, err)
		s.writeError(w, err)
		return
	}
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func readJSON(req *http.Request, out interface{}) error {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

// statusForError maps an error to an HTTP status. The body always carries the ErrorInfo.
func statusForError(err error) int {
	var bad *BadRequestError
	var unknown *mocking.UnknownMockError
	switch {
	case errors.As(err, &bad), errors.Is(err, ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.As(err, &unknown):
		return http.StatusNotFound
	case mocking.CodeOf(err) != "":
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	info := servicedef.ErrorInfoFrom(err)
	var bad *BadRequestError
	if errors.As(err, &bad) || errors.Is(err, ErrUnknownCommand) {
		info.Code = servicedef.CodeBadRequest
	}
	s.writeJSON(w, statusForError(err), info)
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Printf("Can't encode response: %s", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// CloseAll closes every open session.
func (s *Service) CloseAll() {
	s.lock.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.lock.Unlock()
	for _, session := range sessions {
		session.Close()
	}
}
