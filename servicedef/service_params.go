// Package servicedef defines the JSON protocol between the test driver and the page service.
package servicedef

import (
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Capabilities the page service may report in its status resource.
const (
	CapabilityRendezvous  = "rendezvous"
	CapabilityFallthrough = "fallthrough"
	CapabilityCallbacks   = "callbacks"
	CapabilityStrict      = "strict"
)

// Commands accepted by a page session.
const (
	CommandRegisterMock    = "registerMock"
	CommandRegisterQueue   = "registerQueue"
	CommandCreateQueueMock = "createQueueMock"
	CommandResolveMock     = "resolveMock"
	CommandRejectMock      = "rejectMock"
	CommandRemoveMock      = "removeMock"
	CommandRemoveQueue     = "removeQueue"
	CommandRemoveKey       = "removeKey"
	CommandGetBusyState    = "getBusyState"
	CommandGetFormState    = "getFormState"
	CommandFormAction      = "formAction"
	CommandListMocks       = "listMocks"
)

// Form actions for CommandFormAction.
const (
	ActionAutosuggest = "autosuggest"
	ActionAddItem     = "addItem"
	ActionRemoveItem  = "removeItem"
	ActionSetField    = "setField"
	ActionGeocode     = "geocode"
	ActionUpload      = "upload"
	ActionValidate    = "validate"
)

// StatusRep is returned by GET on the page service root.
type StatusRep struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities"`
}

// CreateSessionParams is the body of POST on the page service root.
type CreateSessionParams struct {
	Tag string `json:"tag"`

	// Strict overrides the service default for unmatched calls.
	Strict *bool `json:"strict,omitempty"`

	// FallbackURL receives unmatched calls when not strict.
	FallbackURL string `json:"fallbackUrl,omitempty"`

	// Rendezvous overrides the service default for calls that arrive before a queued mock exists.
	Rendezvous *bool `json:"rendezvous,omitempty"`

	QueueCapacity ldvalue.OptionalInt `json:"queueCapacity,omitempty"`

	// CallbackURL, if set, receives numbered event callbacks at CallbackURL/<counter>.
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// CommandParams is the body of POST on a session resource.
type CommandParams struct {
	Command    string            `json:"command"`
	Mock       *MockParams       `json:"mock,omitempty"`
	Settle     *SettleParams     `json:"settle,omitempty"`
	FormAction *FormActionParams `json:"formAction,omitempty"`
}

// MockParams identifies a key, a mock, or a queue.
type MockParams struct {
	Path    string        `json:"path,omitempty"`
	Query   ldvalue.Value `json:"query,omitempty"`
	MockID  int           `json:"mockId,omitempty"`
	QueueID int           `json:"queueId,omitempty"`
}

// SettleParams resolves or rejects a mock.
type SettleParams struct {
	MockID  int           `json:"mockId"`
	Payload ldvalue.Value `json:"payload"`
	Raw     bool          `json:"raw,omitempty"`
}

// FormActionParams triggers something in the form that may issue calls.
type FormActionParams struct {
	Action string              `json:"action"`
	Field  string              `json:"field,omitempty"`
	Index  ldvalue.OptionalInt `json:"index,omitempty"`
	Value  ldvalue.Value       `json:"value,omitempty"`
}

// MockRep is the response to the commands that create mocks or queues.
type MockRep struct {
	MockID  int `json:"mockId,omitempty"`
	QueueID int `json:"queueId,omitempty"`
}

// RouteRep describes how the call triggered by a form action was routed.
type RouteRep struct {
	Kind   string     `json:"kind"`
	Path   string     `json:"path"`
	MockID int        `json:"mockId,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
}

// FormActionRep is the response to CommandFormAction.
type FormActionRep struct {
	Routes []RouteRep `json:"routes,omitempty"`
}

// BusyStateRep is the response to CommandGetBusyState.
type BusyStateRep struct {
	Busy        bool     `json:"busy"`
	Reason      string   `json:"reason,omitempty"`
	PendingJobs int      `json:"pendingJobs"`
	Jobs        []string `json:"jobs,omitempty"`
}

// FormStateRep is the response to CommandGetFormState.
type FormStateRep struct {
	Fields     map[string]string   `json:"fields"`
	Taxa       []string            `json:"taxa"`
	Images     []string            `json:"images"`
	Errors     map[string][]string `json:"errors,omitempty"`
	FailedJobs []string            `json:"failedJobs,omitempty"`
}

// MockListRep is the response to CommandListMocks and to closing a session.
type MockListRep struct {
	Leaked []KeyRep `json:"leaked"`
}

// KeyRep is the wire form of a mock key.
type KeyRep struct {
	Path  string        `json:"path"`
	Query ldvalue.Value `json:"query,omitempty"`
}

// ErrorInfo is the body of a failed command, and the error attached to a route or event.
type ErrorInfo struct {
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Path        string        `json:"path,omitempty"`
	Query       ldvalue.Value `json:"query,omitempty"`
	MockID      int           `json:"mockId,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	PendingJobs int           `json:"pendingJobs,omitempty"`
	Created     int           `json:"created,omitempty"`
	Waiting     int           `json:"waiting,omitempty"`
}

// CallbackEvent is posted to CallbackURL/<counter> for every routing and settlement event.
type CallbackEvent struct {
	Kind   string        `json:"kind"`
	Path   string        `json:"path"`
	Query  ldvalue.Value `json:"query,omitempty"`
	MockID int           `json:"mockId,omitempty"`
	State  string        `json:"state,omitempty"`
	Error  *ErrorInfo    `json:"error,omitempty"`
}
