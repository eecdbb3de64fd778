package mocking

import (
	"errors"
	"fmt"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Error codes. They identify an error condition on both sides of the driver/page channel.
const (
	CodeDuplicateMock  = "DUPLICATE_MOCK"
	CodeUnmatchedCall  = "UNMATCHED_CALL"
	CodeMockRemoved    = "MOCK_REMOVED"
	CodeQueueExhausted = "QUEUE_EXHAUSTED"
	CodeMockSettled    = "MOCK_SETTLED"
	CodeUnknownMock    = "UNKNOWN_MOCK"
	CodeCallRejected   = "CALL_REJECTED"
)

// CodedError is implemented by every error this package returns.
type CodedError interface {
	error
	Code() string
}

// CodeOf returns the code of the first CodedError in err's chain, or "" if there is none.
func CodeOf(err error) string {
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// DuplicateMockError means a key is already occupied by a mock or queue that was not removed.
type DuplicateMockError struct {
	Key Key
}

func (e *DuplicateMockError) Error() string {
	return fmt.Sprintf("a mock is already registered for %s; remove it before registering again", e.Key)
}

func (e *DuplicateMockError) Code() string { return CodeDuplicateMock }

// UnmatchedCallError is returned in strict mode for a call that has no registered mock.
type UnmatchedCallError struct {
	Key Key
}

func (e *UnmatchedCallError) Error() string {
	return fmt.Sprintf("no mock registered for call to %s", e.Key)
}

func (e *UnmatchedCallError) Code() string { return CodeUnmatchedCall }

// MockRemovedError is delivered to a call that was still suspended when its mock was removed.
type MockRemovedError struct {
	Key    Key
	MockID int
}

func (e *MockRemovedError) Error() string {
	return fmt.Sprintf("mock %d for %s was removed before it was settled", e.MockID, e.Key)
}

func (e *MockRemovedError) Code() string { return CodeMockRemoved }

// QueueExhaustionError means a queued key received a call with no slot left for it.
type QueueExhaustionError struct {
	Key     Key
	Created int
	Waiting int
}

func (e *QueueExhaustionError) Error() string {
	if e.Waiting > 0 {
		return fmt.Sprintf("mock queue for %s already has %d waiting calls", e.Key, e.Waiting)
	}
	return fmt.Sprintf("mock queue for %s received more calls than the %d mocks created", e.Key, e.Created)
}

func (e *QueueExhaustionError) Code() string { return CodeQueueExhausted }

// MockSettledError means resolve or reject was called on a mock that was already settled or removed.
type MockSettledError struct {
	Key    Key
	MockID int
	State  State
}

func (e *MockSettledError) Error() string {
	return fmt.Sprintf("mock %d for %s cannot be settled, it is already %s", e.MockID, e.Key, e.State)
}

func (e *MockSettledError) Code() string { return CodeMockSettled }

// UnknownMockError means a mock or queue ID did not refer to anything in the registry.
type UnknownMockError struct {
	ID int
}

func (e *UnknownMockError) Error() string {
	return fmt.Sprintf("no mock or queue with ID %d", e.ID)
}

func (e *UnknownMockError) Code() string { return CodeUnknownMock }

// CallRejectedError is what an intercepted call receives when the test rejects its mock.
type CallRejectedError struct {
	Key     Key
	Payload ldvalue.Value
	Raw     bool
}

func (e *CallRejectedError) Error() string {
	return fmt.Sprintf("mocked call to %s was rejected: %s", e.Key, e.Envelope().JSONString())
}

func (e *CallRejectedError) Code() string { return CodeCallRejected }

// Envelope returns the rejection value: the raw payload verbatim, or the default failure envelope.
func (e *CallRejectedError) Envelope() ldvalue.Value {
	if e.Raw {
		return e.Payload
	}
	return WrapFailure(e.Payload)
}
