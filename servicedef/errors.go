package servicedef

import (
	"errors"

	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/syncbridge"
)

// Codes for errors that are not mock or sync errors.
const (
	CodeInternal   = "INTERNAL"
	CodeBadRequest = "BAD_REQUEST"
)

// ErrorInfoFrom describes err for the wire. Errors without a code get CodeInternal.
func ErrorInfoFrom(err error) ErrorInfo {
	info := ErrorInfo{Code: CodeInternal, Message: err.Error()}
	var (
		duplicate *mocking.DuplicateMockError
		unmatched *mocking.UnmatchedCallError
		removed   *mocking.MockRemovedError
		exhausted *mocking.QueueExhaustionError
		settled   *mocking.MockSettledError
		unknown   *mocking.UnknownMockError
		rejected  *mocking.CallRejectedError
		timeout   *syncbridge.SyncTimeoutError
	)
	switch {
	case errors.As(err, &duplicate):
		info.setKey(duplicate.Key)
	case errors.As(err, &unmatched):
		info.setKey(unmatched.Key)
	case errors.As(err, &removed):
		info.setKey(removed.Key)
		info.MockID = removed.MockID
	case errors.As(err, &exhausted):
		info.setKey(exhausted.Key)
		info.Created = exhausted.Created
		info.Waiting = exhausted.Waiting
	case errors.As(err, &settled):
		info.setKey(settled.Key)
		info.MockID = settled.MockID
		info.Reason = settled.State.String()
	case errors.As(err, &unknown):
		info.MockID = unknown.ID
	case errors.As(err, &rejected):
		info.setKey(rejected.Key)
	case errors.As(err, &timeout):
		info.Reason = timeout.Last.Reason
		info.PendingJobs = timeout.Last.PendingJobs
	}
	if code := mocking.CodeOf(err); code != "" {
		info.Code = code
	}
	return info
}

func (e *ErrorInfo) setKey(key mocking.Key) {
	e.Path = key.Path
	e.Query = key.Query
}

// Key returns the mock key the error refers to.
func (e ErrorInfo) Key() mocking.Key {
	return mocking.NewKey(e.Path, e.Query)
}

// Err rebuilds the typed error described by e. Codes this module does not define come back
// as a *RemoteError.
func (e ErrorInfo) Err() error {
	switch e.Code {
	case mocking.CodeDuplicateMock:
		return &mocking.DuplicateMockError{Key: e.Key()}
	case mocking.CodeUnmatchedCall:
		return &mocking.UnmatchedCallError{Key: e.Key()}
	case mocking.CodeMockRemoved:
		return &mocking.MockRemovedError{Key: e.Key(), MockID: e.MockID}
	case mocking.CodeQueueExhausted:
		return &mocking.QueueExhaustionError{Key: e.Key(), Created: e.Created, Waiting: e.Waiting}
	case mocking.CodeMockSettled:
		return &mocking.MockSettledError{Key: e.Key(), MockID: e.MockID, State: stateFromString(e.Reason)}
	case mocking.CodeUnknownMock:
		return &mocking.UnknownMockError{ID: e.MockID}
	case mocking.CodeCallRejected:
		return &mocking.CallRejectedError{Key: e.Key()}
	case syncbridge.CodeSyncTimeout:
		return &syncbridge.SyncTimeoutError{Last: syncbridge.State{Busy: true, Reason: e.Reason, PendingJobs: e.PendingJobs}}
	}
	return &RemoteError{Info: e}
}

// RemoteError is a page service error with no local type.
type RemoteError struct {
	Info ErrorInfo
}

func (e *RemoteError) Error() string {
	return e.Info.Code + ": " + e.Info.Message
}

func (e *RemoteError) Code() string { return e.Info.Code }

func stateFromString(s string) mocking.State {
	for _, state := range []mocking.State{mocking.StateResolved, mocking.StateRejected, mocking.StateRemoved} {
		if state.String() == s {
			return state
		}
	}
	return mocking.StatePending
}

// KeyRepFrom converts a key to its wire form.
func KeyRepFrom(key mocking.Key) KeyRep {
	return KeyRep{Path: key.Path, Query: key.Query}
}

// KeyReps converts keys to their wire form.
func KeyReps(keys []mocking.Key) []KeyRep {
	ret := make([]KeyRep, 0, len(keys))
	for _, k := range keys {
		ret = append(ret, KeyRepFrom(k))
	}
	return ret
}
