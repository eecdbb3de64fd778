package formpage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/laji-form/mock-contract-tests/framework"
	"github.com/laji-form/mock-contract-tests/servicedef"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func newTestSession(t *testing.T, params servicedef.CreateSessionParams) *Session {
	config := DefaultConfig()
	config.PollInterval = time.Millisecond * 5
	s, err := NewSession("test", params, config, framework.NullLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func execute(t *testing.T, s *Session, params servicedef.CommandParams) interface{} {
	result, err := s.Execute(context.Background(), params)
	require.NoError(t, err)
	return result
}

func registerMock(t *testing.T, s *Session, path string, query ldvalue.Value) int {
	rep := execute(t, s, servicedef.CommandParams{
		Command: servicedef.CommandRegisterMock,
		Mock:    &servicedef.MockParams{Path: path, Query: query},
	})
	return rep.(servicedef.MockRep).MockID
}

func settle(t *testing.T, s *Session, command string, mockID int, payload ldvalue.Value, raw bool) {
	execute(t, s, servicedef.CommandParams{
		Command: command,
		Settle:  &servicedef.SettleParams{MockID: mockID, Payload: payload, Raw: raw},
	})
}

func formAction(t *testing.T, s *Session, action servicedef.FormActionParams) servicedef.FormActionRep {
	rep := execute(t, s, servicedef.CommandParams{Command: servicedef.CommandFormAction, FormAction: &action})
	return rep.(servicedef.FormActionRep)
}

func busyState(t *testing.T, s *Session) servicedef.BusyStateRep {
	return execute(t, s, servicedef.CommandParams{Command: servicedef.CommandGetBusyState}).(servicedef.BusyStateRep)
}

func formState(t *testing.T, s *Session) servicedef.FormStateRep {
	return execute(t, s, servicedef.CommandParams{Command: servicedef.CommandGetFormState}).(servicedef.FormStateRep)
}

func waitIdle(t *testing.T, s *Session) {
	require.NoError(t, s.WaitUntilIdle(context.Background()))
}

func parseJSON(s string) ldvalue.Value {
	return ldvalue.Parse([]byte(s))
}

func qValue(q string) ldvalue.Value {
	return ldvalue.ObjectBuild().Set("q", ldvalue.String(q)).Build()
}

func errorInfoFromBody(t *testing.T, body []byte) servicedef.ErrorInfo {
	var info servicedef.ErrorInfo
	require.NoError(t, json.Unmarshal(body, &info))
	return info
}
