package mocking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	payloads := []ldvalue.Value{
		ldvalue.Null(),
		ldvalue.String("peippo"),
		ldvalue.Int(3),
		ldvalue.Parse([]byte(`{"status":"OK","results":[{"formatted_address":"Helsinki"}]}`)),
		ldvalue.ArrayOf(ldvalue.Bool(true), ldvalue.String("x")),
	}
	for _, p := range payloads {
		assert.True(t, p.Equal(Unwrap(WrapSuccess(p))), p.JSONString())
		assert.True(t, p.Equal(Unwrap(WrapFailure(p))), p.JSONString())
	}
}

func TestResponseFromEnvelope(t *testing.T) {
	resp := ResponseFromEnvelope(ldvalue.Parse([]byte(`{"status":422,"json":{"errors":["too many"]}}`)))
	assert.Equal(t, 422, resp.Status)
	assert.Equal(t, `{"errors":["too many"]}`, resp.Body.JSONString())

	bare := ResponseFromEnvelope(ldvalue.String("plain"))
	assert.Equal(t, DefaultSuccessStatus, bare.Status)
	assert.Equal(t, ldvalue.String("plain"), bare.Body)

	notNumeric := ldvalue.Parse([]byte(`{"status":"OK"}`))
	assert.False(t, IsEnvelope(notNumeric))
	assert.Equal(t, DefaultSuccessStatus, ResponseFromEnvelope(notNumeric).Status)
}
