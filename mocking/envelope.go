package mocking

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

// Default envelope shape. A non-raw payload is wrapped as {"status": N, "json": payload},
// which is the same shape a raw payload uses to pick an arbitrary status.
const (
	envelopeStatus = "status"
	envelopeBody   = "json"

	DefaultSuccessStatus = 200
	DefaultFailureStatus = 500
)

// WrapSuccess wraps a payload in the default success envelope.
func WrapSuccess(payload ldvalue.Value) ldvalue.Value {
	return wrap(DefaultSuccessStatus, payload)
}

// WrapFailure wraps a payload in the default failure envelope.
func WrapFailure(payload ldvalue.Value) ldvalue.Value {
	return wrap(DefaultFailureStatus, payload)
}

func wrap(status int, payload ldvalue.Value) ldvalue.Value {
	return ldvalue.ObjectBuild().
		Set(envelopeStatus, ldvalue.Int(status)).
		Set(envelopeBody, payload).
		Build()
}

// Unwrap extracts the payload from an envelope. Unwrap(WrapSuccess(p)) == p.
func Unwrap(envelope ldvalue.Value) ldvalue.Value {
	return envelope.GetByKey(envelopeBody)
}

// IsEnvelope returns true if the value has the {"status": number, ...} shape.
func IsEnvelope(v ldvalue.Value) bool {
	return v.Type() == ldvalue.ObjectType && v.GetByKey(envelopeStatus).IsNumber()
}

// Response is what an intercepted call receives when its mock is resolved.
type Response struct {
	// Status is the envelope status.
	Status int
	// Body is the envelope's "json" property.
	Body ldvalue.Value
	// Envelope is the full value delivered to the caller: the default envelope for non-raw
	// payloads, or the raw payload exactly as the test supplied it.
	Envelope ldvalue.Value
}

// ResponseFromEnvelope interprets a delivered value. A value without a numeric status is
// treated as a bare body with the default success status.
func ResponseFromEnvelope(v ldvalue.Value) Response {
	if !IsEnvelope(v) {
		return Response{Status: DefaultSuccessStatus, Body: v, Envelope: v}
	}
	return Response{
		Status:   v.GetByKey(envelopeStatus).IntValue(),
		Body:     v.GetByKey(envelopeBody),
		Envelope: v,
	}
}
