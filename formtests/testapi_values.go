package formtests

import (
	"time"

	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

const pollInterval = time.Millisecond * 20

// Paths the stand-in form calls.
const (
	autosuggestPath = "/autocomplete/taxon"
	geocodePath     = "/coordinates/location"
	uploadPath      = "/images"
	validatePrefix  = "/validate/"
)

func taxonQuery(input string) ldvalue.Value {
	return ldvalue.ObjectBuild().Set("q", ldvalue.String(input)).Build()
}

func suggestion(value string) ldvalue.Value {
	return ldvalue.ObjectBuild().Set("value", ldvalue.String(value)).Build()
}

func geocoderResult(address string) ldvalue.Value {
	return ldvalue.ObjectBuild().
		Set("status", ldvalue.String("OK")).
		Set("results", ldvalue.ArrayOf(
			ldvalue.ObjectBuild().Set("formatted_address", ldvalue.String(address)).Build(),
		)).
		Build()
}

func boolPtr(b bool) *bool { return &b }
