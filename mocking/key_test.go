package mocking

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func TestKeyEquality(t *testing.T) {
	q1 := ldvalue.Parse([]byte(`{"lat":"60.1","lng":"24.9"}`))
	q2 := ldvalue.Parse([]byte(`{"lng":"24.9","lat":"60.1"}`))
	q3 := ldvalue.Parse([]byte(`{"lat":"61.0","lng":"24.9"}`))

	assert.True(t, NewKey("/coordinates/location", q1).Equal(NewKey("/coordinates/location", q2)))
	assert.False(t, NewKey("/coordinates/location", q1).Equal(NewKey("/coordinates/location", q3)))
	assert.False(t, NewKey("/coordinates/location", q1).Equal(NewKey("/coordinates/other", q1)))
	assert.True(t, PathKey("/images").Equal(NewKey("/images", ldvalue.Null())))
}

func TestKeyWithoutQueryDoesNotMatchKeyWithQuery(t *testing.T) {
	withQuery := NewKey("/autocomplete/taxon", ldvalue.Parse([]byte(`{"q":"peippo"}`)))
	assert.False(t, PathKey("/autocomplete/taxon").Equal(withQuery))
	assert.False(t, withQuery.Equal(PathKey("/autocomplete/taxon")))
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "/images", PathKey("/images").String())
	assert.Equal(t, `/validate/count {"value":"3"}`,
		NewKey("/validate/count", ldvalue.ObjectBuild().Set("value", ldvalue.String("3")).Build()).String())
}

func TestQueryFromURL(t *testing.T) {
	assert.True(t, QueryFromURL(url.Values{}).IsNull())

	v, _ := url.ParseQuery("q=peippo&tag=a&tag=b")
	expected := ldvalue.Parse([]byte(`{"q":"peippo","tag":["a","b"]}`))
	assert.True(t, expected.Equal(QueryFromURL(v)), QueryFromURL(v).JSONString())
}

func TestQueryToURLRoundTrip(t *testing.T) {
	q := ldvalue.Parse([]byte(`{"q":"peippo","limit":10,"tag":["a","b"]}`))
	values := QueryToURL(q)
	assert.Equal(t, "peippo", values.Get("q"))
	assert.Equal(t, "10", values.Get("limit"))
	assert.Equal(t, []string{"a", "b"}, values["tag"])

	assert.Empty(t, QueryToURL(ldvalue.Null()))
}

func TestNonStringQueryValuesMatchURLQuery(t *testing.T) {
	registered := NewKey("/autocomplete/taxon", ldvalue.Parse([]byte(`{"limit":10,"exact":true,"tag":["a",2]}`)))
	v, _ := url.ParseQuery("limit=10&exact=true&tag=a&tag=2")
	assert.True(t, registered.Equal(NewKey("/autocomplete/taxon", QueryFromURL(v))), registered.String())

	assert.True(t, NewKey("/images", ldvalue.ObjectBuild().Build()).Equal(PathKey("/images")))
}
