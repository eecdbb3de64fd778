package main

import (
	"testing"

	"github.com/laji-form/mock-contract-tests/framework/ldtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequiresServiceURL(t *testing.T) {
	var params commandParams
	assert.False(t, params.Read([]string{"formtests"}))
}

func TestReadParsesFilters(t *testing.T) {
	var params commandParams
	require.True(t, params.Read([]string{"formtests", "-url", "http://localhost:8000", "-run", "queue", "-skip", "fallthrough"}))
	assert.Equal(t, "http://localhost:8000", params.serviceURL)
	assert.Equal(t, defaultPort, params.port)
	assert.True(t, params.filters.AsFilter(ldtest.TestID{Path: []string{"mock queue", "bounded"}}))
	assert.False(t, params.filters.AsFilter(ldtest.TestID{Path: []string{"removal"}}))
}

func TestRerunCommandQuotesTestNames(t *testing.T) {
	params := commandParams{serviceURL: "http://localhost:8000", host: "localhost", port: defaultPort}
	failed := []ldtest.TestID{{Path: []string{"mock queue", "waiting calls are bounded"}}}
	assert.Equal(t,
		`./formtests -url http://localhost:8000 -run '^mock queue/waiting calls are bounded$' -debug`,
		params.rerunCommand("./formtests", failed))
}
