package formtests

import (
	"github.com/laji-form/mock-contract-tests/framework/harness"
	"github.com/laji-form/mock-contract-tests/framework/ldtest"
)

type FormTestContext struct {
	harness *harness.TestHarness
}

func requireContext(t *ldtest.T) FormTestContext {
	if c, ok := t.Context().(FormTestContext); ok {
		return c
	}
	panic("FormTestContext was not included in the global test configuration!" +
		" This is a basic mistake in the initialization logic.")
}
