package formtests

import (
	"github.com/laji-form/mock-contract-tests/framework/harness"
	"github.com/laji-form/mock-contract-tests/framework/ldtest"
	"github.com/laji-form/mock-contract-tests/servicedef"
)

// AllCapabilities lists every capability the suite knows how to test.
var AllCapabilities = []string{
	servicedef.CapabilityCallbacks,
	servicedef.CapabilityFallthrough,
	servicedef.CapabilityRendezvous,
	servicedef.CapabilityStrict,
}

func RunTestSuite(
	testHarness *harness.TestHarness,
	filter ldtest.Filter,
	testLogger ldtest.TestLogger,
) ldtest.Results {
	config := ldtest.TestConfiguration{
		Filter:       filter,
		Capabilities: testHarness.TestServiceInfo().Capabilities,
		TestLogger:   testLogger,
		Context:      FormTestContext{harness: testHarness},
	}
	return ldtest.Run(config, func(t *ldtest.T) {
		t.Run("single mock", DoSingleMockTests)
		t.Run("envelope", DoEnvelopeTests)
		t.Run("mock queue", DoQueueTests)
		t.Run("removal", DoRemovalTests)
		t.Run("synchronization", DoSyncTests)
		t.Run("unmatched calls", DoUnmatchedCallTests)
		t.Run("event callbacks", DoCallbackTests)
	})
}
