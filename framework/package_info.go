// Package framework contains the low-level implementation of test harness infrastructure
// for driving a form under test that runs in a separate page service. The base package
// contains shared types such as Logger; other components are in the subpackages harness
// and ldtest.
//
// The general model is:
//
// 1. The test harness communicates with a page service, which exposes a root endpoint for
// querying its status (GET) or creating a page session (POST). Each session is one "page":
// a form under test plus the mock registry that its outbound calls are routed through.
//
// 2. The test harness can expose any number of mock endpoints to receive requests from the
// page service, such as unmatched calls that fall through to a real upstream, or numbered
// event callbacks.
//
// 3. There is a general notion of a test context which is similar to Go's testing.T,
// allowing pieces of test logic to be associated with a test identifier and to accumulate
// success/failure results.
//
// The domain-specific code that knows what is being tested is responsible for the commands
// sent to the page service and for the test API built on top of the test context.
package framework
