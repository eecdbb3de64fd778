// Package formtests contains the form mock contract tests and the driver-side API they use
// to control a page session.
//
// Infrastructure that is not specific to forms, such as talking to the page service and
// receiving requests on mock endpoints, is in the lower-level framework packages.
package formtests
