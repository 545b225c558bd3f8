// Package batch runs one CRM lookup per id and aggregates the outcomes.
//
// A failure for one id does not stop the batch: every id gets a Result
// with status "success" or "error", and the Summary counts both.
package batch
