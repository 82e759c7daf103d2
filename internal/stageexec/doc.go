// Package stageexec runs a single stage invocation with the shared envelope:
// run identifier, per-stage file lock, settings snapshot, logging, and error
// notification.
package stageexec
