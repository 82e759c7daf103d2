// Package notifications delivers pipeline events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, and
// the ntfy implementation drops events whose per-event toggle is off. Stage
// code depends only on the Service interface.
package notifications
