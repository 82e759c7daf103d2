// Package api defines the wire-format types and the operator service shared
// by the daemon's admin HTTP API and the orbix CLI.
//
// # Key Types
//
// Service: operator actions over the store (source toggles, review
// decisions, render retries, settings edits) returning DTOs.
//
// Dashboard: per-entity status counts plus today's publish count against
// the daily cap.
//
// WorkflowStatus: scheduler state with per-job last run, result and error.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for the admin UI. Enum values (story,
// render, review statuses, platforms) pass through as their stored upper
// case strings. Timestamps use RFC3339 with milliseconds in UTC.
package api
