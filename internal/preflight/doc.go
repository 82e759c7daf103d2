// Package preflight provides readiness checks for the binaries, paths and
// external services orbix depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure so a broken
//     install is visible before the first scheduled job.
//   - The CLI "orbix status" command renders the same results as a table.
//
// Service checks are gated by configuration: an absent credential reports
// "not configured" instead of attempting a request.
package preflight
