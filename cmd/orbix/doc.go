// Command orbix is the operator CLI for the orbix content pipeline.
//
// Most commands work directly against the SQLite store, so they run whether
// or not the daemon is up. `start`, `stop`, and `status` manage the daemon
// process; `run` executes a single stage once under the same per-stage lock
// the scheduler uses.
package main
