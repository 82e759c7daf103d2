// Package daemon coordinates the long-running orbix process.
//
// It wires configuration, the store, the workflow scheduler and the admin
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. The API is a chi router wrapped in gorilla/handlers
// CORS and panic recovery, guarded by a bearer token when one is
// configured.
//
// Keep orchestration here: stage logic lives in the stage packages and
// operator actions in internal/api.
package daemon
