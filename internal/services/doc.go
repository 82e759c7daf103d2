// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures carry a
//     consistent classification (validation, configuration, transient, ...)
//     into logs and persisted reason strings.
//
// Concrete clients for the LLM, ffmpeg, YouTube, and Rumble live in
// subpackages.
package services
