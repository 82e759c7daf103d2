// Package store persists the pipeline entities in SQLite.
//
// Every stage reads its worklist from here and moves records forward through
// guarded status updates (UPDATE ... WHERE status = ?), so re-running a stage
// never repeats work that already committed. Multi-row transitions such as
// story creation or render completion happen in a single transaction, and the
// schema's UNIQUE constraints make duplicate ingestion, admission and
// publication no-ops.
package store
