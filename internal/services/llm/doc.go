// Package llm provides an OpenAI-compatible chat completion client that asks
// for JSON-only answers.
//
// The classifier and the script writer build their prompts on top of
// Client.CompleteJSON and decode the reply with DecodeJSON, which tolerates
// code fences and prose around the JSON object.
//
// Retryable failures (HTTP 408/429/5xx, network timeouts, empty content) are
// retried with exponential backoff up to Config.MaxAttempts; the default is a
// single attempt so a failing item surfaces on the current run and is retried
// by the next scheduled run instead. Errors carry services markers:
// ErrConfiguration for a missing key, ErrTimeout, ErrTransient for retryable
// statuses, ErrExternalTool for other API failures.
package llm
