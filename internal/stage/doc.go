// Package stage defines the contract shared by the pipeline stages: a named
// batch runner with a health probe and a Result tally.
package stage
