// Package memory holds the live key-value state that a snapshot store
// checkpoints.
//
// Values is safe for concurrent use, but the store it feeds assumes a single
// owner per key directory.
package memory
