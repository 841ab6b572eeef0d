// Package main provides the entry point for snapkeep.
//
// snapkeep inspects and maintains snapshot directories written by the
// snapshot store:
//
//   - keyhash, history, show and keys read stream metadata and snapshots
//   - verify checks a stream directory and optionally repairs it
//   - journal and catalog maintain the decision journal and the stream index
//   - simulate and follow drive and watch a stream
//
// Usage:
//
//	snapkeep [global flags] command [flags] [KEY]
//	snapkeep --base-dir ./snapshots history '{"experiment":"quad"}'
//	snapkeep -o json simulate --steps 100
//
// Configuration is read from snapkeep.yaml, then SNAPKEEP_* environment
// variables (SNAPKEEP_STORE__BASE_DIR sets store.base_dir), then flags.
package main
