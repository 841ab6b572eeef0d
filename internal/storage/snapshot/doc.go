// Package snapshot persists a named map of values as a stream of snapshot
// files, keeping only the snapshots a retention policy accepts.
//
// Every stream lives in its own directory under a base directory, named
// after the hash of the stream key:
//
//	<basedir>/<keyhash>/
//	    metadata.json                        serial, run count, key, history
//	    000000007_2026-01-02-15-04-05.json   one file per retained snapshot
//	    latest.json                          points at the newest retained file
//	    journal.log                          optional decision journal
//
// A Store moves through three states. It starts unconfigured, becomes
// configured once a key is set, and is loaded after the first Load or Save.
// Configure is rejected once the store is loaded.
//
// Save runs the candidate through the retention policy. Discarded candidates
// write nothing, so their serial is lost unless the journal is enabled.
package snapshot
