// Package catalog indexes the snapshot streams living under one base
// directory.
//
// Every accepted save updates a Record keyed by the stream keyhash, so tools
// can list streams and their latest state without walking every key
// directory. The index is a Badger v3 database in <basedir>/.catalog.
//
// The catalog is an index, not a source of truth: metadata.json in each key
// directory wins, and a lost catalog can be rebuilt from it.
package catalog
