// Package command provides the snapkeep CLI commands.
//
// Commands are defined with urfave/cli/v2:
//
//   - root.go: App, global flags and configuration loading
//   - inspect.go: keyhash, history, show and keys
//   - verify.go: verify and repair a stream directory
//   - journal.go: journal and catalog maintenance
//   - simulate.go: drive a synthetic workload through a store
//   - follow.go: print retained snapshots as they are written
//   - system.go: version and config show
//
// Commands read the merged configuration from the app metadata, do their
// work against the snapshot directories and print through the output
// package in the selected format.
package command
