// Package output renders command results as aligned tables, JSON or YAML,
// and draws a progress bar for long simulations.
package output
