// Package metric exposes snapshot store activity as Prometheus metrics.
//
// Metrics live on a dedicated registry rather than the global default, so
// several stores in one process (or one test binary) do not collide. The
// registry can be written in the text exposition format with WriteText.
package metric
