// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/snapkeep/internal/infra/buildinfo.Version=v0.3.0 \
//	    -X github.com/yndnr/snapkeep/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Values not injected fall back to what the Go toolchain embeds in the
// binary.
package buildinfo
