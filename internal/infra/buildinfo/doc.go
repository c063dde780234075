// Package buildinfo exposes build-time version information for stockgate.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/stockgate/internal/infra/buildinfo.Version=v1.0.0 \
//	    -X github.com/yndnr/stockgate/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// When they are not set, Get falls back to the VCS stamp and toolchain
// version recorded by the Go linker.
package buildinfo
