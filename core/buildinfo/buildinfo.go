// Package buildinfo carries the release stamp injected at link time, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/storebot/core/buildinfo.Version=v1.2.0 \
//	  -X github.com/m3rciful/storebot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "local"
	// Date is the build time in RFC3339, empty for local builds.
	Date = ""
)

// String renders the stamp as "version (commit, date)".
func String() string {
	meta := []string{Commit}
	if Date != "" {
		meta = append(meta, Date)
	}
	return Version + " (" + strings.Join(meta, ", ") + ")"
}
