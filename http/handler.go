package http

import (
	"net/http"
	"runtime/debug"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/sapling-labs/arbor/growth"
	"github.com/segmentio/encoding/json"
)

const modulePath = "github.com/sapling-labs/arbor"

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// HandleReadyCheck reports the service ready once the tree handler completed
// its warm-up generation and while alive reports true.
func HandleReadyCheck(trees *TreeHandler, alive func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !trees.Ready() || !alive() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// VersionInfo describes the running build and the growth parameters trees
// are generated with when a request does not override them.
type VersionInfo struct {
	Module        string               `json:"module"`
	Version       string               `json:"version"`
	GoVersion     string               `json:"go_version,omitempty"`
	FeatureFlags  []string             `json:"feature_flags"`
	MaxIterations int                  `json:"max_iterations"`
	SeedStructure growth.SeedStructure `json:"seed_structure"`
}

// NewVersionInfo returns the version info of the tree handler settings.
func NewVersionInfo(version string, trees *TreeHandler) VersionInfo {
	info := VersionInfo{
		Module:        modulePath,
		Version:       version,
		FeatureFlags:  trees.Options.Flags.Strings(),
		MaxIterations: trees.maxIterations(),
		SeedStructure: trees.SeedStructure,
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = build.GoVersion
		if build.Main.Path != "" {
			info.Module = build.Main.Path
		}
	}
	return info
}

func HandleVersion(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(info); err != nil {
			logs.Warn(err)
		}
	}
}
