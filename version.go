package abtest

import (
	"runtime/debug"
)

const (
	sdkName    = "abtest-go-sdk"
	modulePath = "github.com/tracklab/abtest-go"
)

// getUserAgent returns the User-Agent sent to the API: "abtest-go-sdk/<version>",
// where version is "unknown" in development builds.
func getUserAgent() string {
	info, _ := debug.ReadBuildInfo()
	return userAgentFor(info)
}

// userAgentFor looks up this module's version in info. The module is the main
// module in its own tests and a dependency everywhere else.
func userAgentFor(info *debug.BuildInfo) string {
	version := "unknown"
	if mod := findModule(info); mod != nil {
		if mod.Replace != nil {
			mod = mod.Replace
		}
		if mod.Version != "" && mod.Version != "(devel)" {
			version = mod.Version
		}
	}
	return sdkName + "/" + version
}

func findModule(info *debug.BuildInfo) *debug.Module {
	if info == nil {
		return nil
	}
	if info.Main.Path == modulePath {
		return &info.Main
	}
	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			return dep
		}
	}
	return nil
}
