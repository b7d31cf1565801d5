// Package version carries build metadata stamped at link time.
package version

import "runtime/debug"

// Set via -ldflags at release build time; left at these defaults for
// local builds.
var (
	// Version is the packfang release version.
	Version = "dev"

	// Commit is the Git hash the binary was built from.
	Commit = "<unknown>"

	// Date is the build timestamp.
	Date = "<unknown>"
)

// InitBinaryVersion fills unset build metadata from the build info the Go
// toolchain embeds. Values already stamped through ldflags are kept.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "<unknown>" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == "<unknown>" {
				Date = setting.Value
			}
		}
	}
}
