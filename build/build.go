package build

// Overridden at link time via -ldflags.
var (
	Version = "dev"
	Date    = "unknown"
)
