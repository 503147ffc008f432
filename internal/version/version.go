package version

// Version is the roomview release. It is set at build time:
//
//	go build -ldflags="-X 'github.com/BioHazard786/roomview/internal/version.Version=v0.1.0'"
var Version = "dev"
