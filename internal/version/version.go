// Package version records the build version of the communicator daemon.
// Every saved flag file carries it so operators can tell which build
// raised a flag.
package version

// String is overridden at build time:
//
//	go build -ldflags "-X github.com/setevik/communicatord/internal/version.String=1.2.3"
var String = "dev"

// Current returns the running build's version string.
func Current() string {
	return String
}
