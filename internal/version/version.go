package version

// Version is the current version of argo-quant. It is stamped into every
// report and set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-quant/internal/version.Version=0.4.0"
// The value "main" marks a development build.
var Version = "v0.3.0"

// GetVersion returns the current version.
func GetVersion() string {
	return Version
}
