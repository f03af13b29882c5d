package version

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Get returns the version payload for the /version endpoint.
func Get(service string) map[string]string {
	return map[string]string{
		"service":    service,
		"version":    Version,
		"build_time": BuildTime,
	}
}
