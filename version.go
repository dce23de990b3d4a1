package main

// version is set at build time with -ldflags "-X main.version=..."
var version string

func getVersion() string {
	if version == "" {
		return "dev"
	}
	return version
}
