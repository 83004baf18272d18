package version

// Version is overridden at build time with
// -ldflags "-X github.com/ollama/oneshot/version.Version=..."
var Version string = "0.0.0"
