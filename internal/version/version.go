package version

// Name identifies the service in logs, traces, and the User-Agent of outbound calls.
const Name = "possumbly"

// Version is overridden at build time via -ldflags.
var Version = "dev"
