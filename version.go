package sessionstore

// Version is the release version, overridden at build time with
// -ldflags "-X github.com/aretw0/sessionstore.Version=v1.2.3".
var Version = "dev"
