package version

// These variables are injected at build time.

// Version hosts the version of the app.
var Version = "development"

// Commit is the commit hash of the build
var Commit string

// BuildDate is the date it was built
var BuildDate string
