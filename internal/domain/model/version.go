package model

// ServerVersion is reported by the health endpoint; cmd sets it from the
// -ldflags build version at startup.
var ServerVersion = "0.0.0"
