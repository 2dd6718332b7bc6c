package api

// Version is reported by /api/health.
var Version = "0.1.0"
