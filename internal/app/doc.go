// Package app holds the process wiring shared by the hodwatch binaries:
// logger construction, store selection, component configuration and the
// health and metrics server.
package app
