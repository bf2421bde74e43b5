// Package main is the entry point for the Cloudbox MCP server.
//
// Cloudbox adapts a remote cloud compute API to a generic sandbox
// provider surface and exposes the provider's lifecycle and command
// operations as MCP tools over stdio or HTTP.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration. A .env file is loaded before configuration so the
// credential fallback environment variables can live next to the binary
// during development.
package main
