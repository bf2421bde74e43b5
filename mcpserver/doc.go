// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package implements an MCP-compliant server that exposes
// sandbox lifecycle and command execution tools backed by a sandbox
// provider. It uses the mark3labs/mcp-go library to handle the protocol
// details and serves over stdio or streamable HTTP.
package mcpserver
