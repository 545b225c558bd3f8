// Package cmd implements the command-line interface for crmgate.
//
// This package provides the following commands:
//   - serve: Run the gateway over stdio, HTTP/WebSocket or MCP
//   - call: Dispatch a single operation and print the response envelope
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for all operations
//
// Every command assembles the same gateway: a telemetry recorder, the
// Piperun client, the operation registry and the dispatcher.
package cmd
