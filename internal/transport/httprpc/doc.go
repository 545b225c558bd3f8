// Package httprpc serves request envelopes over HTTP.
//
// POST /rpc takes one envelope per request body and always answers with
// HTTP 200 and a response envelope, including for parse errors. GET /ws
// upgrades to a WebSocket on which every text message is one envelope;
// messages are dispatched concurrently and responses carry the request id.
//
// Health endpoints from the server package are mounted alongside, and the
// MCP streamable HTTP handler can be added with WithMCPHandler.
package httprpc
