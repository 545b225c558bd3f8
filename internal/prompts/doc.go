// Package prompts provides MCP prompt templates that steer a model towards
// the gateway's deal tools and resources. The prompt text is Brazilian
// Portuguese, the language of the CRM's users.
package prompts
