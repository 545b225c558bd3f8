// Package resources provides MCP resources: read-only data that MCP clients
// fetch by URI rather than through a tool call.
//
//   - piperun://deals/{dealId}: one deal record, as returned by the CRM
//   - piperun://pipelines/{pipelineId}: one pipeline
//   - piperun://pipelines/{pipelineId}/stages: the first page of a pipeline's stages
//   - piperun://persons/{personId} and piperun://companies/{companyId}: one contact
//   - piperun://pipelines, stages, persons, companies and products: the first
//     page of each collection
//   - crmgate://telemetry/stats: recorder statistics for this process
package resources
