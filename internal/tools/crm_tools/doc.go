// Package crm_tools registers the Piperun CRM operations with a dispatch
// registry.
//
// Read operations are always available. update-deal modifies CRM data and
// is only registered when the server runs with --yolo. The meta operations
// (check-status, server-stats, check-health, list-operations) report on the
// gateway itself.
package crm_tools
