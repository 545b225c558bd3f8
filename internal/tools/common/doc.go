// Package common provides helpers shared by the CRM operation packages:
// pagination and filter properties, query building from validated params,
// and the configured-client guard.
package common
