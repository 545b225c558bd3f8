// Package piperun is a small HTTP client for the Piperun CRM REST API.
//
// Every request carries the account token as the api_token query parameter.
// Responses are JSON objects with a "data" member; list endpoints also carry
// pagination totals under "meta". The client returns raw JSON for records so
// callers see the CRM's own field names:
//
//	client, err := piperun.NewClient(piperun.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	deals, err := client.ListDeals(ctx, piperun.Query{Page: 1, Show: 20})
//
// Failed calls return *APIError, which carries the HTTP status when the API
// answered and the transport error when it did not.
package piperun
