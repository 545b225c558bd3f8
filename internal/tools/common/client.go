package common

import (
	"errors"

	"github.com/teemow/crmgate/internal/piperun"
	"github.com/teemow/crmgate/internal/server"
)

// ErrNoClient is returned by operations that need the CRM when the server
// was started without one.
var ErrNoClient = errors.New("piperun client is not configured")

// Client returns the server's CRM client, or an error when there is none
// or it carries no API token.
func Client(sc *server.ServerContext) (*piperun.Client, error) {
	client := sc.CRMClient()
	if client == nil {
		return nil, ErrNoClient
	}
	if !client.HasToken() {
		return nil, piperun.ErrMissingToken
	}
	return client, nil
}
