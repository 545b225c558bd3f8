package crm_tools

import (
	"fmt"

	"github.com/teemow/crmgate/internal/dispatch"
	"github.com/teemow/crmgate/internal/server"
)

// RegisterCRMTools registers all CRM operations on reg. Write operations
// are skipped when readOnly is set.
func RegisterCRMTools(reg *dispatch.Registry, sc *server.ServerContext, readOnly bool) error {
	if err := registerDealTools(reg, sc, readOnly); err != nil {
		return fmt.Errorf("failed to register deal tools: %w", err)
	}

	if err := registerPipelineTools(reg, sc); err != nil {
		return fmt.Errorf("failed to register pipeline tools: %w", err)
	}

	if err := registerContactTools(reg, sc); err != nil {
		return fmt.Errorf("failed to register contact tools: %w", err)
	}

	return nil
}

// registerAll stops at the first registration error.
func registerAll(reg *dispatch.Registry, ops ...dispatch.Operation) error {
	for _, op := range ops {
		if err := reg.Register(op); err != nil {
			return err
		}
	}
	return nil
}
