package mcp

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Answer answers questions within sessions.
	Answer driving.AnswerService

	// Search retrieves chunks without generating an answer.
	Search driving.SearchService

	// Ingester reports index statistics. Optional.
	Ingester driving.Ingester
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
