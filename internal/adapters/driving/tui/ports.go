// Package tui provides an interactive terminal user interface for docchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the TUI.
type Ports struct {
	// Answer answers questions within the conversation.
	Answer driving.AnswerService

	// Search retrieves chunks for the search view.
	Search driving.SearchService

	// SessionID names the conversation the chat view continues.
	SessionID string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	if p.SessionID == "" {
		return ErrMissingSessionID
	}
	return nil
}
