package tui

import "errors"

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("tui: answer service is required")

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("tui: search service is required")

// ErrMissingSessionID is returned when no session is named.
var ErrMissingSessionID = errors.New("tui: session ID is required")

// ErrInvalidPorts is returned when ports validation fails.
var ErrInvalidPorts = errors.New("tui: invalid ports configuration")
