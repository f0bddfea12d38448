// Package domain defines the core business entities for docchat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - TextArtifact: The plain-text rendering of one crawled page
//   - Chunk: An overlapping text window derived from an artifact
//   - Session: The ordered turn history of one conversation
//   - Settings: Typed configuration for every pipeline stage
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
