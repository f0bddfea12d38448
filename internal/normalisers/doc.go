// Package normalisers turns fetched pages into plain text. Each subpackage
// handles a family of content types; Registry dispatches a page to the
// extractor that claims its media type.
package normalisers
