// Package html converts fetched documentation pages into plain text.
// Link, image and emphasis markup is removed; headings, lists, tables and
// preformatted blocks keep a minimal text structure. Lines are never wrapped.
package html
