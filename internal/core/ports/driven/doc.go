// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Crawl Interfaces
//
//   - Fetcher: Retrieves one page over HTTP
//   - Extractor: Converts a fetched page to plain text and links
//   - ArtifactStore: Persists the plain-text corpus
//
// # Ingestion Interfaces
//
//   - Chunker: Splits artifacts into overlapping windows
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Persists chunk embeddings, nearest-neighbour search
//   - KeywordIndex: BM25 keyword search over the same chunks
//
// # Answering Interfaces
//
//   - LLMService: Generates answers
//   - SessionStore: Conversation history persistence
//   - PromptStore: Prompt templates
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
