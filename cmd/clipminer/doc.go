// Command clipminer mines a third-party clip catalog for short videos that
// teach vocabulary words, scores them with an LLM against verified audio
// transcripts, and commits the survivors to a local directory or a backend
// ingestion endpoint.
package main
