// Package logging centralizes slog handler construction and the standardized
// attribute vocabulary used across the pipeline.
//
// Two output formats are supported: a compact console format for interactive
// runs and JSON for log shipping. Context helpers stamp the active word, clip
// slug, and stage onto every record emitted inside a unit of work.
package logging
