// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp the current word, clip slug, stage name, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (transient vs validation vs resource vs configuration)
//     uniform across stages.
//   - The shared Retry loop with bounded exponential backoff applied to every
//     catalog, LLM, and speech-to-text call.
package services
