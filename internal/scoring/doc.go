// Package scoring runs the two LLM relevance passes over candidate clips
// and validates everything the model returns: a mapped word must literally
// occur in the transcript it was scored against, and its score must clear
// the configured threshold. Mappings that fail either check are discarded.
package scoring
