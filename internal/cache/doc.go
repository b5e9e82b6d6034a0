// Package cache persists every expensive intermediate artifact of the
// pipeline (search results, clip metadata, LLM analyses, transcripts) as
// write-once JSON files namespaced by stage. A cache hit short-circuits the
// corresponding external call entirely; corrupt entries read as misses and
// are overwritten on the next put.
package cache
