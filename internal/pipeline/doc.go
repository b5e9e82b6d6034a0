// Package pipeline orchestrates clip discovery end to end: candidate
// search, pre-download scoring, media acquisition, speech transcription,
// post-download scoring, and the final commit. Each stage is cache-checked
// before any external call, and completed work is recorded durably so runs
// resume after interruption.
package pipeline
