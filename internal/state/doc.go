// Package state persists pipeline progress across runs. The append-only
// ledgers record which words were fully processed, which clips were
// committed, and every failed attempt, so interrupted runs resume without
// redoing or duplicating work.
package state
