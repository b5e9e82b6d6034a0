// Package vocab loads the vocabulary words a pipeline run should cover,
// either from a plain word-list file or from a SQLite bundle store.
package vocab
