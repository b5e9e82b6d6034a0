// Package textmatch implements the presence check that guards both scoring
// passes: a word mapping is only accepted when the word literally occurs in
// the transcript it was scored against.
package textmatch
