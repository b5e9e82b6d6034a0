package scoring

import (
	"fmt"
	"strings"
)

const preScoringSystemPrompt = `You evaluate short movie clips as teaching material for vocabulary learners.
You are given a clip's context and its subtitle transcript. The transcript comes from a third-party index and may contain errors.
For each candidate word listed by the user, decide how well this clip teaches that word: a clear, audible, contextually meaningful usage scores high; incidental or mumbled usage scores low.
Only score words from the candidate list. Never invent words that are not in the transcript.
Respond with JSON only, in this exact shape:
{"mappings": [{"word": "...", "relevance_score": 0.0, "reason": "..."}]}
relevance_score is between 0 and 1. reason is one short sentence.`

const finalScoringSystemPrompt = `You evaluate short movie clips as teaching material for vocabulary learners.
You are given a clip's context and a transcript produced by speech recognition from the clip's actual audio, so the text is verified; you may score with confidence.
For each candidate word listed by the user, decide how well this clip teaches that word: a clear, audible, contextually meaningful usage scores high; incidental or mumbled usage scores low.
Only score words from the candidate list. Never invent words that are not in the transcript.
Respond with JSON only, in this exact shape:
{"mappings": [{"word": "...", "relevance_score": 0.0, "reason": "..."}]}
relevance_score is between 0 and 1. reason is one short sentence.`

func buildUserPrompt(title, movieContext string, duration float64, transcript string, words []string) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Clip title: %s\n", title)
	}
	if movieContext != "" {
		fmt.Fprintf(&b, "Source: %s\n", movieContext)
	}
	if duration > 0 {
		fmt.Fprintf(&b, "Duration: %.1f seconds\n", duration)
	}
	fmt.Fprintf(&b, "\nTranscript:\n%s\n", strings.TrimSpace(transcript))
	fmt.Fprintf(&b, "\nCandidate words:\n")
	for _, word := range words {
		fmt.Fprintf(&b, "- %s\n", word)
	}
	return b.String()
}
