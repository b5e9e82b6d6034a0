package scoring

import (
	"context"
	"sort"
	"strings"

	"clipminer/internal/services"
	"clipminer/internal/services/catalog"
	"clipminer/internal/services/speech"
	"clipminer/internal/textmatch"
	"clipminer/internal/vocab"
)

// Mapping is one validated association between a clip and a vocabulary word.
// StartSec/EndSec are only populated on audio-verified mappings.
type Mapping struct {
	Word           string  `json:"word"`
	RelevanceScore float64 `json:"relevance_score"`
	Rationale      string  `json:"rationale"`
	StartSec       float64 `json:"start_sec,omitempty"`
	EndSec         float64 `json:"end_sec,omitempty"`
}

// Analysis is the scoring outcome for one clip. PassedGate means at least
// one mapping survived validation and the relevance threshold.
type Analysis struct {
	Slug          string    `json:"slug"`
	Mappings      []Mapping `json:"mappings"`
	PassedGate    bool      `json:"passed_gate"`
	AudioVerified bool      `json:"audio_verified"`
}

// Completer is the LLM call surface the scorer depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// Options bound what a scored mapping must clear to survive.
type Options struct {
	MinRelevance       float64
	MinFinalRelevance  float64
	MaxMappingsPerClip int
}

// Scorer runs the two LLM scoring passes and enforces the presence and
// threshold gates on whatever the model returns.
type Scorer struct {
	completer Completer
	matcher   *textmatch.Matcher
	opts      Options
}

func NewScorer(completer Completer, matcher *textmatch.Matcher, opts Options) *Scorer {
	if opts.MaxMappingsPerClip <= 0 {
		opts.MaxMappingsPerClip = 5
	}
	return &Scorer{completer: completer, matcher: matcher, opts: opts}
}

type llmMapping struct {
	Word           string  `json:"word"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason"`
}

type llmReply struct {
	Mappings []llmMapping `json:"mappings"`
}

// ScorePre runs the pre-download pass against the catalog's unverified
// subtitle text. Words that never appear in the transcript are excluded
// from the prompt; a clip where no candidate word appears skips the LLM
// call entirely and fails the gate.
func (s *Scorer) ScorePre(ctx context.Context, clip catalog.Clip, words []vocab.Word) (*Analysis, error) {
	return s.score(ctx, clip.Slug, clip.Title, clip.MovieContext, clip.DurationSeconds,
		clip.SubtitleTranscript, words, nil, false)
}

// ScoreFinal runs the post-download pass against the verified audio
// transcript and enriches surviving mappings with word timestamps.
func (s *Scorer) ScoreFinal(ctx context.Context, clip catalog.Clip, transcript *speech.Transcript, words []vocab.Word) (*Analysis, error) {
	return s.score(ctx, clip.Slug, clip.Title, clip.MovieContext, transcript.DurationSeconds,
		transcript.FullText, words, transcript.WordTimestamps, true)
}

func (s *Scorer) score(ctx context.Context, slug, title, movieContext string, duration float64,
	transcript string, words []vocab.Word, timestamps []speech.WordTimestamp, audioVerified bool) (*Analysis, error) {

	analysis := &Analysis{Slug: slug, AudioVerified: audioVerified}

	candidates := s.presentWords(transcript, words)
	if len(candidates) == 0 {
		return analysis, nil
	}

	systemPrompt := preScoringSystemPrompt
	if audioVerified {
		systemPrompt = finalScoringSystemPrompt
	}
	userPrompt := buildUserPrompt(title, movieContext, duration, transcript, candidates)

	var reply llmReply
	if err := s.completer.CompleteJSON(ctx, systemPrompt, userPrompt, &reply); err != nil {
		return nil, err
	}

	minScore := s.opts.MinRelevance
	if audioVerified {
		minScore = s.opts.MinFinalRelevance
	}
	analysis.Mappings = s.validate(reply.Mappings, transcript, timestamps, minScore)
	analysis.PassedGate = len(analysis.Mappings) > 0
	return analysis, nil
}

// presentWords filters the vocabulary to words the transcript actually
// contains, so the model is never asked about words it could only invent.
func (s *Scorer) presentWords(transcript string, words []vocab.Word) []string {
	var present []string
	for _, word := range words {
		if s.matcher.Contains(transcript, word.Text) {
			present = append(present, word.Text)
		}
	}
	return present
}

// validate applies the presence check and threshold gate to raw model
// output. Mappings for absent words and out-of-range scores are discarded
// outright. Survivors are sorted by score and capped.
func (s *Scorer) validate(raw []llmMapping, transcript string, timestamps []speech.WordTimestamp, minScore float64) []Mapping {
	var accepted []Mapping
	seen := make(map[string]struct{})

	for _, candidate := range raw {
		word := strings.TrimSpace(candidate.Word)
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if _, dup := seen[key]; dup {
			continue
		}
		if candidate.RelevanceScore < 0 || candidate.RelevanceScore > 1 {
			continue
		}
		if candidate.RelevanceScore < minScore {
			continue
		}
		if !s.matcher.Contains(transcript, word) {
			continue
		}
		seen[key] = struct{}{}

		mapping := Mapping{
			Word:           word,
			RelevanceScore: candidate.RelevanceScore,
			Rationale:      strings.TrimSpace(candidate.Reason),
		}
		if start, end, ok := locateWord(word, timestamps); ok {
			mapping.StartSec = start
			mapping.EndSec = end
		}
		accepted = append(accepted, mapping)
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		return accepted[i].RelevanceScore > accepted[j].RelevanceScore
	})
	if len(accepted) > s.opts.MaxMappingsPerClip {
		accepted = accepted[:s.opts.MaxMappingsPerClip]
	}
	return accepted
}

// locateWord finds the timestamp span of word in the transcript's word
// list. Multi-word entries match a consecutive run of tokens.
func locateWord(word string, timestamps []speech.WordTimestamp) (float64, float64, bool) {
	if len(timestamps) == 0 {
		return 0, 0, false
	}
	targets := strings.Fields(strings.ToLower(word))
	if len(targets) == 0 {
		return 0, 0, false
	}

	for i := 0; i+len(targets) <= len(timestamps); i++ {
		matched := true
		for j, target := range targets {
			if cleanToken(timestamps[i+j].Word) != target {
				matched = false
				break
			}
		}
		if matched {
			return timestamps[i].StartSec, timestamps[i+len(targets)-1].EndSec, true
		}
	}
	return 0, 0, false
}

func cleanToken(token string) string {
	return strings.ToLower(strings.Trim(token, " \t.,!?;:\"'()[]…"))
}
