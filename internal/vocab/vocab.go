package vocab

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Word is a single vocabulary entry awaiting clip coverage.
type Word struct {
	Text     string
	Language string
}

// Source yields the vocabulary words a run should process.
type Source interface {
	Words() ([]Word, error)
}

// NormalizeLanguage maps common language names and tags to the lowercase
// two-letter code used throughout the pipeline.
func NormalizeLanguage(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	switch trimmed {
	case "", "en", "eng", "english":
		return "en"
	case "ja", "jp", "jpn", "japanese":
		return "ja"
	case "es", "spa", "spanish":
		return "es"
	case "fr", "fra", "fre", "french":
		return "fr"
	case "de", "deu", "ger", "german":
		return "de"
	}
	if idx := strings.IndexAny(trimmed, "-_"); idx > 0 {
		trimmed = trimmed[:idx]
	}
	if len(trimmed) == 2 {
		return trimmed
	}
	return "en"
}

// FileSource reads words from a plain text file, one word or phrase per
// line. Blank lines and lines starting with # are skipped.
type FileSource struct {
	Path     string
	Language string
}

func (s *FileSource) Words() ([]Word, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("vocab: open words file: %w", err)
	}
	defer file.Close()

	language := NormalizeLanguage(s.Language)
	seen := make(map[string]struct{})
	var words []Word

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key := strings.ToLower(line)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		words = append(words, Word{Text: line, Language: language})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read words file: %w", err)
	}
	return words, nil
}
