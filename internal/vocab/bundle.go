package vocab

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// BundleSource reads words from a SQLite vocabulary bundle. Only words
// without existing video coverage are returned; an optional bundle name
// narrows the query to one bundle.
type BundleSource struct {
	Path       string
	BundleName string
	Language   string
}

const bundleQuery = `
SELECT w.text, COALESCE(w.language, '')
FROM words w
LEFT JOIN word_videos wv ON wv.word_id = w.id
WHERE wv.word_id IS NULL`

func (s *BundleSource) Words() ([]Word, error) {
	db, err := sql.Open("sqlite", s.Path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("vocab: open bundle: %w", err)
	}
	defer db.Close()

	query := bundleQuery
	var args []any
	if name := strings.TrimSpace(s.BundleName); name != "" {
		query += " AND w.bundle = ?"
		args = append(args, name)
	}
	query += " ORDER BY w.id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("vocab: query bundle: %w", err)
	}
	defer rows.Close()

	fallback := NormalizeLanguage(s.Language)
	seen := make(map[string]struct{})
	var words []Word

	for rows.Next() {
		var text, language string
		if err := rows.Scan(&text, &language); err != nil {
			return nil, fmt.Errorf("vocab: scan bundle row: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		lang := fallback
		if language != "" {
			lang = NormalizeLanguage(language)
		}
		words = append(words, Word{Text: text, Language: lang})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vocab: iterate bundle rows: %w", err)
	}
	return words, nil
}
