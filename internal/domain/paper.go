package domain

import "strings"

// Paper is a corpus record after filtering. Vector is attached by the
// embedding stage and stays nil until then.
type Paper struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Abstract   string    `json:"abstract"`
	Categories []string  `json:"categories"`
	Authors    string    `json:"authors"`
	UpdateDate string    `json:"update_date"`
	Vector     []float32 `json:"abstract_vector,omitempty"`
}

// EmbeddingText returns the text the embedding stage vectorizes.
func (p Paper) EmbeddingText() string { return p.Abstract }

// NormalizeText collapses line breaks into spaces and trims the result.
func NormalizeText(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// MatchingCategories returns the tags carrying the prefix, preserving order.
// The result is never nil.
func MatchingCategories(tags []string, prefix string) []string {
	matched := make([]string, 0, len(tags))
	for _, tag := range tags {
		if strings.HasPrefix(tag, prefix) {
			matched = append(matched, tag)
		}
	}
	return matched
}
