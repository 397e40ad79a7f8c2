package analysis

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the target chunk length in characters.
const DefaultChunkSize = 1000

// SplitText groups blank-line separated paragraphs into chunks of roughly
// chunkSize characters. A single paragraph longer than chunkSize becomes its
// own chunk.
func SplitText(text string, chunkSize int) []string {
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var (
		chunks  []string
		current strings.Builder
		curLen  int
	)
	for _, para := range strings.Split(text, "\n\n") {
		paraLen := utf8.RuneCountInString(para)
		if curLen+paraLen >= chunkSize && current.Len() > 0 {
			if c := strings.TrimSpace(current.String()); c != "" {
				chunks = append(chunks, c)
			}
			current.Reset()
			curLen = 0
		}
		current.WriteString(para)
		current.WriteString("\n\n")
		curLen += paraLen + 2
	}
	if c := strings.TrimSpace(current.String()); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// JoinBlocks renders blocks as paragraphs separated by blank lines.
func JoinBlocks(texts []string) string {
	var parts []string
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
