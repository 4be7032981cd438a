package ingestion

import (
	"strings"
	"unicode/utf8"

	"github.com/jdkato/prose/v2"
)

// Splitter cuts text into chunks of at most Size characters. Cuts fall on sentence
// boundaries when possible, and consecutive chunks share up to Overlap characters.
type Splitter struct {
	Size    int
	Overlap int
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap}
}

func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if runeLen(text) <= s.Size {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk == "" {
			return
		}
		chunks = append(chunks, chunk)
		overlap := tailWords(chunk, s.Overlap)
		current.Reset()
		currentLen = 0
		if overlap != "" {
			current.WriteString(overlap)
			currentLen = runeLen(overlap)
		}
	}

	for _, piece := range s.pieces(text) {
		pieceLen := runeLen(piece)
		if currentLen > 0 && currentLen+1+pieceLen > s.Size {
			flush()
			// The overlap alone may not leave room for the next piece.
			if currentLen+1+pieceLen > s.Size {
				current.Reset()
				currentLen = 0
			}
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(piece)
		currentLen += pieceLen
	}

	if chunk := strings.TrimSpace(current.String()); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// pieces returns sentences no longer than Size. Over-long sentences are cut at word
// boundaries, and single words longer than Size are cut by rune count.
func (s *Splitter) pieces(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, sent := range sentences(line) {
			if runeLen(sent) <= s.Size {
				out = append(out, sent)
				continue
			}
			out = append(out, s.hardSplit(sent)...)
		}
	}
	return out
}

func (s *Splitter) hardSplit(sentence string) []string {
	var out []string
	var current strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(sentence) {
		for runeLen(word) > s.Size {
			if currentLen > 0 {
				out = append(out, current.String())
				current.Reset()
				currentLen = 0
			}
			r := []rune(word)
			out = append(out, string(r[:s.Size]))
			word = string(r[s.Size:])
		}
		wl := runeLen(word)
		if currentLen > 0 && currentLen+1+wl > s.Size {
			out = append(out, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(word)
		currentLen += wl
	}
	if currentLen > 0 {
		out = append(out, current.String())
	}
	return out
}

func sentences(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	doc, err := prose.NewDocument(line,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithTokenization(false),
	)
	if err != nil {
		return []string{line}
	}

	var out []string
	for _, sent := range doc.Sentences() {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{line}
	}
	return out
}

// tailWords returns the longest run of trailing whole words of text that fits in limit characters.
func tailWords(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	words := strings.Fields(text)
	n := 0
	start := len(words)
	for start > 0 {
		wl := runeLen(words[start-1])
		if n > 0 {
			wl++
		}
		if n+wl > limit {
			break
		}
		n += wl
		start--
	}
	return strings.Join(words[start:], " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
